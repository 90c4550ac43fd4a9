package videos

import "github.com/hbomb79/Iris/internal/ffmpeg"

// ProbeDto is the response used by the inspect endpoint.
type ProbeDto struct {
	Format  string `json:"format"`
	Size    string `json:"size"`
	Fps     int    `json:"fps"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Codec   string `json:"codec"`
	Bitrate string `json:"bitrate"`
}

// NewProbeDto creates a ProbeDto using the probe result model.
func NewProbeDto(result *ffmpeg.ProbeResult) *ProbeDto {
	return &ProbeDto{
		Format:  result.Format,
		Size:    result.Size,
		Fps:     result.FPS,
		Width:   result.Width,
		Height:  result.Height,
		Codec:   result.Codec,
		Bitrate: result.Bitrate,
	}
}
