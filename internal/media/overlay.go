package media

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Overlay is a client-supplied descriptor for one text overlay to burn in
// to the video frames. Numeric fields are kept as json.Number so values are
// forwarded to the toolkit verbatim - the toolkit is the authority on what
// is acceptable.
type Overlay struct {
	Text            string      `json:"text"`
	FontSize        json.Number `json:"fontSize"`
	FontFamily      string      `json:"fontFamily"`
	X               json.Number `json:"x"`
	Y               json.Number `json:"y"`
	Color           string      `json:"color"`
	BackgroundColor string      `json:"backgroundColor"`
}

// ParseOverlays decodes the JSON-encoded overlay descriptor sequence
// provided by the client as a string form parameter.
func ParseOverlays(payload string) ([]Overlay, error) {
	var overlays []Overlay
	if err := json.Unmarshal([]byte(payload), &overlays); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedOverlays, err.Error())
	}

	return overlays, nil
}

// FilterGraph composes the drawtext filter chain for the provided overlay
// descriptors, ready to be passed to the toolkit as a -vf argument.
func FilterGraph(overlays []Overlay, fontDir string) string {
	filters := make([]string, 0, len(overlays))
	for _, overlay := range overlays {
		filters = append(filters, overlay.filter(fontDir))
	}

	return strings.Join(filters, ",")
}

var drawtextEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)

// filter renders a single drawtext filter. Colors are accepted with or
// without a leading '#' and emitted in the toolkit's 0xRRGGBB form; the
// font file is resolved from the configured font directory by family name.
func (overlay *Overlay) filter(fontDir string) string {
	color := strings.TrimPrefix(overlay.Color, "#")
	background := strings.TrimPrefix(overlay.BackgroundColor, "#")
	fontFile := filepath.Join(fontDir, overlay.FontFamily+".ttf")

	return fmt.Sprintf(
		"drawtext=text='%s':fontsize=%s:fontfile=%s:x=%s:y=%s:fontcolor=0x%s:box=1:boxcolor=0x%s",
		drawtextEscaper.Replace(overlay.Text),
		overlay.FontSize,
		fontFile,
		overlay.X,
		overlay.Y,
		color,
		background,
	)
}
