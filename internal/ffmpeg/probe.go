package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
	"github.com/hbomb79/Iris/pkg/logger"
)

// ProbeResult is the flat metadata record derived from ffprobe's JSON
// output. Format and Size come from the container format section; the
// remaining fields describe the first video stream.
type ProbeResult struct {
	Format  string
	Size    string
	FPS     int
	Width   int
	Height  int
	Codec   string
	Bitrate string
}

// ffprobeOutput mirrors the subset of ffprobe's -print_format json
// structure that the probe operation consumes.
type ffprobeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe runs ffprobe against the file at the given path and maps the
// JSON output to a ProbeResult. A non-zero ffprobe exit is returned as
// a *CommandError carrying the captured stderr.
func (commander *Commander) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	args := []string{"-v", "error", "-print_format", "json", "-show_streams", "-show_format", path}
	proc := exec.CommandContext(ctx, commander.config.ffprobeBin(), args...)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	proc.Stdout = stdout
	proc.Stderr = stderr

	log.Emit(logger.DEBUG, "Probing %s\n", path)
	if err := proc.Run(); err != nil {
		return nil, &CommandError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	var output ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("failed to decode ffprobe output for %s: %w", path, err)
	}

	return resultFromProbeOutput(&output)
}

// MediaDuration extracts the container duration (in seconds) of the file
// at the given path using ffprobe. The wrapper library does not thread
// contexts through to the subprocess, so cancellation is checked before
// it is spawned.
func (commander *Commander) MediaDuration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	metadata, err := ProbeFile(commander.config, path)
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(metadata.GetFormat().GetDuration(), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse media duration of %s: %w", path, err)
	}

	return duration, nil
}

// resultFromProbeOutput selects the first video stream from the decoded
// ffprobe output and flattens it - alongside the format section - into
// a ProbeResult.
func resultFromProbeOutput(output *ffprobeOutput) (*ProbeResult, error) {
	for _, stream := range output.Streams {
		if stream.CodecType != "video" {
			continue
		}

		fps, err := ParseFrameRate(stream.RFrameRate)
		if err != nil {
			return nil, err
		}

		bitrate := stream.BitRate
		if bitrate == "" {
			bitrate = output.Format.BitRate
		}

		return &ProbeResult{
			Format:  output.Format.FormatName,
			Size:    output.Format.Size,
			FPS:     fps,
			Width:   stream.Width,
			Height:  stream.Height,
			Codec:   stream.CodecName,
			Bitrate: bitrate,
		}, nil
	}

	return nil, errors.New("no video stream found")
}

// ParseFrameRate converts an ffprobe frame-rate fraction (e.g. "30/1",
// "30000/1001") to a rounded frames-per-second integer.
func ParseFrameRate(fraction string) (int, error) {
	num, den, found := strings.Cut(fraction, "/")
	if !found {
		return 0, fmt.Errorf("frame rate %q is not a fraction", fraction)
	}

	numerator, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q has an illegal numerator: %w", fraction, err)
	}

	denominator, err := strconv.Atoi(den)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q has an illegal denominator: %w", fraction, err)
	}

	if denominator == 0 {
		return 0, fmt.Errorf("frame rate %q has a zero denominator", fraction)
	}

	return int(math.Round(float64(numerator) / float64(denominator))), nil
}

// ProbeFile extracts file metadata using ffprobe via the transcoder
// wrapper library.
func ProbeFile(config *Config, path string) (transcoder.Metadata, error) {
	cfg := probeConfig(config)
	transcoder := ffmpeg.New(&cfg).Input(path)
	metadata, err := transcoder.GetMetadata()
	if err != nil {
		return nil, fmt.Errorf("failed to extract file metadata information using ffprobe: %s", err.Error())
	}

	return metadata, nil
}

// probeConfig maps the toolkit config on to the wrapper library's own
// config struct. The wrapper refuses an empty binary path outright, so
// the PATH-resolution fallback must be applied here rather than left to
// the subprocess spawn.
func probeConfig(config *Config) ffmpeg.Config {
	return ffmpeg.Config{
		FfmpegBinPath:  config.ffmpegBin(),
		FfprobeBinPath: config.ffprobeBin(),
	}
}
