package ffmpeg

import (
	"context"

	"github.com/hbomb79/Iris/pkg/logger"
)

var log = logger.Get("FFmpeg")

// Config holds the paths to the external toolkit binaries. Either
// path may be left empty, in which case the binary is resolved
// from the system PATH.
type Config struct {
	FfmpegBinPath  string `yaml:"ffmpeg_binary" env:"FORMAT_FFMPEG_BINARY_PATH"`
	FfprobeBinPath string `yaml:"ffprobe_binary" env:"FORMAT_FFPROBE_BINARY_PATH"`
}

func (config *Config) ffmpegBin() string {
	if config.FfmpegBinPath != "" {
		return config.FfmpegBinPath
	}

	return "ffmpeg"
}

func (config *Config) ffprobeBin() string {
	if config.FfprobeBinPath != "" {
		return config.FfprobeBinPath
	}

	return "ffprobe"
}

// Commander is the concrete executor for toolkit invocations. Each call
// spawns a new subprocess and blocks until it exits - no state is retained
// between invocations.
type Commander struct {
	config *Config
}

func NewCommander(config *Config) *Commander {
	return &Commander{config: config}
}

// Transcode constructs an ffmpeg command from the provided argument list
// and waits for it to complete. A non-zero exit is returned as a
// *CommandError carrying the captured stderr.
func (commander *Commander) Transcode(ctx context.Context, args ...string) error {
	return NewCmd(commander.config, args...).Run(ctx)
}
