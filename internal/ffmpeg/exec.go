package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hbomb79/Iris/pkg/logger"
)

// CommandError is raised when a toolkit subprocess exits abnormally. The
// stderr emitted by the binary is captured verbatim so the API layer can
// surface the toolkit's own diagnostic text.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg error: %s", e.Stderr)
	}

	return fmt.Sprintf("ffmpeg error: %s", e.Err.Error())
}

func (e *CommandError) Unwrap() error { return e.Err }

// TranscodeCommand represents a single pending invocation of the ffmpeg
// binary with an explicit argument list.
type TranscodeCommand struct {
	config *Config
	args   []string
}

func NewCmd(config *Config, args ...string) *TranscodeCommand {
	return &TranscodeCommand{config: config, args: args}
}

// Run spawns the ffmpeg subprocess and blocks until it finishes. The
// context is plumbed through to exec so the process is killed if the
// context is cancelled before completion.
func (cmd *TranscodeCommand) Run(ctx context.Context) error {
	proc := exec.CommandContext(ctx, cmd.config.ffmpegBin(), cmd.args...)

	stderr := &bytes.Buffer{}
	proc.Stderr = stderr

	log.Emit(logger.DEBUG, "Running %s\n", cmd)
	if err := proc.Run(); err != nil {
		commandErr := &CommandError{Args: cmd.args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		log.Emit(logger.ERROR, "%s failed: %s\n", cmd, commandErr.Error())

		return commandErr
	}

	return nil
}

func (cmd *TranscodeCommand) String() string {
	return fmt.Sprintf("{ffmpeg args=[%s]}", strings.Join(cmd.args, " "))
}
