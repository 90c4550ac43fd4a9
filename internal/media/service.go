package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hbomb79/Iris/internal/ffmpeg"
	"github.com/hbomb79/Iris/pkg/logger"
)

var log = logger.Get("Media")

// Client input errors. Each of these is raised before any toolkit
// subprocess is launched and is surfaced by the API layer as a 400.
var (
	ErrInvalidFrameRate      = errors.New("frame rate must be a positive integer")
	ErrInvalidThumbnailCount = errors.New("thumbnail count must be a positive integer")
	ErrNotAnArchive          = errors.New("uploaded file is not a readable zip archive")
	ErrNoFrames              = errors.New("archive contains no image frames")
	ErrUnreadableFrame       = errors.New("archive entry could not be decoded as an image")
	ErrMalformedOverlays     = errors.New("malformed overlay descriptors")
)

type (
	// Executor abstracts the external toolkit: spawning a transcode
	// subprocess with an argument list, and probing a file for metadata.
	Executor interface {
		Transcode(ctx context.Context, args ...string) error
		Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
		MediaDuration(ctx context.Context, path string) (float64, error)
	}

	Config struct {
		StagingDirPath string `yaml:"staging_dir" env:"MEDIA_STAGING_DIR"`
		FontDirPath    string `yaml:"font_dir" env:"MEDIA_FONT_DIR" env-default:"/usr/share/fonts/truetype"`
	}

	// Upload is an uploaded file as received by the API layer: the
	// client-declared filename and the raw bytes. It is staged once in to
	// a workspace and never mutated.
	Upload struct {
		Filename string
		Source   io.Reader
	}

	// Service implements the media operations by staging uploads in to a
	// scoped workspace, delegating the actual processing to the external
	// toolkit, and reading the produced artifacts back.
	Service struct {
		config   Config
		executor Executor
	}
)

func NewService(config Config, executor Executor) *Service {
	return &Service{config: config, executor: executor}
}

// Concatenate joins the two uploaded videos in sequence without
// re-encoding, using the toolkit's concat demuxer.
func (service *Service) Concatenate(ctx context.Context, first Upload, second Upload) ([]byte, error) {
	workspace, err := NewWorkspace(service.config.StagingDirPath)
	if err != nil {
		return nil, err
	}
	defer workspace.Close()

	firstPath, err := workspace.Stage("first.mp4", first.Source)
	if err != nil {
		return nil, err
	}

	secondPath, err := workspace.Stage("second.mp4", second.Source)
	if err != nil {
		return nil, err
	}

	listPath, err := workspace.WriteFile("concat.txt", []byte(fmt.Sprintf("file '%s'\nfile '%s'\n", firstPath, secondPath)))
	if err != nil {
		return nil, err
	}

	outputPath := workspace.Path("output.mp4")
	if err := service.executor.Transcode(ctx,
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	); err != nil {
		return nil, err
	}

	return readArtifact(outputPath)
}

// Standardize normalises the uploaded video to 30fps, 1080x1920 scaling
// and an x264 encode.
func (service *Service) Standardize(ctx context.Context, video Upload) ([]byte, error) {
	workspace, err := NewWorkspace(service.config.StagingDirPath)
	if err != nil {
		return nil, err
	}
	defer workspace.Close()

	inputPath, err := workspace.Stage("input.mp4", video.Source)
	if err != nil {
		return nil, err
	}

	outputPath := workspace.Path("output.mp4")
	if err := service.executor.Transcode(ctx,
		"-i", inputPath,
		"-r", "30",
		"-vf", "scale=-1080:1920",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		outputPath,
	); err != nil {
		return nil, err
	}

	return readArtifact(outputPath)
}

// Inspect probes the uploaded video and returns its flattened stream
// metadata.
func (service *Service) Inspect(ctx context.Context, video Upload) (*ffmpeg.ProbeResult, error) {
	workspace, err := NewWorkspace(service.config.StagingDirPath)
	if err != nil {
		return nil, err
	}
	defer workspace.Close()

	inputPath, err := workspace.Stage("input.mp4", video.Source)
	if err != nil {
		return nil, err
	}

	return service.executor.Probe(ctx, inputPath)
}

// Compose encodes the ordered image frames inside the uploaded zip
// archive in to a single video at the requested frame rate.
func (service *Service) Compose(ctx context.Context, archive Upload, frameRate int) ([]byte, error) {
	if frameRate <= 0 {
		return nil, ErrInvalidFrameRate
	}

	workspace, err := NewWorkspace(service.config.StagingDirPath)
	if err != nil {
		return nil, err
	}
	defer workspace.Close()

	archivePath, err := workspace.Stage("frames.zip", archive.Source)
	if err != nil {
		return nil, err
	}

	pattern, count, err := stageFrames(workspace, archivePath)
	if err != nil {
		return nil, err
	}

	log.Emit(logger.INFO, "Composing %d frames in to video at %dfps\n", count, frameRate)

	outputPath := workspace.Path("output.mp4")
	if err := service.executor.Transcode(ctx,
		"-framerate", strconv.Itoa(frameRate),
		"-i", pattern,
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-tune", "film",
		outputPath,
	); err != nil {
		return nil, err
	}

	return readArtifact(outputPath)
}

// Overlay burns the client-described text overlays in to the uploaded
// video at the requested frame rate. The overlay payload is the raw
// JSON-encoded descriptor sequence; it is parsed - and rejected if
// malformed - before any subprocess is launched.
func (service *Service) Overlay(ctx context.Context, video Upload, overlayPayload string, frameRate int) ([]byte, error) {
	if frameRate <= 0 {
		return nil, ErrInvalidFrameRate
	}

	overlays, err := ParseOverlays(overlayPayload)
	if err != nil {
		return nil, err
	}

	workspace, err := NewWorkspace(service.config.StagingDirPath)
	if err != nil {
		return nil, err
	}
	defer workspace.Close()

	inputPath, err := workspace.Stage("input.mp4", video.Source)
	if err != nil {
		return nil, err
	}

	outputPath := workspace.Path("output.mp4")
	if err := service.executor.Transcode(ctx,
		"-i", inputPath,
		"-vf", FilterGraph(overlays, service.config.FontDirPath),
		"-r", strconv.Itoa(frameRate),
		"-c:v", "libx264",
		"-preset", "fast",
		outputPath,
	); err != nil {
		return nil, err
	}

	return readArtifact(outputPath)
}

// Thumbnails samples `count` evenly-spaced frames from the uploaded video
// and returns them packaged as a zip archive of JPEGs. Timestamps are
// spread over the container duration such that the first and last
// thumbnails sit one interval away from the start and end.
func (service *Service) Thumbnails(ctx context.Context, video Upload, count int) ([]byte, error) {
	if count <= 0 {
		return nil, ErrInvalidThumbnailCount
	}

	workspace, err := NewWorkspace(service.config.StagingDirPath)
	if err != nil {
		return nil, err
	}
	defer workspace.Close()

	inputPath, err := workspace.Stage("input.mp4", video.Source)
	if err != nil {
		return nil, err
	}

	duration, err := service.executor.MediaDuration(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	thumbnailsDir, err := workspace.Mkdir("thumbnails")
	if err != nil {
		return nil, err
	}

	interval := duration / float64(count+1)
	for i := 1; i <= count; i++ {
		timestamp := interval * float64(i)
		if err := service.executor.Transcode(ctx,
			"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
			"-i", inputPath,
			"-vf", "scale=320:-1",
			"-vframes", "1",
			"-q:v", "2",
			workspace.Path("thumbnails", fmt.Sprintf("thumb_%d.jpg", i-1)),
		); err != nil {
			return nil, err
		}
	}

	return packageDirectory(thumbnailsDir)
}

// readArtifact reads a toolkit-produced output file back in to memory so
// it can be packaged in to the response after the workspace is removed.
func readArtifact(path string) ([]byte, error) {
	artifact, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read produced artifact: %w", err)
	}

	return artifact, nil
}
