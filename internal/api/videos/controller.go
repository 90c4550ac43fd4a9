package videos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hbomb79/Iris/internal/ffmpeg"
	"github.com/hbomb79/Iris/internal/media"
	"github.com/labstack/echo/v4"
)

const defaultThumbnailCount = 3

type (
	// MediaService exposes the toolkit-backed operations the video
	// endpoints delegate to.
	MediaService interface {
		Concatenate(ctx context.Context, first media.Upload, second media.Upload) ([]byte, error)
		Standardize(ctx context.Context, video media.Upload) ([]byte, error)
		Inspect(ctx context.Context, video media.Upload) (*ffmpeg.ProbeResult, error)
		Compose(ctx context.Context, archive media.Upload, frameRate int) ([]byte, error)
		Overlay(ctx context.Context, video media.Upload, overlayPayload string, frameRate int) ([]byte, error)
		Thumbnails(ctx context.Context, video media.Upload, count int) ([]byte, error)
	}

	composeRequest struct {
		FrameRate int `form:"framerate" validate:"required,gt=0"`
	}

	overlayRequest struct {
		Overlays  string `form:"overlays" validate:"required"`
		FrameRate int    `form:"framerate" validate:"required,gt=0"`
	}

	// Controller is responsible for defining the routes for the video
	// operations and mapping their outcomes on to HTTP responses.
	Controller struct {
		service MediaService
	}
)

func New(service MediaService) *Controller {
	return &Controller{service: service}
}

// SetRoutes accepts the Echo group for the video endpoints and sets the
// routes on them.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/concatenate/", controller.concatenate)
	eg.POST("/standardize/", controller.standardize)
	eg.POST("/inspect/", controller.inspect)
	eg.POST("/compose/", controller.compose)
	eg.POST("/overlay/", controller.overlay)
	eg.POST("/thumbnails/", controller.thumbnails)
}

// concatenate joins the 'first' and 'second' uploads in to a single video
// byte stream.
func (controller *Controller) concatenate(ec echo.Context) error {
	first, closeFirst, err := formUpload(ec, "first")
	if err != nil {
		return err
	}
	defer closeFirst()

	second, closeSecond, err := formUpload(ec, "second")
	if err != nil {
		return err
	}
	defer closeSecond()

	output, err := controller.service.Concatenate(ec.Request().Context(), first, second)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.Blob(http.StatusOK, "video/mp4", output)
}

// standardize normalises the 'video' upload and returns the re-encoded
// byte stream.
func (controller *Controller) standardize(ec echo.Context) error {
	video, closeVideo, err := formUpload(ec, "video")
	if err != nil {
		return err
	}
	defer closeVideo()

	output, err := controller.service.Standardize(ec.Request().Context(), video)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.Blob(http.StatusOK, "video/mp4", output)
}

// inspect probes the 'video' upload and returns its metadata record.
func (controller *Controller) inspect(ec echo.Context) error {
	video, closeVideo, err := formUpload(ec, "video")
	if err != nil {
		return err
	}
	defer closeVideo()

	result, err := controller.service.Inspect(ec.Request().Context(), video)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.JSON(http.StatusOK, NewProbeDto(result))
}

// compose encodes the image frames inside the 'frames' archive upload in
// to a video at the requested frame rate.
func (controller *Controller) compose(ec echo.Context) error {
	var request composeRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Request parameters illegal: %v", err))
	}
	if err := ec.Validate(&request); err != nil {
		return err
	}

	archive, closeArchive, err := formUpload(ec, "frames")
	if err != nil {
		return err
	}
	defer closeArchive()

	output, err := controller.service.Compose(ec.Request().Context(), archive, request.FrameRate)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.Blob(http.StatusOK, "video/mp4", output)
}

// overlay burns the client-supplied text overlays in to the 'video'
// upload.
func (controller *Controller) overlay(ec echo.Context) error {
	var request overlayRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Request parameters illegal: %v", err))
	}
	if err := ec.Validate(&request); err != nil {
		return err
	}

	video, closeVideo, err := formUpload(ec, "video")
	if err != nil {
		return err
	}
	defer closeVideo()

	output, err := controller.service.Overlay(ec.Request().Context(), video, request.Overlays, request.FrameRate)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.Blob(http.StatusOK, "video/mp4", output)
}

// thumbnails samples evenly-spaced frames from the 'video' upload and
// returns them as a zip archive. The 'count' parameter is optional and
// defaults to 3.
func (controller *Controller) thumbnails(ec echo.Context) error {
	count := defaultThumbnailCount
	if raw := ec.FormValue("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Thumbnail count is not a valid integer")
		}

		count = parsed
	}

	video, closeVideo, err := formUpload(ec, "video")
	if err != nil {
		return err
	}
	defer closeVideo()

	output, err := controller.service.Thumbnails(ec.Request().Context(), video, count)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.Blob(http.StatusOK, "application/zip", output)
}

// formUpload extracts the named multipart file from the request. The
// returned closer must be deferred by the caller; a missing part is a
// client error.
func formUpload(ec echo.Context, field string) (media.Upload, func(), error) {
	fileHeader, err := ec.FormFile(field)
	if err != nil {
		return media.Upload{}, nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Request is missing the '%s' file upload", field))
	}

	source, err := fileHeader.Open()
	if err != nil {
		return media.Upload{}, nil, echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to open the '%s' file upload", field))
	}

	return media.Upload{Filename: fileHeader.Filename, Source: source}, func() { source.Close() }, nil
}

// mapServiceError translates errors from the media service in to HTTP
// errors: client input errors become 400s, and toolkit failures become
// 500s whose body carries the toolkit's stderr verbatim.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, media.ErrInvalidFrameRate),
		errors.Is(err, media.ErrInvalidThumbnailCount),
		errors.Is(err, media.ErrNotAnArchive),
		errors.Is(err, media.ErrNoFrames),
		errors.Is(err, media.ErrUnreadableFrame),
		errors.Is(err, media.ErrMalformedOverlays):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var commandErr *ffmpeg.CommandError
	if errors.As(err, &commandErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, commandErr.Error())
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
