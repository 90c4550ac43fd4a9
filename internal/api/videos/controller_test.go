package videos_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Iris/internal/api/videos"
	"github.com/hbomb79/Iris/internal/ffmpeg"
	"github.com/hbomb79/Iris/internal/media"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	// mediaServiceStub records the calls the controller makes and returns
	// the canned outcomes it is primed with.
	mediaServiceStub struct {
		err         error
		artifact    []byte
		probeResult *ffmpeg.ProbeResult

		concatenateCalls int
		standardizeCalls int
		inspectCalls     int
		composeCalls     int
		overlayCalls     int
		thumbnailCalls   int

		frameRate       int
		overlayPayload  string
		thumbnailCount  int
		uploadFilenames []string
	}

	formField struct{ name, value string }
	formFile  struct{ name, filename string }
)

func (stub *mediaServiceStub) Concatenate(ctx context.Context, first media.Upload, second media.Upload) ([]byte, error) {
	stub.concatenateCalls++
	stub.uploadFilenames = append(stub.uploadFilenames, first.Filename, second.Filename)
	return stub.artifact, stub.err
}

func (stub *mediaServiceStub) Standardize(ctx context.Context, video media.Upload) ([]byte, error) {
	stub.standardizeCalls++
	return stub.artifact, stub.err
}

func (stub *mediaServiceStub) Inspect(ctx context.Context, video media.Upload) (*ffmpeg.ProbeResult, error) {
	stub.inspectCalls++
	return stub.probeResult, stub.err
}

func (stub *mediaServiceStub) Compose(ctx context.Context, archive media.Upload, frameRate int) ([]byte, error) {
	stub.composeCalls++
	stub.frameRate = frameRate
	return stub.artifact, stub.err
}

func (stub *mediaServiceStub) Overlay(ctx context.Context, video media.Upload, overlayPayload string, frameRate int) ([]byte, error) {
	stub.overlayCalls++
	stub.overlayPayload = overlayPayload
	stub.frameRate = frameRate
	return stub.artifact, stub.err
}

func (stub *mediaServiceStub) Thumbnails(ctx context.Context, video media.Upload, count int) ([]byte, error) {
	stub.thumbnailCalls++
	stub.thumbnailCount = count
	return stub.artifact, stub.err
}

type requestValidator struct{ validate *validator.Validate }

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

func newRouterForTest(t *testing.T) (*echo.Echo, *mediaServiceStub) {
	t.Helper()

	ec := echo.New()
	ec.Validator = &requestValidator{validate: validator.New()}

	stub := &mediaServiceStub{artifact: []byte("artifact")}
	videos.New(stub).SetRoutes(ec.Group("/api/iris/v1/videos"))

	return ec, stub
}

// multipartRequest builds a POST request whose body carries the given
// form fields and file parts. File contents are placeholder bytes as the
// controller forwards them unread.
func multipartRequest(t *testing.T, path string, fields []formField, files []formFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, field := range fields {
		require.NoError(t, writer.WriteField(field.name, field.value))
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.name, file.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("payload"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, path, body)
	request.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

	return request
}

func serve(ec *echo.Echo, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	ec.ServeHTTP(recorder, request)

	return recorder
}

func Test_Concatenate_ReturnsVideo(t *testing.T) {
	ec, stub := newRouterForTest(t)

	request := multipartRequest(t, "/api/iris/v1/videos/concatenate/", nil, []formFile{
		{name: "first", filename: "one.mp4"},
		{name: "second", filename: "two.mp4"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "video/mp4", recorder.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "artifact", recorder.Body.String())
	assert.Equal(t, 1, stub.concatenateCalls)
	assert.Equal(t, []string{"one.mp4", "two.mp4"}, stub.uploadFilenames)
}

func Test_Concatenate_MissingUpload(t *testing.T) {
	ec, stub := newRouterForTest(t)

	request := multipartRequest(t, "/api/iris/v1/videos/concatenate/", nil, []formFile{
		{name: "first", filename: "one.mp4"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "second")
	assert.Zero(t, stub.concatenateCalls)
}

func Test_Concatenate_ToolkitFailure(t *testing.T) {
	ec, stub := newRouterForTest(t)
	stub.err = &ffmpeg.CommandError{Stderr: "moov atom not found", Err: errors.New("exit status 1")}

	request := multipartRequest(t, "/api/iris/v1/videos/concatenate/", nil, []formFile{
		{name: "first", filename: "one.mp4"},
		{name: "second", filename: "two.mp4"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "moov atom not found")
}

func Test_Standardize_ReturnsVideo(t *testing.T) {
	ec, stub := newRouterForTest(t)

	request := multipartRequest(t, "/api/iris/v1/videos/standardize/", nil, []formFile{
		{name: "video", filename: "raw.mov"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "video/mp4", recorder.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, stub.standardizeCalls)
}

func Test_Inspect_ReturnsMetadata(t *testing.T) {
	ec, stub := newRouterForTest(t)
	stub.probeResult = &ffmpeg.ProbeResult{
		Format:  "mov,mp4,m4a,3gp,3g2,mj2",
		Size:    "1024",
		FPS:     30,
		Width:   1920,
		Height:  1080,
		Codec:   "h264",
		Bitrate: "512000",
	}

	request := multipartRequest(t, "/api/iris/v1/videos/inspect/", nil, []formFile{
		{name: "video", filename: "clip.mp4"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, stub.inspectCalls)
	assert.JSONEq(t, `{
		"format": "mov,mp4,m4a,3gp,3g2,mj2",
		"size": "1024",
		"fps": 30,
		"width": 1920,
		"height": 1080,
		"codec": "h264",
		"bitrate": "512000"
	}`, recorder.Body.String())
}

func Test_Compose_RejectsInvalidFrameRate(t *testing.T) {
	tests := []struct {
		Summary string
		Fields  []formField
	}{
		{Summary: "missing frame rate", Fields: nil},
		{Summary: "zero frame rate", Fields: []formField{{name: "framerate", value: "0"}}},
		{Summary: "negative frame rate", Fields: []formField{{name: "framerate", value: "-24"}}},
	}

	for _, test := range tests {
		t.Run(test.Summary, func(t *testing.T) {
			ec, stub := newRouterForTest(t)

			request := multipartRequest(t, "/api/iris/v1/videos/compose/", test.Fields, []formFile{
				{name: "frames", filename: "frames.zip"},
			})
			recorder := serve(ec, request)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Zero(t, stub.composeCalls, "service must not be reached with an invalid frame rate")
		})
	}
}

func Test_Compose_MissingArchive(t *testing.T) {
	ec, stub := newRouterForTest(t)

	request := multipartRequest(t, "/api/iris/v1/videos/compose/", []formField{{name: "framerate", value: "24"}}, nil)
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "frames")
	assert.Zero(t, stub.composeCalls)
}

func Test_Compose_ReturnsVideo(t *testing.T) {
	ec, stub := newRouterForTest(t)

	request := multipartRequest(t, "/api/iris/v1/videos/compose/", []formField{{name: "framerate", value: "24"}}, []formFile{
		{name: "frames", filename: "frames.zip"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, stub.composeCalls)
	assert.Equal(t, 24, stub.frameRate)
}

func Test_Compose_NotAnArchive(t *testing.T) {
	ec, stub := newRouterForTest(t)
	stub.err = media.ErrNotAnArchive

	request := multipartRequest(t, "/api/iris/v1/videos/compose/", []formField{{name: "framerate", value: "24"}}, []formFile{
		{name: "frames", filename: "frames.zip"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), media.ErrNotAnArchive.Error())
}

func Test_Overlay_RejectsMissingOverlays(t *testing.T) {
	ec, stub := newRouterForTest(t)

	request := multipartRequest(t, "/api/iris/v1/videos/overlay/", []formField{{name: "framerate", value: "30"}}, []formFile{
		{name: "video", filename: "clip.mp4"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Zero(t, stub.overlayCalls)
}

func Test_Overlay_ForwardsPayload(t *testing.T) {
	ec, stub := newRouterForTest(t)

	payload := `[{"text": "Hi", "fontSize": 24, "fontFamily": "Arial", "x": 1, "y": 2, "color": "FFFFFF", "backgroundColor": "000000"}]`
	request := multipartRequest(t, "/api/iris/v1/videos/overlay/", []formField{
		{name: "overlays", value: payload},
		{name: "framerate", value: "30"},
	}, []formFile{
		{name: "video", filename: "clip.mp4"},
	})
	recorder := serve(ec, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, stub.overlayCalls)
	assert.Equal(t, payload, stub.overlayPayload)
	assert.Equal(t, 30, stub.frameRate)
}

func Test_Thumbnails_CountHandling(t *testing.T) {
	tests := []struct {
		Summary       string
		Fields        []formField
		ExpectedCode  int
		ExpectedCount int
	}{
		{Summary: "absent count defaults", Fields: nil, ExpectedCode: http.StatusOK, ExpectedCount: 3},
		{Summary: "explicit count forwarded", Fields: []formField{{name: "count", value: "5"}}, ExpectedCode: http.StatusOK, ExpectedCount: 5},
		{Summary: "non-integer count rejected", Fields: []formField{{name: "count", value: "abc"}}, ExpectedCode: http.StatusBadRequest},
	}

	for _, test := range tests {
		t.Run(test.Summary, func(t *testing.T) {
			ec, stub := newRouterForTest(t)

			request := multipartRequest(t, "/api/iris/v1/videos/thumbnails/", test.Fields, []formFile{
				{name: "video", filename: "clip.mp4"},
			})
			recorder := serve(ec, request)

			assert.Equal(t, test.ExpectedCode, recorder.Code)
			if test.ExpectedCode == http.StatusOK {
				assert.Equal(t, "application/zip", recorder.Header().Get(echo.HeaderContentType))
				assert.Equal(t, test.ExpectedCount, stub.thumbnailCount)
			} else {
				assert.Zero(t, stub.thumbnailCalls)
			}
		})
	}
}
