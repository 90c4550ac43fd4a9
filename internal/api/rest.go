package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Iris/internal/api/videos"
	"github.com/hbomb79/Iris/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr           string   `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
		UploadBodyLimit    string   `yaml:"upload_body_limit" env:"API_UPLOAD_BODY_LIMIT" env-default:"2G"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"API_CORS_ALLOWED_ORIGINS" env-default:"http://localhost:5173"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router. Its
	// sole responsibility is to create the routes Iris exposes and to map
	// requests on to the video controller.
	RestGateway struct {
		config          *RestConfig
		ec              *echo.Echo
		videoController controller
	}
)

// requestValidator bridges the validator library in to Echo's Validator
// interface so controllers can validate bound request structs.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

// NewRestGateway constructs the Echo router and populates it with the
// routes defined by the video controller.
func NewRestGateway(config *RestConfig, mediaService videos.MediaService) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true
	ec.Validator = &requestValidator{validate: validator.New()}

	gateway := &RestGateway{
		config:          config,
		ec:              ec,
		videoController: videos.New(mediaService),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Use(middleware.BodyLimit(config.UploadBodyLimit))
	ec.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     config.CORSAllowedOrigins,
		AllowCredentials: true,
	}))
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/iris/v1/ping/", func(ec echo.Context) error {
		return ec.NoContent(http.StatusOK)
	})

	videoGroup := ec.Group("/api/iris/v1/videos")
	gateway.videoController.SetRoutes(videoGroup)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
