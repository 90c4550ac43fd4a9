package internal

import (
	"context"
	"os"
	"sync"

	"github.com/hbomb79/Iris/internal/api"
	"github.com/hbomb79/Iris/internal/ffmpeg"
	"github.com/hbomb79/Iris/internal/media"
	"github.com/hbomb79/Iris/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// Iris represents the top-level object for the server, and is
	// responsible for initialising the media service, the toolkit
	// commander, and the REST gateway that fronts them.
	irisImpl struct {
		config      IrisConfig
		restGateway RunnableService
	}
)

const IRIS_USER_DIR_SUFFIX = ".iris"

func New(config IrisConfig) *irisImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Iris services using config: %#v\n", config)

	config.Media.StagingDirPath = config.getStagingDir()
	if err := os.MkdirAll(config.Media.StagingDirPath, 0o755); err != nil {
		panic("failed to create staging directory: " + err.Error())
	}

	commander := ffmpeg.NewCommander(&config.Format)
	mediaService := media.NewService(config.Media, commander)

	return &irisImpl{
		config:      config,
		restGateway: api.NewRestGateway(&config.Rest, mediaService),
	}
}

// Run will start Iris by bringing up the REST gateway. This function will
// not return until Iris is stopped; to stop Iris, the provided context
// must be cancelled. Errors from which Iris cannot recover will also
// cause it to stop.
func (iris *irisImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	wg := &sync.WaitGroup{}
	iris.spawnAsyncService(ctx, wg, iris.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Iris services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided service as its own go-routine,
// ensuring that the service waitgroup is updated correctly.
func (iris *irisImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := service.Run(ctx); err != nil {
			crashHandler(serviceLabel, err)
		}
	}()
}
