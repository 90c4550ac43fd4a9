package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/Iris/internal"
	"github.com/joho/godotenv"
)

// main is the entry point to the program. The user configuration is
// loaded from the config file if one is present, falling back to the
// environment alone, before the Iris services are spawned.
func main() {
	configPath := flag.String("config", "iris.yaml", "path to the YAML configuration file")
	flag.Parse()

	_ = godotenv.Load()

	config := internal.IrisConfig{}
	if _, err := os.Stat(*configPath); err == nil {
		if err := config.LoadFromFile(*configPath); err != nil {
			log.Panicf("Failed to load configuration - %v\n", err.Error())
		}
	} else if err := config.LoadFromEnv(); err != nil {
		log.Panicf("Failed to load configuration - %v\n", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Panicf("Failed to initialise Iris - %v\n", err.Error())
	}
}
