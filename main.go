package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dirwatch/corewatch/config"
	"github.com/dirwatch/corewatch/event"
	"github.com/dirwatch/corewatch/service"
)

var (
	configPath = flag.String("config", "config.yaml", "Specify a path to load the config from")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flag.Parse()

	var conf config.Config
	err := config.FromYamlFile(*configPath, &conf)
	if err != nil {
		log.Fatal().Caller().Err(err).Msg("failed to read config")
	}

	if conf.LogLevel != "" {
		if level, err := zerolog.ParseLevel(conf.LogLevel); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	svc, err := service.New()
	if err != nil {
		log.Fatal().Caller().Err(err).Msg("failed to start watch service")
	}

	err = svc.Start(&conf, func(root string, batch []event.Event) {
		for _, e := range batch {
			log.Info().
				Str("root", root).
				Str("path", e.Path).
				Str("type", e.Type().String()).
				Str("old_path", e.OldPath).
				Bool("dir", e.IsDir).
				Msg("event")
		}
	})
	if err != nil {
		log.Fatal().Caller().Err(err).Msg("failed to start subscriptions")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("stopping dirwatch service")

	if err := svc.WriteSnapshots(&conf); err != nil {
		log.Error().Caller().Err(err).Msg("failed to persist snapshots on shutdown")
	}

	if err := svc.Close(); err != nil {
		log.Fatal().Caller().Err(err).Msg("failed to stop watch service")
	}
}
