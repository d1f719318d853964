// Command mysticd exposes MSI Mystic Light zones over HTTP, MQTT and Lua scripts.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/app"
	"github.com/dokzlo13/mysticd/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	simulate := flag.Bool("simulate", false, "Use the simulated SDK instead of the native library")
	resetState := flag.Bool("reset-state", false, "Forget the saved zone states before restoring on startup")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", configPath).Msg("Failed to load configuration")
	}
	if *simulate {
		cfg.SDK.Simulate = true
	}

	setupLogging(cfg.Log)
	log.Info().Str("config", configPath).Bool("simulate", cfg.SDK.Simulate).Msg("Starting mysticd")

	var opts []app.Option
	if *resetState {
		opts = append(opts, app.WithResetState())
	}

	daemon, err := app.New(cfg, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open the Mystic Light SDK")
	}

	if err := daemon.Run(app.SignalContext()); err != nil {
		log.Error().Err(err).Msg("mysticd stopped with errors")
		os.Exit(1)
	}
	log.Info().Msg("mysticd stopped")
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05.000",
			NoColor:    !cfg.Colors,
		})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
