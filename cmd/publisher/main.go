package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/roman-kulish/radio-publisher/cmd/publisher/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		envPath    string
		maxReads   int
		simulate   bool
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&envPath, "env", ".env", "Path to the environment file")
	flag.IntVar(&maxReads, "n", -1, "Number of reads before stopping, 0 streams until interrupted")
	flag.BoolVar(&simulate, "simulate", false, "Skip hardware and stream simulated samples")
	flag.Parse()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error(fmt.Sprintf("failed to load environment file: %s", err.Error()), slog.String("path", envPath))
			os.Exit(1)
		}
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	if err = config.ApplyEnv(os.LookupEnv); err != nil {
		logger.Error(fmt.Sprintf("invalid environment: %s", err.Error()))
		os.Exit(1)
	}

	if maxReads >= 0 {
		config.Pipeline.MaxReads = maxReads
	}
	if simulate {
		config.Device.Type = app.DeviceSimulated
	}

	if err = config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("invalid configuration: %s", err.Error()))
		os.Exit(1)
	}

	level, _ := config.Settings.Level()
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
