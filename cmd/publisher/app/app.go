package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/radio-publisher/internal/broker"
	"github.com/roman-kulish/radio-publisher/internal/pipeline"
	"github.com/roman-kulish/radio-publisher/internal/sdr"
	"github.com/roman-kulish/radio-publisher/internal/sdr/hackrf"
	"github.com/roman-kulish/radio-publisher/internal/sdr/rtl"
	"github.com/roman-kulish/radio-publisher/internal/spectrum"
	"github.com/roman-kulish/radio-publisher/internal/storage"
)

const (
	storageDir   = "data"
	maxBatchSize = 50
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	publisher, err := broker.New(config.Broker.ToBroker(), broker.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	options := []func(d *pipeline.Driver){
		pipeline.WithLogger(logger),
		pipeline.WithRetryPolicy(config.Pipeline.Retry.Policy()),
		pipeline.WithEngine(spectrum.NewEngine(spectrum.WithWindow(config.Pipeline.Window))),
		pipeline.WithDestination(config.Broker.Destination),
		pipeline.WithBlockSize(config.Pipeline.BlockSize),
		pipeline.WithSummary(config.Pipeline.SummaryEvery, config.Pipeline.WindowBlocks),
		pipeline.WithMaxReads(config.Pipeline.MaxReads),
		pipeline.WithInterval(config.Pipeline.Interval.Duration()),
		pipeline.WithSpectrumStride(config.Pipeline.SpectrumStride),
	}
	if config.Pipeline.FreshSummaryBlock != nil {
		options = append(options, pipeline.WithFreshSummaryBlock(*config.Pipeline.FreshSummaryBlock))
	}

	hardware, err := createHardware(&config.Device, logger)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	if hardware != nil {
		options = append(options, pipeline.WithHardware(hardware))
	}

	if config.Storage.Enabled {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing storage failed", slog.String("error", err.Error()))
			}
		}()

		recorder := storage.NewRecorder(store,
			storage.WithBatchSize(config.Storage.MaxBatchSize),
			storage.WithSessionConfig(config.Device),
		)
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warn("flushing archive failed", slog.String("error", err.Error()))
			}
		}()

		options = append(options, pipeline.WithArchive(recorder))
	}

	driver, err := pipeline.New(publisher, createSimulator(&config.Device), options...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	return driver.Run(ctx)
}

// createHardware returns the opener for the configured receiver, nil when
// the run is simulated only
func createHardware(config *DeviceConfig, logger *slog.Logger) (sdr.Opener, error) {
	switch config.Type {
	case DeviceAuto:
		if rtl.NativeAvailable {
			return rtl.OpenNative(config.RTLSDR, logger), nil
		}
		return rtl.OpenProcess(config.RTLSDR, logger), nil

	case DeviceRTLSDRNative:
		return rtl.OpenNative(config.RTLSDR, logger), nil

	case DeviceRTLSDR:
		return rtl.OpenProcess(config.RTLSDR, logger), nil

	case DeviceHackRF:
		return hackrf.OpenProcess(config.HackRF, logger), nil

	case DeviceSimulated:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown type '%s'", config.Type)
	}
}

// createSimulator tunes the fallback source like the configured receiver
func createSimulator(config *DeviceConfig) sdr.Opener {
	options := []func(s *sdr.Simulator){sdr.WithSimulationMode(config.Simulation)}

	switch {
	case config.Type == DeviceHackRF && config.HackRF != nil:
		options = append(options, sdr.WithTuning(float64(config.HackRF.CenterFrequency), float64(config.HackRF.SampleRate)))
	case config.RTLSDR != nil:
		options = append(options, sdr.WithTuning(float64(config.RTLSDR.CenterFrequency), float64(config.RTLSDR.SampleRate)))
	}

	if config.Seed != nil {
		options = append(options, sdr.WithSeed(*config.Seed, ^*config.Seed))
	}

	return func(context.Context) (sdr.Source, error) {
		return sdr.NewSimulator(options...), nil
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = storageDir
	}
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("storage directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("sdr_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
