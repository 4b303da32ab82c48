package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-publisher/internal/spectrum"
	"github.com/roman-kulish/radio-publisher/internal/storage"
)

const smoothingFactor = 0.3

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	session, err := findSession(ctx, store, config.SessionID)
	if err != nil {
		return err
	}

	w, err := readWaterfall(ctx, store, session, config, logger)
	if err != nil {
		return err
	}

	renderer := NewRenderer(RenderConfig{
		Location:   config.TimeZone,
		ColorTheme: config.Theme,
		Annotate:   !config.NoAnnotations,
		MinPower:   config.MinPower,
		MaxPower:   config.MaxPower,
		Title:      sessionTitle(session),
	})

	bounds := renderer.Bounds(w)
	logger.Info("rendering waterfall",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", w.Width),
			slog.Int("height", w.Height),
			slog.String("minPower", fmt.Sprintf("%0.2fdB", bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdB", bounds.Max)),
		))

	img, err := renderer.Render(w)
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	return writeImage(config.OutputFile, config.Format, img)
}

// findSession resolves id 0 to the most recent session
func findSession(ctx context.Context, store storage.Store, id int64) (*spectrum.Session, error) {
	if id > 0 {
		session, err := store.Session(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading session %d: %w", id, err)
		}
		return session, nil
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, errors.New("archive has no sessions")
	}
	return sessions[len(sessions)-1], nil
}

func readWaterfall(ctx context.Context, store storage.Store, session *spectrum.Session, config *Config, logger *slog.Logger) (*Waterfall, error) {
	var opts []storage.ReaderOption
	filters := []any{slog.Int64("session", session.ID)}

	switch {
	case config.StartTime != nil && config.EndTime != nil:
		opts = append(opts, storage.WithTimeRange(config.StartTime.UTC(), config.EndTime.UTC()))
		filters = append(filters,
			slog.String("startTime", config.StartTime.UTC().Format(time.DateTime)),
			slog.String("endTime", config.EndTime.UTC().Format(time.DateTime)))

	case config.StartTime != nil:
		opts = append(opts, storage.WithStartTime(config.StartTime.UTC()))
		filters = append(filters, slog.String("startTime", config.StartTime.UTC().Format(time.DateTime)))

	case config.EndTime != nil:
		opts = append(opts, storage.WithEndTime(config.EndTime.UTC()))
		filters = append(filters, slog.String("endTime", config.EndTime.UTC().Format(time.DateTime)))
	}

	if config.MessageType != "" {
		opts = append(opts, storage.WithMessageType(config.MessageType))
		filters = append(filters, slog.String("type", string(config.MessageType)))
	}

	logger.Info("reader configuration", filters...)

	reader, err := store.ReadSpectra(ctx, session.ID, opts...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	w := NewWaterfall(NewSmoothBounds(smoothingFactor))
	for reader.Next(ctx) {
		w.Update(reader.Current())

		if config.Verbose && w.Height%1000 == 0 {
			logger.Debug("reading spectra", slog.Int("rows", w.Height))
		}
	}
	if err = reader.Error(); err != nil {
		return nil, err
	}

	if w.Height == 0 {
		return nil, ErrNoData
	}

	bounds := w.Bounds.Current()
	logger.Info("finished reading spectra",
		slog.Group("stats",
			slog.Int("rows", w.Height),
			slog.String("startTime", w.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
			slog.String("endTime", w.TimestampEnd.In(config.TimeZone).Format(time.DateTime)),
			slog.String("minFreq", humanize.SIWithDigits(w.FrequencyMin, 3, "Hz")),
			slog.String("maxFreq", humanize.SIWithDigits(w.FrequencyMax, 3, "Hz")),
			slog.String("minPower", fmt.Sprintf("%0.2fdB", bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdB", bounds.Max)),
		))

	return w, nil
}

func sessionTitle(s *spectrum.Session) string {
	title := fmt.Sprintf("#%d %s", s.ID, s.DeviceType)
	if s.DeviceID != "" {
		title += " " + s.DeviceID
	}
	if s.Simulated {
		title += " (simulated)"
	}
	return title
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return encodeImage(out, format, img)
}

func encodeImage(w io.Writer, format ImageFormat, img image.Image) error {
	switch format {
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 98})
	default:
		return png.Encode(w, img)
	}
}
