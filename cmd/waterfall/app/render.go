package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkLength = 5
	pixelsPerLabel = 150
	rowsPerLabel   = 60

	defaultTopBorder    = 30
	defaultLeftBorder   = 80
	defaultBottomBorder = 30
	defaultRightBorder  = 20

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

var ErrNoData = errors.New("no spectra to render")

// BorderConfig is the white space around the waterfall holding the scales
type BorderConfig struct {
	Top    int // frequency scale
	Left   int // time scale
	Bottom int // info bar
	Right  int
}

type RenderConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	ColorTheme     ColorTheme
	Annotate       bool
	Borders        BorderConfig

	// manual color scale ends, the smoothed percentiles otherwise
	MinPower *float64
	MaxPower *float64

	// Title is prepended to the info bar
	Title string
}

type Renderer struct {
	config RenderConfig
}

func NewRenderer(config RenderConfig) *Renderer {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	if !config.Annotate {
		config.Borders = BorderConfig{}
	} else if config.Borders == (BorderConfig{}) {
		config.Borders = BorderConfig{
			Top:    defaultTopBorder,
			Left:   defaultLeftBorder,
			Bottom: defaultBottomBorder,
			Right:  defaultRightBorder,
		}
	}

	return &Renderer{config: config}
}

// Bounds returns the power range the color scale spans
func (r *Renderer) Bounds(w *Waterfall) PowerBounds {
	return w.Bounds.Current().Override(r.config.MinPower, r.config.MaxPower)
}

func (r *Renderer) Render(w *Waterfall) (*image.RGBA, error) {
	if w.Height == 0 || w.Width == 0 {
		return nil, ErrNoData
	}

	b := r.config.Borders
	img := image.NewRGBA(image.Rect(0, 0, w.Width+b.Left+b.Right, w.Height+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	if r.config.Annotate {
		ann, err := newAnnotator(r.config)
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, w); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	cm := NewColorMapper(r.config.ColorTheme, r.Bounds(w))
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			img.Set(b.Left+x, b.Top+y, cm.Color(w.Power(x, y)))
		}
	}

	return img, nil
}

type annotator struct {
	context  *freetype.Context
	face     font.Face
	config   RenderConfig
	ascent   int
	descent  int
	lineSkip int
}

func newAnnotator(config RenderConfig) (*annotator, error) {
	parsed, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsed)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	face := truetype.NewFace(parsed, &truetype.Options{
		Size:    fontSize,
		DPI:     dpi,
		Hinting: font.HintingNone,
	})
	metrics := face.Metrics()

	return &annotator{
		context:  ctx,
		face:     face,
		config:   config,
		ascent:   metrics.Ascent.Round(),
		descent:  metrics.Descent.Round(),
		lineSkip: metrics.Height.Round(),
	}, nil
}

func (a *annotator) Close() error {
	return a.face.Close()
}

func (a *annotator) annotate(img *image.RGBA, w *Waterfall) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *Waterfall) error
	}{
		{"drawing frequency scale", a.drawFrequencyScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, w); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, w *Waterfall) error {
	count := max(1, w.Width/pixelsPerLabel)
	pxPerLabel := w.Width / count
	hzPerLabel := float64(pxPerLabel) * w.HzPerPixel()

	top := a.config.Borders.Top
	baseline := top - tickMarkLength - a.descent - 2

	for i := 0; i <= count; i++ {
		px := min(i*pxPerLabel, w.Width-1)
		x := a.config.Borders.Left + px

		for y := top - tickMarkLength; y < top; y++ {
			img.Set(x, y, color.Black)
		}

		label := humanize.SIWithDigits(w.FrequencyMin+float64(i)*hzPerLabel, 3, "Hz")
		width := font.MeasureString(a.face, label).Round()

		// keep the outer labels inside the image
		left := min(max(x-width/2, 0), img.Bounds().Max.X-width)
		if _, err := a.context.DrawString(label, freetype.Pt(left, baseline)); err != nil {
			return err
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, w *Waterfall) error {
	left := a.config.Borders.Left

	for y := 0; y < w.Height; y += rowsPerLabel {
		imgY := a.config.Borders.Top + y

		for x := left - tickMarkLength; x < left; x++ {
			img.Set(x, imgY, color.Black)
		}

		label := w.Rows[y].Timestamp.In(a.config.Location).Format(a.config.TimeFormat)
		if _, err := a.context.DrawString(label, freetype.Pt(3, imgY+a.ascent/2)); err != nil {
			return err
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, w *Waterfall) error {
	var sb strings.Builder

	if a.config.Title != "" {
		sb.WriteString(a.config.Title)
		sb.WriteString("; ")
	}
	fmt.Fprintf(&sb, "%s - %s; %s - %s; 1px = %s",
		humanize.SIWithDigits(w.FrequencyMin, 3, "Hz"),
		humanize.SIWithDigits(w.FrequencyMax, 3, "Hz"),
		w.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		w.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat),
		humanize.SIWithDigits(w.HzPerPixel(), 2, "Hz"))

	bottom := a.config.Borders.Bottom
	baseline := img.Bounds().Max.Y - (bottom-a.lineSkip)/2 - a.descent
	_, err := a.context.DrawString(sb.String(), freetype.Pt(3, baseline))
	return err
}
