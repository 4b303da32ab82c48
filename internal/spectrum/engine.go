package spectrum

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Epsilon keeps log10 finite for empty bins
const Epsilon = 1e-10

// Frame is a centred log-power spectrum in dB. Index len/2 is the carrier.
type Frame []float64

// WithWindow sets the taper applied before the FFT
func WithWindow(w Window) func(e *Engine) {
	return func(e *Engine) {
		if w != "" {
			e.window = w
		}
	}
}

// Engine computes power spectra. FFT plans are cached per block length,
// an Engine is safe for concurrent use.
type Engine struct {
	window Window

	mu    sync.Mutex
	plans map[int]*fourier.CmplxFFT
}

func NewEngine(options ...func(e *Engine)) *Engine {
	e := Engine{
		window: WindowNone,
		plans:  make(map[int]*fourier.CmplxFFT),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Window returns the configured taper
func (e *Engine) Window() Window {
	return e.window
}

// Compute returns 10·log10(|X|² + ε) of the windowed, fft-shifted block.
// The result always has the same length as samples; samples is not modified.
func (e *Engine) Compute(samples []complex128) Frame {
	n := len(samples)
	if n == 0 {
		return Frame{}
	}

	seq := make([]complex128, n)
	copy(seq, samples)
	e.window.apply(seq)

	coeff := e.Transform(seq)

	frame := make(Frame, n)
	for i := range frame {
		x := coeff[unshift(i, n)]
		frame[i] = 10 * math.Log10(Power(x)+Epsilon)
	}
	return frame
}

// Transform returns the unshifted DFT of seq
func (e *Engine) Transform(seq []complex128) []complex128 {
	if len(seq) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	plan, ok := e.plans[len(seq)]
	if !ok {
		plan = fourier.NewCmplxFFT(len(seq))
		e.plans[len(seq)] = plan
	}
	return plan.Coefficients(nil, seq)
}

// Power returns |x|²
func Power(x complex128) float64 {
	r, i := real(x), imag(x)
	return r*r + i*i
}

// unshift maps a centred index to the FFT output index, numpy fftshift order
func unshift(i, n int) int {
	return (i + n - n/2) % n
}

// BinFrequency maps a centred bin index to its offset from the centre frequency
func BinFrequency(idx, n int, sampleRate float64) float64 {
	if n == 0 {
		return 0
	}
	return float64(idx)*sampleRate/float64(n) - sampleRate/2
}

// Decimate keeps every stride-th bin starting from the first.
// A stride of one or less returns a copy.
func Decimate(frame Frame, stride int) Frame {
	if stride <= 1 {
		out := make(Frame, len(frame))
		copy(out, frame)
		return out
	}

	out := make(Frame, 0, (len(frame)+stride-1)/stride)
	for i := 0; i < len(frame); i += stride {
		out = append(out, frame[i])
	}
	return out
}
