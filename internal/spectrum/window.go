package spectrum

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/window"
)

const (
	// WindowNone is the default, the block goes into the FFT unmodified
	WindowNone     Window = "none"
	WindowHamming  Window = "hamming"
	WindowHann     Window = "hann"
	WindowBlackman Window = "blackman"
)

var windowFuncs = map[Window]func([]complex128) []complex128{
	WindowNone:     nil,
	WindowHamming:  window.HammingComplex,
	WindowHann:     window.HannComplex,
	WindowBlackman: window.BlackmanComplex,
}

// Window selects the taper applied before the FFT
type Window string

func (w Window) String() string {
	return string(w)
}

func (w Window) Validate() error {
	if w == "" {
		return nil
	}
	if _, ok := windowFuncs[w]; !ok {
		return fmt.Errorf("spectrum.Window: invalid window function: %s", string(w))
	}
	return nil
}

// apply tapers seq in place. Sequences shorter than two samples are left alone.
func (w Window) apply(seq []complex128) {
	fn := windowFuncs[w]
	if fn == nil || len(seq) < 2 {
		return
	}
	fn(seq)
}
