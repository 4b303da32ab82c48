package sdr

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// SimulationPeaks adds 1-5 impulses at random positions on top of the noise floor
	SimulationPeaks SimulationMode = "peaks"

	// SimulationGaussian adds a single Gaussian shaped bump centred in the block
	SimulationGaussian SimulationMode = "gaussian"

	SimulatorDevice = "simulator"

	minPeaks        = 1
	maxPeaks        = 5
	minPeakStrength = 5
	maxPeakStrength = 20

	gaussianAmplitude = 10
	gaussianWidthDiv  = 20 // sigma = n / gaussianWidthDiv
)

type SimulationMode string

func (m SimulationMode) String() string {
	return string(m)
}

func (m SimulationMode) Validate() error {
	switch m {
	case "", SimulationPeaks, SimulationGaussian:
		return nil
	}
	return fmt.Errorf("sdr.SimulationMode: invalid mode: %s", string(m))
}

// WithSimulationMode selects how peaks are synthesised
func WithSimulationMode(mode SimulationMode) func(s *Simulator) {
	return func(s *Simulator) {
		if mode != "" {
			s.mode = mode
		}
	}
}

// WithSeed makes the simulator output reproducible
func WithSeed(seed1, seed2 uint64) func(s *Simulator) {
	return func(s *Simulator) {
		s.src = rand.NewPCG(seed1, seed2)
	}
}

// WithTuning sets the centre frequency and sample rate reported in blocks
func WithTuning(centerFrequency, sampleRate float64) func(s *Simulator) {
	return func(s *Simulator) {
		s.centerFrequency = centerFrequency
		s.sampleRate = sampleRate
	}
}

// Simulator is a Source that synthesises complex Gaussian noise with peaks.
// It never fails.
type Simulator struct {
	mode            SimulationMode
	centerFrequency float64
	sampleRate      float64

	mu    sync.Mutex
	src   rand.Source
	rng   *rand.Rand
	noise distuv.Normal
	peak  distuv.Uniform
}

// NewSimulator creates a simulated source tuned to the default frequency and rate
func NewSimulator(options ...func(s *Simulator)) *Simulator {
	s := Simulator{
		mode:            SimulationPeaks,
		centerFrequency: DefaultCenterFrequency,
		sampleRate:      DefaultSampleRate,
		src:             rand.NewPCG(rand.Uint64(), rand.Uint64()),
	}

	for _, option := range options {
		option(&s)
	}

	s.rng = rand.New(s.src)
	s.noise = distuv.Normal{Mu: 0, Sigma: 1, Src: s.src}
	s.peak = distuv.Uniform{Min: minPeakStrength, Max: maxPeakStrength, Src: s.src}

	return &s
}

// Read synthesises n samples. It only fails when ctx is already done.
func (s *Simulator) Read(ctx context.Context, n int) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("sdr.Simulator: negative block size: %d", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]complex128, n)
	for i := range samples {
		samples[i] = complex(s.noise.Rand(), s.noise.Rand())
	}

	if n > 0 {
		switch s.mode {
		case SimulationGaussian:
			s.addGaussian(samples)
		default:
			s.addPeaks(samples)
		}
	}

	return &Block{
		Samples:         samples,
		CenterFrequency: s.centerFrequency,
		SampleRate:      s.sampleRate,
		Simulated:       true,
		Timestamp:       time.Now(),
	}, nil
}

func (s *Simulator) addPeaks(samples []complex128) {
	numPeaks := minPeaks + s.rng.IntN(maxPeaks-minPeaks+1)
	for i := 0; i < numPeaks; i++ {
		pos := s.rng.IntN(len(samples))
		strength := s.peak.Rand()
		samples[pos] += complex(strength, strength)
	}
}

func (s *Simulator) addGaussian(samples []complex128) {
	n := len(samples)
	center := float64(n) / 2
	sigma := max(float64(n)/gaussianWidthDiv, 1)

	for i := range samples {
		d := float64(i) - center
		a := gaussianAmplitude * math.Exp(-(d*d)/(2*sigma*sigma))
		samples[i] += complex(a, a)
	}
}

func (s *Simulator) Info() Info {
	return Info{
		Device:          SimulatorDevice,
		DeviceID:        s.mode.String(),
		CenterFrequency: s.centerFrequency,
		SampleRate:      s.sampleRate,
		Simulated:       true,
	}
}

// Close is a no-op
func (s *Simulator) Close() error {
	return nil
}
