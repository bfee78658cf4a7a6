package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrTooShort      = errors.New("analysis: need at least 4 samples")
	ErrInvalidRate   = errors.New("analysis: sample rate must be positive")
	ErrNoOscillation = errors.New("analysis: signal has no oscillating component")
)

// Spectrum is the one-sided amplitude spectrum of a real signal.
type Spectrum struct {
	Frequencies []float64
	Amplitudes  []float64
}

// PowerSpectrum removes the mean, applies a Hann window and returns the
// amplitudes of bins 0..n/2. Any length is accepted.
func PowerSpectrum(data []float64, sampleRate float64) (*Spectrum, error) {
	n := len(data)
	if n < 4 {
		return nil, ErrTooShort
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidRate
	}

	mean := stat.Mean(data, nil)
	x := make([]float64, n)
	for i, v := range data {
		x[i] = v - mean
	}
	window.Apply(x, window.Hann)

	coeffs := fft.FFTReal(x)
	s := &Spectrum{
		Frequencies: make([]float64, n/2+1),
		Amplitudes:  make([]float64, n/2+1),
	}
	for k := range s.Amplitudes {
		s.Frequencies[k] = float64(k) * sampleRate / float64(n)
		s.Amplitudes[k] = cmplx.Abs(coeffs[k])
	}
	return s, nil
}

// Peak returns the index of the strongest non-DC bin.
func (s *Spectrum) Peak() int {
	best := 0
	for k := 1; k < len(s.Amplitudes); k++ {
		if best == 0 || s.Amplitudes[k] > s.Amplitudes[best] {
			best = k
		}
	}
	return best
}

// DominantFrequency returns the frequency in Hz of the strongest
// oscillation of data sampled at sampleRate.
func DominantFrequency(data []float64, sampleRate float64) (float64, error) {
	s, err := PowerSpectrum(data, sampleRate)
	if err != nil {
		return 0, err
	}
	k := s.Peak()
	if s.Amplitudes[k] < 1e-9*float64(len(data)) {
		return 0, ErrNoOscillation
	}
	return s.Frequencies[k], nil
}

// RMS is the root mean square of the fluctuation about the mean.
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(data, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}
