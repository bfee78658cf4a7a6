package analysis

import (
	"errors"
	"math"
	"testing"
)

func sine(n int, rate, hz, amp, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + amp*math.Sin(2*math.Pi*hz*float64(i)/rate)
	}
	return out
}

func TestDominantFrequency(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		rate     float64
		hz       float64
		expected float64
	}{
		{"power of two", 256, 64, 4, 4},
		{"odd length", 240, 60, 2, 2},
		{"slow shedding", 600, 60, 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sine(tt.n, tt.rate, tt.hz, 3, 40)
			got, err := DominantFrequency(data, tt.rate)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected %f Hz, got %f", tt.expected, got)
			}
		})
	}
}

func TestDominantFrequencyErrors(t *testing.T) {
	if _, err := DominantFrequency([]float64{1, 2}, 60); !errors.Is(err, ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
	if _, err := DominantFrequency(make([]float64, 16), 0); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate, got %v", err)
	}

	flat := make([]float64, 64)
	for i := range flat {
		flat[i] = 9.81
	}
	if _, err := DominantFrequency(flat, 60); !errors.Is(err, ErrNoOscillation) {
		t.Errorf("expected ErrNoOscillation, got %v", err)
	}
}

func TestRMS(t *testing.T) {
	data := sine(600, 60, 1, 2, 5)
	if got := RMS(data); math.Abs(got-math.Sqrt2) > 1e-6 {
		t.Errorf("expected %f, got %f", math.Sqrt2, got)
	}
	if got := RMS(nil); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
}
