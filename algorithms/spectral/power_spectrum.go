package spectral

import (
	"fmt"
	"math"
)

// PowerSpectrum converts transform output into normalized power, and
// optionally phase, per bin.
type PowerSpectrum struct {
	den float64
}

// NewPowerSpectrum creates an extractor dividing squared magnitudes by den,
// the window normalization constant.
func NewPowerSpectrum(den float64) (*PowerSpectrum, error) {
	if den <= 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return nil, fmt.Errorf("power normalization must be positive and finite, got %v", den)
	}
	return &PowerSpectrum{den: den}, nil
}

// Den returns the normalization constant.
func (ps *PowerSpectrum) Den() float64 {
	return ps.den
}

// Compute writes power[i] = |bins[i]|^2 / den.
func (ps *PowerSpectrum) Compute(power []float64, bins []complex128) {
	for i, c := range bins {
		re, im := real(c), imag(c)
		power[i] = (re*re + im*im) / ps.den
	}
}

// ComputePolar writes the same power as Compute plus the phase angle of each
// bin. DC and Nyquist bins are real, so their phase is 0 or pi.
func (ps *PowerSpectrum) ComputePolar(power, phase []float64, bins []complex128) {
	for i, c := range bins {
		re, im := real(c), imag(c)
		power[i] = (re*re + im*im) / ps.den
		phase[i] = math.Atan2(im, re)
	}
}
