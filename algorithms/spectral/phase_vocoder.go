package spectral

import (
	"fmt"
	"math"
)

const twoPi = 2.0 * math.Pi

// WrapPhase maps d into [-pi, pi). Values that differ by a multiple of 2*pi
// wrap to the same result up to rounding.
func WrapPhase(d float64) float64 {
	if d >= -math.Pi && d < math.Pi {
		return d
	}
	d = math.Mod(d+math.Pi, twoPi)
	if d < 0 {
		d += twoPi
	}
	d -= math.Pi
	if d >= math.Pi {
		d -= twoPi
	}
	return d
}

// PhaseVocoder refines bin frequencies from the phase advance between
// consecutive frames and smooths power across them.
//
// The first processed frame only records state. Every later frame gets a
// per-bin frequency correction, in cycles per sample, and its power replaced
// by the squared mean amplitude of this frame and the previous one.
type PhaseVocoder struct {
	size int
	hop  int

	prevPower  []float64
	prevPhase  []float64
	correction []float64
	primed     bool
}

// NewPhaseVocoder allocates vocoder state for a transform of the given size
// advanced by hop samples per frame.
func NewPhaseVocoder(size, hop int) (*PhaseVocoder, error) {
	if size < 2 {
		return nil, fmt.Errorf("transform size must be at least 2, got %d", size)
	}
	if hop <= 0 || hop > size {
		return nil, fmt.Errorf("hop must be in (0, %d], got %d", size, hop)
	}

	bins := size/2 + 1
	return &PhaseVocoder{
		size:       size,
		hop:        hop,
		prevPower:  make([]float64, bins),
		prevPhase:  make([]float64, bins),
		correction: make([]float64, bins),
	}, nil
}

// Process updates the vocoder with this frame's raw power and phase and
// rewrites power in place with the smoothed estimate.
func (pv *PhaseVocoder) Process(power, phase []float64) {
	if !pv.primed {
		for i := range pv.correction {
			pv.correction[i] = 0.0
		}
		copy(pv.prevPower, power)
		copy(pv.prevPhase, phase)
		pv.primed = true
		return
	}

	hop := float64(pv.hop)
	n := float64(pv.size)

	for i := range pv.correction {
		d := phase[i] - pv.prevPhase[i] - twoPi*float64(i)/n*hop
		d = WrapPhase(d)
		pv.correction[i] = d / twoPi / hop

		prior := pv.prevPower[i]
		pv.prevPower[i] = power[i]
		pv.prevPhase[i] = phase[i]

		amp := 0.5 * (math.Sqrt(power[i]) + math.Sqrt(prior))
		power[i] = amp * amp
	}
}

// Correction returns the per-bin frequency correction of the last frame, in
// cycles per sample. The slice is owned by the vocoder.
func (pv *PhaseVocoder) Correction() []float64 {
	return pv.correction
}

// Frequencies writes the instantaneous frequency in Hz of every bin,
// (i/size + correction[i]) * sampleRate, into dst.
func (pv *PhaseVocoder) Frequencies(dst []float64, sampleRate float64) {
	n := float64(pv.size)
	for i, c := range pv.correction {
		dst[i] = (float64(i)/n + c) * sampleRate
	}
}

// Primed reports whether a first frame has been recorded.
func (pv *PhaseVocoder) Primed() bool {
	return pv.primed
}

// Reset drops all frame history.
func (pv *PhaseVocoder) Reset() {
	pv.primed = false
	for i := range pv.correction {
		pv.prevPower[i] = 0
		pv.prevPhase[i] = 0
		pv.correction[i] = 0
	}
}
