package spectral

import (
	"fmt"
	"math"

	"github.com/blazeiburgess/WaoN/algorithms/common"
)

// subtractAmplitude returns max(0, sqrt(p) - factor*sqrt(ref))^2.
func subtractAmplitude(p, ref, factor float64) float64 {
	amp := math.Sqrt(p) - factor*math.Sqrt(ref)
	if amp <= 0 {
		return 0.0
	}
	return amp * amp
}

// DrumRemover suppresses broadband energy by subtracting a local spectral
// average from every bin in the amplitude domain. Narrow tonal peaks stand
// well above their neighbourhood and survive.
type DrumRemover struct {
	radius int
	factor float64
	prefix []float64
}

// NewDrumRemover prepares a remover for spectra of the given bin count.
// The average for bin i covers bins [i-radius, i+radius], clipped to the
// spectrum.
func NewDrumRemover(bins, radius int, factor float64) (*DrumRemover, error) {
	if radius < 0 {
		return nil, fmt.Errorf("drum removal radius must be >= 0, got %d", radius)
	}
	if factor < 0 || math.IsNaN(factor) {
		return nil, fmt.Errorf("drum removal factor must be >= 0, got %v", factor)
	}
	return &DrumRemover{
		radius: radius,
		factor: factor,
		prefix: make([]float64, bins+1),
	}, nil
}

// Enabled reports whether Apply changes anything.
func (d *DrumRemover) Enabled() bool {
	return d.radius > 0 && d.factor > 0
}

// Apply rewrites power in place. Averages are taken over the input values.
func (d *DrumRemover) Apply(power []float64) {
	if !d.Enabled() {
		return
	}

	n := len(power)
	if len(d.prefix) < n+1 {
		d.prefix = make([]float64, n+1)
	}

	d.prefix[0] = 0
	for i, p := range power {
		d.prefix[i+1] = d.prefix[i] + p
	}

	for i := range power {
		lo := max(i-d.radius, 0)
		hi := min(i+d.radius, n-1)
		avg := (d.prefix[hi+1] - d.prefix[lo]) / float64(hi-lo+1)
		power[i] = subtractAmplitude(power[i], avg, d.factor)
	}
}

// OctaveRemover suppresses the octave harmonic of strong bins: every bin
// loses the amplitude found at half its frequency, scaled by factor.
type OctaveRemover struct {
	factor   float64
	snapshot []float64
}

// NewOctaveRemover prepares a remover for spectra of the given bin count.
func NewOctaveRemover(bins int, factor float64) (*OctaveRemover, error) {
	if factor < 0 || math.IsNaN(factor) {
		return nil, fmt.Errorf("octave removal factor must be >= 0, got %v", factor)
	}
	return &OctaveRemover{
		factor:   factor,
		snapshot: make([]float64, bins),
	}, nil
}

// Enabled reports whether Apply changes anything.
func (o *OctaveRemover) Enabled() bool {
	return o.factor > 0
}

// Apply rewrites power in place. Bins 0 and 1 have no distinct sub-octave
// bin and are left alone; odd bins interpolate between their two neighbours
// at half frequency.
func (o *OctaveRemover) Apply(power []float64) {
	if !o.Enabled() {
		return
	}
	if len(o.snapshot) < len(power) {
		o.snapshot = make([]float64, len(power))
	}
	snap := o.snapshot[:len(power)]
	copy(snap, power)

	for i := 2; i < len(power); i++ {
		estimate := common.LinearAt(snap, 0.5*float64(i))
		power[i] = subtractAmplitude(power[i], estimate, o.factor)
	}
}

// Suppressor applies drum removal followed by octave removal.
type Suppressor struct {
	drum   *DrumRemover
	octave *OctaveRemover
}

// NewSuppressor builds both passes for spectra of the given bin count.
func NewSuppressor(bins, drumRadius int, drumFactor, octaveFactor float64) (*Suppressor, error) {
	drum, err := NewDrumRemover(bins, drumRadius, drumFactor)
	if err != nil {
		return nil, err
	}
	octave, err := NewOctaveRemover(bins, octaveFactor)
	if err != nil {
		return nil, err
	}
	return &Suppressor{drum: drum, octave: octave}, nil
}

// Apply runs the enabled passes in order.
func (s *Suppressor) Apply(power []float64) {
	s.drum.Apply(power)
	s.octave.Apply(power)
}
