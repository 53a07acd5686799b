package notes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	NumKeys     = 128
	MaxVelocity = 127
)

// Velocities holds one MIDI velocity per key; 0 means silent.
type Velocities [NumKeys]int

// IntensityConfig controls how spectral peaks become key velocities.
type IntensityConfig struct {
	Cutoff            float64 // log10 of the absolute power threshold
	UseRelativeCutoff bool
	RelativeCutoff    float64 // log10 offset above the mean key power
	PitchAdjust       float64 // semitones added before rounding to a key
	I0, I1            int     // inclusive bin range searched for peaks
	T0                float64 // frame duration in seconds (size / sampleRate)
}

// Intensity maps each spectrum to key velocities and accumulates how far the
// detected peaks sit from equal temperament.
type Intensity struct {
	cfg      IntensityConfig
	keyPower [NumKeys]float64
	nonZero  []float64

	pitchShift float64
	pitchCount int
}

// NewIntensity validates cfg and allocates the per-key state.
func NewIntensity(cfg IntensityConfig) (*Intensity, error) {
	if cfg.I0 < 1 || cfg.I1 < cfg.I0 {
		return nil, fmt.Errorf("invalid bin range [%d, %d]", cfg.I0, cfg.I1)
	}
	if cfg.T0 <= 0 {
		return nil, fmt.Errorf("frame duration must be positive, got %v", cfg.T0)
	}
	return &Intensity{
		cfg:     cfg,
		nonZero: make([]float64, 0, NumKeys),
	}, nil
}

// Compute fills vel from power. freq holds the corrected frequency of every
// bin in Hz, or is nil to use the bin centres. power must extend one bin past
// I1.
func (in *Intensity) Compute(power, freq []float64, vel *Velocities) {
	for k := range in.keyPower {
		in.keyPower[k] = 0
	}

	for i := in.cfg.I0; i <= in.cfg.I1; i++ {
		p := power[i]
		if p <= 0 || p <= power[i-1] || p < power[i+1] {
			continue
		}

		f := float64(i) / in.cfg.T0
		if freq != nil {
			f = freq[i]
		}
		if f <= 0 {
			continue
		}

		x := 69 + 12*math.Log2(f/440.0) + in.cfg.PitchAdjust
		key := int(math.Floor(x + 0.5))
		if key < 0 || key >= NumKeys {
			continue
		}

		in.pitchShift += x - float64(key)
		in.pitchCount++
		if p > in.keyPower[key] {
			in.keyPower[key] = p
		}
	}

	if in.cfg.UseRelativeCutoff {
		in.relative(vel)
	} else {
		in.absolute(vel)
	}
}

func (in *Intensity) absolute(vel *Velocities) {
	c := in.cfg.Cutoff
	span := math.Max(-c, 1)
	for k, p := range in.keyPower {
		if p <= 0 {
			vel[k] = 0
			continue
		}
		vel[k] = scaleVelocity((math.Log10(p) - c) / span)
	}
}

func (in *Intensity) relative(vel *Velocities) {
	in.nonZero = in.nonZero[:0]
	for _, p := range in.keyPower {
		if p > 0 {
			in.nonZero = append(in.nonZero, p)
		}
	}
	if len(in.nonZero) == 0 {
		*vel = Velocities{}
		return
	}

	threshold := math.Log10(stat.Mean(in.nonZero, nil)) + in.cfg.RelativeCutoff
	span := math.Log10(floats.Max(in.nonZero)) - threshold

	for k, p := range in.keyPower {
		if p <= 0 {
			vel[k] = 0
			continue
		}
		level := math.Log10(p) - threshold
		switch {
		case level < 0:
			vel[k] = 0
		case span <= 0:
			vel[k] = MaxVelocity
		default:
			vel[k] = scaleVelocity(level / span)
		}
	}
}

func scaleVelocity(ratio float64) int {
	v := int(MaxVelocity * ratio)
	return min(max(v, 0), MaxVelocity)
}

// PitchDeviation returns the mean offset of accepted peaks from their key in
// semitones, in [-0.5, 0.5).
func (in *Intensity) PitchDeviation() float64 {
	if in.pitchCount == 0 {
		return 0
	}
	return in.pitchShift / float64(in.pitchCount)
}

// Peaks returns how many spectral peaks were mapped to keys so far.
func (in *Intensity) Peaks() int {
	return in.pitchCount
}
