package spectral

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSpectrum(rng *rand.Rand, n int) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = rng.ExpFloat64() * 10
		if rng.Intn(10) == 0 {
			p[i] = 0
		}
	}
	return p
}

func TestSuppressionNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := 8 + rng.Intn(120)
		power := randomSpectrum(rng, n)
		radius := rng.Intn(6)
		drumFactor := rng.Float64() * 3
		octaveFactor := rng.Float64() * 3

		s, err := NewSuppressor(n, radius, drumFactor, octaveFactor)
		require.NoError(t, err)
		s.Apply(power)

		for i, p := range power {
			assert.GreaterOrEqual(t, p, 0.0, "trial %d bin %d", trial, i)
		}
	}
}

func TestSuppressionIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	power := randomSpectrum(rng, 65)
	want := append([]float64(nil), power...)

	tests := []struct {
		name         string
		radius       int
		drumFactor   float64
		octaveFactor float64
	}{
		{"all off", 0, 0, 0},
		{"drum radius zero", 0, 2.5, 0},
		{"drum factor zero", 4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]float64(nil), power...)
			s, err := NewSuppressor(len(got), tt.radius, tt.drumFactor, tt.octaveFactor)
			require.NoError(t, err)
			s.Apply(got)
			assert.Equal(t, want, got)
		})
	}
}

func TestDrumRemoverKeepsTonalPeak(t *testing.T) {
	power := make([]float64, 33)
	for i := range power {
		power[i] = 1.0
	}
	power[16] = 100.0

	d, err := NewDrumRemover(len(power), 2, 1.0)
	require.NoError(t, err)
	d.Apply(power)

	// flat neighbourhood: average 1 away from the peak, so bins vanish
	assert.Equal(t, 0.0, power[5])
	// peak: average (4*1+100)/5 = 20.8
	assert.Greater(t, power[16], 25.0)
	// next to the peak the local average is dominated by the peak
	assert.Equal(t, 0.0, power[15])
}

func TestDrumRemoverEdgeClipping(t *testing.T) {
	power := []float64{4, 0, 0, 0}
	d, err := NewDrumRemover(len(power), 1, 0.5)
	require.NoError(t, err)
	d.Apply(power)

	// bin 0 averages bins 0..1 only: avg 2, sqrt(4) - 0.5*sqrt(2)
	want := 2 - 0.5*1.4142135623730951
	assert.InDelta(t, want*want, power[0], 1e-12)
}

func TestOctaveRemover(t *testing.T) {
	power := make([]float64, 17)
	power[4] = 16 // fundamental
	power[8] = 9  // its octave
	power[9] = 4

	o, err := NewOctaveRemover(len(power), 0.5)
	require.NoError(t, err)
	o.Apply(power)

	assert.Equal(t, 16.0, power[4], "sub-octave bin 2 is empty")
	// sqrt(9) - 0.5*sqrt(16) = 1
	assert.InDelta(t, 1.0, power[8], 1e-12)
	// odd bin 9 sees half of bins 4 and 5: sqrt(4) - 0.5*sqrt(8)
	assert.InDelta(t, (2-0.5*2.8284271247461903)*(2-0.5*2.8284271247461903), power[9], 1e-12)

	off, err := NewOctaveRemover(len(power), 0)
	require.NoError(t, err)
	before := append([]float64(nil), power...)
	off.Apply(power)
	assert.Equal(t, before, power)
}

func TestSuppressorValidation(t *testing.T) {
	_, err := NewSuppressor(16, -1, 1, 0)
	assert.Error(t, err)
	_, err = NewSuppressor(16, 1, -1, 0)
	assert.Error(t, err)
	_, err = NewSuppressor(16, 1, 1, -0.1)
	assert.Error(t, err)
}
