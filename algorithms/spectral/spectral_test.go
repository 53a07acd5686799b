package spectral

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blazeiburgess/WaoN/algorithms/windowing"
)

func sine(n, offset int, freq, sampleRate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i+offset) / sampleRate)
	}
	return out
}

func TestPlanBackendsAgree(t *testing.T) {
	const n = 256
	src := sine(n, 0, 1000, 8000)
	src[3] += 0.25

	gonum, err := NewPlan(BackendGonum, n)
	require.NoError(t, err)
	defer gonum.Close()

	godsp, err := NewPlan(BackendGoDSP, n)
	require.NoError(t, err)
	defer godsp.Close()

	a, err := gonum.Execute(make([]complex128, n/2+1), src)
	require.NoError(t, err)
	b, err := godsp.Execute(make([]complex128, n/2+1), src)
	require.NoError(t, err)

	for i := range a {
		assert.InDelta(t, 0.0, cmplx.Abs(a[i]-b[i]), 1e-9, "bin %d", i)
	}
}

func TestPlanImpulse(t *testing.T) {
	const n = 16
	plan, err := NewPlan(DefaultBackend, n)
	require.NoError(t, err)

	src := make([]float64, n)
	src[1] = 1
	out, err := plan.Execute(make([]complex128, n/2+1), src)
	require.NoError(t, err)

	// delta at 1 -> exp(-2*pi*i*k/n)
	for k, c := range out {
		want := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/n))
		assert.InDelta(t, real(want), real(c), 1e-12)
		assert.InDelta(t, imag(want), imag(c), 1e-12)
	}
}

func TestPlanErrors(t *testing.T) {
	_, err := NewPlan(BackendGonum, 1000)
	assert.Error(t, err)

	_, err = NewPlan(Backend("fftw"), 1024)
	assert.Error(t, err)

	plan, err := NewPlan(BackendGonum, 8)
	require.NoError(t, err)
	_, err = plan.Execute(make([]complex128, 4), make([]float64, 8))
	assert.Error(t, err)

	plan.Close()
	_, err = plan.Execute(make([]complex128, 5), make([]float64, 8))
	assert.ErrorIs(t, err, ErrPlanClosed)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendGonum, b)

	b, err = ParseBackend("GoDSP")
	require.NoError(t, err)
	assert.Equal(t, BackendGoDSP, b)

	_, err = ParseBackend("fftw3")
	assert.Error(t, err)
}

func TestPowerSpectrumParseval(t *testing.T) {
	const n = 512
	plan, err := NewPlan(DefaultBackend, n)
	require.NoError(t, err)

	// A bin-centred unit sine under a rectangular window carries n^2/4 in
	// its bin; den = n*n so the power is 1/4.
	src := sine(n, 0, 32*8000.0/n, 8000)
	bins, err := plan.Execute(make([]complex128, n/2+1), src)
	require.NoError(t, err)

	den, err := windowing.Den(windowing.None, n)
	require.NoError(t, err)
	ps, err := NewPowerSpectrum(den)
	require.NoError(t, err)

	power := make([]float64, n/2+1)
	phase := make([]float64, n/2+1)
	ps.ComputePolar(power, phase, bins)

	assert.InDelta(t, 0.25, power[32], 1e-9)
	assert.InDelta(t, -math.Pi/2, phase[32], 1e-9)

	amp := make([]float64, n/2+1)
	ps.Compute(amp, bins)
	assert.Equal(t, power, amp)

	_, err = NewPowerSpectrum(0)
	assert.Error(t, err)
}

func TestWrapPhase(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for j := 0; j < 2000; j++ {
		d := (rng.Float64() - 0.5) * 200
		w := WrapPhase(d)
		assert.GreaterOrEqual(t, w, -math.Pi)
		assert.Less(t, w, math.Pi)

		k := rng.Intn(21) - 10
		shifted := WrapPhase(d + 2*math.Pi*float64(k))
		diff := math.Abs(w - shifted)
		// the two may land on opposite ends of the interval only at the boundary
		if diff > math.Pi {
			diff = 2*math.Pi - diff
		}
		assert.InDelta(t, 0.0, diff, 1e-9, "d=%v k=%d", d, k)
	}

	assert.Equal(t, -math.Pi, WrapPhase(math.Pi))
	assert.Equal(t, -math.Pi, WrapPhase(-math.Pi))
	assert.Equal(t, 0.5, WrapPhase(0.5))
}

func TestPhaseVocoderBootstrap(t *testing.T) {
	pv, err := NewPhaseVocoder(16, 4)
	require.NoError(t, err)

	power := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	phase := []float64{0.1, -0.2, 0.3, 1, 2, 3, -3, -2, 0}
	raw := append([]float64(nil), power...)

	pv.Process(power, phase)
	assert.True(t, pv.Primed())
	assert.Equal(t, raw, power, "bootstrap frame must not alter power")
	for i, c := range pv.Correction() {
		assert.Zero(t, c, "bin %d", i)
	}

	freqs := make([]float64, 9)
	pv.Frequencies(freqs, 1600)
	assert.Equal(t, 100.0, freqs[1])
	assert.Equal(t, 800.0, freqs[8])
}

func TestPhaseVocoderAveragesWithPriorFrame(t *testing.T) {
	pv, err := NewPhaseVocoder(4, 4)
	require.NoError(t, err)

	pv.Process([]float64{4, 4, 4}, []float64{0, 0, 0})

	power := []float64{16, 0, 4}
	pv.Process(power, []float64{0, 0, 0})
	assert.InDeltaSlice(t, []float64{9, 1, 4}, power, 1e-12)

	// hop == size: bin 1 expects an advance of 2*pi, which wraps to zero
	for _, c := range pv.Correction() {
		assert.InDelta(t, 0.0, c, 1e-12)
	}

	pv.Reset()
	assert.False(t, pv.Primed())
}

func TestPhaseVocoderRefinesFrequency(t *testing.T) {
	const (
		n    = 1024
		hop  = 256
		rate = 8000.0
		freq = 1003.0
	)

	plan, err := NewPlan(DefaultBackend, n)
	require.NoError(t, err)
	w, err := windowing.New(windowing.Hanning, n)
	require.NoError(t, err)
	ps, err := NewPowerSpectrum(w.Den)
	require.NoError(t, err)
	pv, err := NewPhaseVocoder(n, hop)
	require.NoError(t, err)

	bins := make([]complex128, n/2+1)
	power := make([]float64, n/2+1)
	phase := make([]float64, n/2+1)
	freqs := make([]float64, n/2+1)

	for frame := 0; frame < 3; frame++ {
		x := sine(n, frame*hop, freq, rate)
		require.NoError(t, w.ApplyInPlace(x))
		_, err := plan.Execute(bins, x)
		require.NoError(t, err)
		ps.ComputePolar(power, phase, bins)
		pv.Process(power, phase)
	}

	peak := 0
	for i := range power {
		if power[i] > power[peak] {
			peak = i
		}
	}
	assert.Equal(t, 128, peak)

	pv.Frequencies(freqs, rate)
	assert.InDelta(t, freq, freqs[peak], 0.5)
	assert.InDelta(t, freq, freqs[peak+1], 0.5)
}

func TestNewPhaseVocoderValidation(t *testing.T) {
	_, err := NewPhaseVocoder(16, 0)
	assert.Error(t, err)
	_, err = NewPhaseVocoder(16, 17)
	assert.Error(t, err)
	_, err = NewPhaseVocoder(1, 1)
	assert.Error(t, err)
}
