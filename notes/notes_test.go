package notes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spectrum with single-bin peaks at the given bins
func peaks(n int, at map[int]float64) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = 1e-9
	}
	for i, v := range at {
		p[i] = v
	}
	return p
}

func TestIntensityAbsoluteCutoff(t *testing.T) {
	// T0 = 1s so bin i is i Hz; bin 440 is A4
	in, err := NewIntensity(IntensityConfig{Cutoff: -5, I0: 1, I1: 1000, T0: 1})
	require.NoError(t, err)

	var vel Velocities
	in.Compute(peaks(1024, map[int]float64{440: 1.0, 880: 1e-3, 220: 1e-6}), nil, &vel)

	assert.Equal(t, 127, vel[69], "log10(1) = 0 sits 5 decades over the cutoff")
	// (log10(1e-3) + 5) / 5 = 0.4 -> 50.8
	assert.Equal(t, 50, vel[81])
	// (log10(1e-6) + 5) < 0 clamps to silence
	assert.Equal(t, 0, vel[57])
	assert.Equal(t, 0, vel[60])
	assert.InDelta(t, 0.0, in.PitchDeviation(), 1e-9)
	assert.Equal(t, 3, in.Peaks())
}

func TestIntensityKeepsStrongestPeakPerKey(t *testing.T) {
	in, err := NewIntensity(IntensityConfig{Cutoff: -5, I0: 1, I1: 1000, T0: 1})
	require.NoError(t, err)

	var vel Velocities
	// 438 and 442 Hz both round to A4
	in.Compute(peaks(1024, map[int]float64{438: 1e-4, 442: 1e-2}), nil, &vel)
	// 127 * 0.6 = 76.2
	assert.Equal(t, 76, vel[69])
}

func TestIntensityRespectsBinRange(t *testing.T) {
	in, err := NewIntensity(IntensityConfig{Cutoff: -5, I0: 400, I1: 500, T0: 1})
	require.NoError(t, err)

	var vel Velocities
	in.Compute(peaks(1024, map[int]float64{880: 1.0, 440: 1.0}), nil, &vel)
	assert.Equal(t, 0, vel[81])
	assert.Equal(t, 127, vel[69])
}

func TestIntensityUsesCorrectedFrequencies(t *testing.T) {
	in, err := NewIntensity(IntensityConfig{Cutoff: -5, I0: 1, I1: 100, T0: 1})
	require.NoError(t, err)

	freq := make([]float64, 128)
	for i := range freq {
		freq[i] = float64(i)
	}
	freq[50] = 261.63 // middle C

	var vel Velocities
	in.Compute(peaks(128, map[int]float64{50: 1.0}), freq, &vel)
	assert.Equal(t, 127, vel[60])
	assert.Zero(t, vel[31])
}

func TestIntensityPitchAdjustAndDeviation(t *testing.T) {
	in, err := NewIntensity(IntensityConfig{Cutoff: -5, PitchAdjust: 1, I0: 1, I1: 1000, T0: 1})
	require.NoError(t, err)

	var vel Velocities
	in.Compute(peaks(1024, map[int]float64{450: 1.0}), nil, &vel)

	x := 69 + 12*math.Log2(450.0/440.0) + 1
	assert.Equal(t, 127, vel[70])
	assert.InDelta(t, x-70, in.PitchDeviation(), 1e-12)
}

func TestIntensityRelativeCutoff(t *testing.T) {
	in, err := NewIntensity(IntensityConfig{UseRelativeCutoff: true, RelativeCutoff: 0, I0: 1, I1: 1000, T0: 1})
	require.NoError(t, err)

	var vel Velocities
	// key powers 1, 1, 4: mean 2, max 4
	in.Compute(peaks(1024, map[int]float64{220: 1, 440: 1, 880: 4}), nil, &vel)

	assert.Equal(t, 0, vel[57])
	assert.Equal(t, 0, vel[69])
	assert.Equal(t, 127, vel[81])

	// a single key spans nothing and is full velocity
	in.Compute(peaks(1024, map[int]float64{440: 1e-8}), nil, &vel)
	assert.Equal(t, 127, vel[69])
	assert.Equal(t, 0, vel[81])
}

func TestNewIntensityValidation(t *testing.T) {
	_, err := NewIntensity(IntensityConfig{I0: 0, I1: 10, T0: 1})
	assert.Error(t, err)
	_, err = NewIntensity(IntensityConfig{I0: 5, I1: 4, T0: 1})
	assert.Error(t, err)
	_, err = NewIntensity(IntensityConfig{I0: 1, I1: 4, T0: 0})
	assert.Error(t, err)
}

func frameVel(pairs ...int) *Velocities {
	var v Velocities
	for i := 0; i+1 < len(pairs); i += 2 {
		v[pairs[i]] = pairs[i+1]
	}
	return &v
}

func TestTrackerOnOff(t *testing.T) {
	tr := NewTracker(DebounceFrames, 128)
	tr.Update(0, frameVel(60, 50))
	tr.Update(1, frameVel(60, 90))
	tr.Update(2, frameVel(60, 10))
	tr.Update(3, frameVel())

	require.Len(t, tr.Notes(), 1)
	assert.Equal(t, Note{Key: 60, Velocity: 90, Start: 0, End: 3}, tr.Notes()[0])
}

func TestTrackerDebounceWindow(t *testing.T) {
	tr := NewTracker(2, 128)
	tr.Update(0, frameVel(60, 50))
	tr.Update(1, frameVel(60, 60))
	tr.Update(2, frameVel(60, 100)) // outside the first two frames

	require.Len(t, tr.Notes(), 1)
	assert.Equal(t, 60, tr.Notes()[0].Velocity)
	assert.True(t, tr.Notes()[0].Open())
}

func TestTrackerRestrike(t *testing.T) {
	tr := NewTracker(DebounceFrames, 30)
	tr.Update(0, frameVel(64, 40))
	tr.Update(1, frameVel(64, 50))
	tr.Update(2, frameVel(64, 90))
	tr.Update(3, frameVel())

	ns := tr.Notes()
	require.Len(t, ns, 2)
	assert.Equal(t, Note{Key: 64, Velocity: 50, Start: 0, End: 2}, ns[0])
	assert.Equal(t, Note{Key: 64, Velocity: 90, Start: 2, End: 3}, ns[1])
}

func TestRegulate(t *testing.T) {
	ns := []Note{
		{Key: 62, Velocity: 80, Start: 5, End: -1},
		{Key: 60, Velocity: 80, Start: 1, End: 4},
		{Key: 55, Velocity: 80, Start: 5, End: 9},
	}
	got := Regulate(ns, 12)
	assert.Equal(t, []Note{
		{Key: 60, Velocity: 80, Start: 1, End: 4},
		{Key: 55, Velocity: 80, Start: 5, End: 9},
		{Key: 62, Velocity: 80, Start: 5, End: 12},
	}, got)
}

func TestRemoveShortNotes(t *testing.T) {
	ns := []Note{
		{Key: 60, Velocity: 63, Start: 0, End: 1},  // short and quiet
		{Key: 61, Velocity: 64, Start: 0, End: 1},  // short but loud
		{Key: 62, Velocity: 27, Start: 0, End: 2},  // quiet two-framer
		{Key: 63, Velocity: 28, Start: 0, End: 2},  // kept
		{Key: 64, Velocity: 10, Start: 0, End: 10}, // long
	}
	got := RemoveShortNotes(append([]Note(nil), ns...), 1, 64)
	got = RemoveShortNotes(got, 2, 28)

	keys := make([]int, 0, len(got))
	for _, n := range got {
		keys = append(keys, n.Key)
	}
	assert.Equal(t, []int{61, 63, 64}, keys)
}

func TestRemoveOctaves(t *testing.T) {
	ns := []Note{
		{Key: 48, Velocity: 100, Start: 0, End: 10},
		{Key: 60, Velocity: 80, Start: 2, End: 8},   // harmonic of 48
		{Key: 50, Velocity: 60, Start: 0, End: 10},
		{Key: 62, Velocity: 90, Start: 1, End: 5},   // louder than 50
		{Key: 52, Velocity: 90, Start: 4, End: 10},
		{Key: 64, Velocity: 50, Start: 2, End: 6},   // started before 52
		{Key: 65, Velocity: 50, Start: 20, End: 30}, // 53 absent
	}
	got := RemoveOctaves(ns)

	keys := make([]int, 0, len(got))
	for _, n := range got {
		keys = append(keys, n.Key)
	}
	assert.Equal(t, []int{48, 50, 62, 52, 64, 65}, keys)
}

func TestClean(t *testing.T) {
	tr := NewTracker(DebounceFrames, 128)
	tr.Update(0, frameVel(45, 100, 57, 100, 70, 20))
	tr.Update(1, frameVel(45, 100, 57, 100))
	tr.Update(2, frameVel(45, 100))

	got := Clean(tr.Notes(), 3)
	require.Len(t, got, 1)
	assert.Equal(t, Note{Key: 45, Velocity: 100, Start: 0, End: 3}, got[0])
}
