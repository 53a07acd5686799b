package windowing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowShapes(t *testing.T) {
	const n = 65
	mid := n / 2

	tests := []struct {
		kind        Kind
		edge        float64
		center      float64
		edgeIsExact bool
	}{
		{None, 1, 1, true},
		{Parzen, 1.0 - float64(mid)/33.0, 1, true},
		{Welch, 1.0 - math.Pow(float64(mid)/33.0, 2), 1, true},
		{Hanning, 0, 1, true},
		{Hamming, 0.08, 1, true},
		{Blackman, 0, 1, true},
		{Steeper, 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			w, err := New(tt.kind, n)
			require.NoError(t, err)
			require.Len(t, w.Coefficients, n)

			assert.InDelta(t, tt.edge, w.Coefficients[0], 1e-12)
			assert.InDelta(t, tt.center, w.Coefficients[mid], 1e-12)

			for i := 0; i < n; i++ {
				assert.InDelta(t, w.Coefficients[i], w.Coefficients[n-1-i], 1e-12, "symmetry at %d", i)
				assert.GreaterOrEqual(t, w.Coefficients[i], -1e-12)
			}
		})
	}
}

func TestDen(t *testing.T) {
	den, err := Den(None, 1024)
	require.NoError(t, err)
	assert.Equal(t, 1024.0*1024.0, den)

	w, err := New(Hanning, 1024)
	require.NoError(t, err)
	// sum of hann^2 tends to 3n/8
	assert.InDelta(t, 3.0/8.0, w.Energy/1024.0, 1e-2)
	assert.InDelta(t, 1024.0*w.Energy, w.Den, 1e-9)
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New(Kind(9), 1024)
	assert.Error(t, err)

	_, err = New(Hanning, 1)
	assert.Error(t, err)
}

func TestApplyTo(t *testing.T) {
	w, err := New(None, 4)
	require.NoError(t, err)

	dst := make([]float64, 4)
	require.NoError(t, w.ApplyTo(dst, []float64{2, 4, 6, 8}, 2.0))
	assert.Equal(t, []float64{1, 2, 3, 4}, dst)

	assert.Error(t, w.ApplyTo(dst, []float64{1, 2}, 1.0))
	assert.Error(t, w.ApplyTo(dst, []float64{1, 2, 3, 4}, 0))

	h, err := New(Hanning, 4)
	require.NoError(t, err)
	signal := []float64{1, 1, 1, 1}
	require.NoError(t, h.ApplyInPlace(signal))
	assert.Equal(t, h.GetCoefficients(), signal)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		err  bool
	}{
		{"3", Hanning, false},
		{"hann", Hanning, false},
		{"Blackman", Blackman, false},
		{"steeper", Steeper, false},
		{"0", None, false},
		{"7", None, true},
		{"kaiser", None, true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		W Kind `json:"w"`
	}{Welch})
	require.NoError(t, err)
	assert.JSONEq(t, `{"w":"welch"}`, string(data))

	var out struct {
		W Kind `json:"w"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"w":"5"}`), &out))
	assert.Equal(t, Blackman, out.W)
}

func TestGeneratorCaches(t *testing.T) {
	g := NewGenerator()
	a, err := g.Get(Hamming, 256)
	require.NoError(t, err)
	b, err := g.Get(Hamming, 256)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := g.Get(Hamming, 512)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}
