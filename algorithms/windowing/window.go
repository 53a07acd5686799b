package windowing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	dspwindow "github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Kind selects the window function applied before the transform.
// The numeric values match the classic WaoN -w option.
type Kind int

const (
	None Kind = iota
	Parzen
	Welch
	Hanning
	Hamming
	Blackman
	Steeper
)

var kindNames = [...]string{
	None:     "none",
	Parzen:   "parzen",
	Welch:    "welch",
	Hanning:  "hanning",
	Hamming:  "hamming",
	Blackman: "blackman",
	Steeper:  "steeper",
}

// Kinds returns every supported window kind in option order.
func Kinds() []Kind {
	return []Kind{None, Parzen, Welch, Hanning, Hamming, Blackman, Steeper}
}

// Valid reports whether k names a supported window.
func (k Kind) Valid() bool {
	return k >= None && k <= Steeper
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("window(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind accepts either a window name ("hanning", "hann", ...) or its
// option number ("3").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		k := Kind(n)
		if !k.Valid() {
			return None, fmt.Errorf("window number %d out of range [0, %d]", n, int(Steeper))
		}
		return k, nil
	}

	switch s {
	case "hann":
		return Hanning, nil
	case "rectangular", "square", "":
		return None, nil
	}
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return None, fmt.Errorf("unknown window %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid window kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Window is a precomputed window table together with the constant that turns
// squared transform magnitudes into power.
type Window struct {
	Kind         Kind      `json:"kind"`
	Size         int       `json:"size"`
	Coefficients []float64 `json:"-"`
	Energy       float64   `json:"energy"` // sum of squared weights
	Den          float64   `json:"den"`    // Size * Energy
}

// New computes the window of the given kind and size.
func New(kind Kind, size int) (*Window, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid window kind %d", int(kind))
	}
	if size < 2 {
		return nil, fmt.Errorf("window size must be at least 2, got %d", size)
	}

	coefficients := generate(kind, size)
	energy := floats.Dot(coefficients, coefficients)

	return &Window{
		Kind:         kind,
		Size:         size,
		Coefficients: coefficients,
		Energy:       energy,
		Den:          float64(size) * energy,
	}, nil
}

// Den returns the power normalization constant for (size, kind) without
// keeping the table around.
func Den(kind Kind, size int) (float64, error) {
	w, err := New(kind, size)
	if err != nil {
		return 0, err
	}
	return w.Den, nil
}

// ApplyTo writes src weighted by the window and divided by scale into dst.
// dst and src may alias.
func (w *Window) ApplyTo(dst, src []float64, scale float64) error {
	if len(src) != w.Size || len(dst) != w.Size {
		return fmt.Errorf("signal length (%d -> %d) doesn't match window size (%d)", len(src), len(dst), w.Size)
	}
	if scale == 0 {
		return fmt.Errorf("window scale must be non-zero")
	}

	if w.Kind == None {
		for i, v := range src {
			dst[i] = v / scale
		}
		return nil
	}
	for i, v := range src {
		dst[i] = v * w.Coefficients[i] / scale
	}
	return nil
}

// ApplyInPlace applies the window with unit scale.
func (w *Window) ApplyInPlace(signal []float64) error {
	return w.ApplyTo(signal, signal, 1.0)
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	coeffs := make([]float64, len(w.Coefficients))
	copy(coeffs, w.Coefficients)
	return coeffs
}

func generate(kind Kind, n int) []float64 {
	switch kind {
	case Hanning:
		return dspwindow.Hann(n)
	case Hamming:
		return dspwindow.Hamming(n)
	case Blackman:
		return dspwindow.Blackman(n)
	}

	coefficients := make([]float64, n)
	center := 0.5 * float64(n-1)
	halfWidth := 0.5 * float64(n+1)
	span := float64(n - 1)

	for i := 0; i < n; i++ {
		x := float64(i)
		switch kind {
		case Parzen:
			coefficients[i] = 1.0 - math.Abs((x-center)/halfWidth)
		case Welch:
			r := (x - center) / halfWidth
			coefficients[i] = 1.0 - r*r
		case Steeper:
			arg := 2.0 * math.Pi * x / span
			coefficients[i] = 0.375 - 0.5*math.Cos(arg) + 0.125*math.Cos(2.0*arg)
		default:
			coefficients[i] = 1.0
		}
	}
	return coefficients
}
