package spectral

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/blazeiburgess/WaoN/algorithms/common"
)

// Backend names a forward transform implementation.
type Backend string

const (
	// BackendGonum uses gonum's FFTPACK port with precomputed twiddles.
	BackendGonum Backend = "gonum"
	// BackendGoDSP uses mjibson/go-dsp. It allocates per call.
	BackendGoDSP Backend = "go-dsp"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = BackendGonum

// ErrPlanClosed is returned when a released plan is executed.
var ErrPlanClosed = errors.New("transform plan already released")

// ParseBackend maps a configuration string to a Backend. The empty string
// selects DefaultBackend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultBackend, nil
	case BackendGonum:
		return BackendGonum, nil
	case BackendGoDSP, "godsp":
		return BackendGoDSP, nil
	}
	return "", fmt.Errorf("unknown transform backend %q", s)
}

// Plan is a reusable real-input forward transform bound to one size.
// Execute writes the size/2+1 non-redundant bins of the input's spectrum,
// X[k] = sum x[j] exp(-2*pi*i*j*k/size), into dst and returns it.
// A plan is not safe for concurrent use.
type Plan interface {
	Size() int
	Execute(dst []complex128, src []float64) ([]complex128, error)
	Close()
}

// NewPlan creates a transform plan for the given backend and size.
func NewPlan(backend Backend, size int) (Plan, error) {
	if size < 2 || !common.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("transform size must be a power of two >= 2, got %d", size)
	}

	switch backend {
	case BackendGonum, "":
		return &gonumPlan{size: size, fft: fourier.NewFFT(size)}, nil
	case BackendGoDSP:
		return &goDSPPlan{size: size}, nil
	}
	return nil, fmt.Errorf("unknown transform backend %q", backend)
}

func checkExecute(size int, dst []complex128, src []float64) error {
	if len(src) != size {
		return fmt.Errorf("input length %d doesn't match plan size %d", len(src), size)
	}
	if len(dst) != size/2+1 {
		return fmt.Errorf("output length %d, want %d", len(dst), size/2+1)
	}
	return nil
}

type gonumPlan struct {
	size int
	fft  *fourier.FFT
}

func (p *gonumPlan) Size() int { return p.size }

func (p *gonumPlan) Execute(dst []complex128, src []float64) ([]complex128, error) {
	if p.fft == nil {
		return nil, ErrPlanClosed
	}
	if err := checkExecute(p.size, dst, src); err != nil {
		return nil, err
	}
	return p.fft.Coefficients(dst, src), nil
}

func (p *gonumPlan) Close() { p.fft = nil }

type goDSPPlan struct {
	size   int
	closed bool
}

func (p *goDSPPlan) Size() int { return p.size }

func (p *goDSPPlan) Execute(dst []complex128, src []float64) ([]complex128, error) {
	if p.closed {
		return nil, ErrPlanClosed
	}
	if err := checkExecute(p.size, dst, src); err != nil {
		return nil, err
	}
	copy(dst, fft.FFTReal(src))
	return dst, nil
}

func (p *goDSPPlan) Close() { p.closed = true }
