package transcriber

import (
	"context"
	"fmt"

	"github.com/blazeiburgess/WaoN/algorithms/common"
	"github.com/blazeiburgess/WaoN/algorithms/spectral"
	"github.com/blazeiburgess/WaoN/algorithms/windowing"
	"github.com/blazeiburgess/WaoN/logging"
	"github.com/blazeiburgess/WaoN/midi"
	"github.com/blazeiburgess/WaoN/transcode"
	"github.com/blazeiburgess/WaoN/transcriber/config"
)

// Frame is one analysed hop. Power has size/2+1 bins after vocoder smoothing
// and artifact suppression; Frequency holds the corrected frequency of every
// bin in Hz when the phase vocoder is on, and is nil otherwise. Both slices
// are reused for the next frame.
type Frame struct {
	Index     int
	Power     []float64
	Frequency []float64
}

// FrameSink consumes analysed frames in order. Returning an error stops the
// run.
type FrameSink interface {
	ProcessFrame(f *Frame) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(f *Frame) error

func (fn FrameSinkFunc) ProcessFrame(f *Frame) error { return fn(f) }

// ProgressObserver is told the completed fraction of a run after each frame.
// Fractions are non-decreasing and never exceed 1.
type ProgressObserver interface {
	Progress(fraction float64)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(fraction float64)

func (fn ProgressFunc) Progress(fraction float64) { fn(fraction) }

// Engine runs the spectral analysis loop. An Engine holds only immutable
// configuration and may start any number of runs, but each run is
// single-threaded.
type Engine struct {
	opts   *config.Options
	logger logging.Logger
}

// NewEngine validates opts and creates an engine. A nil opts selects
// config.DefaultOptions.
func NewEngine(opts *config.Options) (*Engine, error) {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	o := opts.Clone()
	o.Normalize()
	if err := o.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		opts: o,
		logger: logging.WithFields(logging.Fields{
			"component": "transcription_engine",
		}),
	}, nil
}

// Options returns a copy of the normalized configuration.
func (e *Engine) Options() *config.Options {
	return e.opts.Clone()
}

// FrameSize returns the transform length N.
func (e *Engine) FrameSize() int {
	return e.opts.Analysis.FFTSize
}

// Hop returns the number of samples between frames.
func (e *Engine) Hop() int {
	return e.opts.Analysis.HopSize
}

// T0 returns the frame duration in seconds, the inverse of the bin spacing.
func (e *Engine) T0(sampleRate int) float64 {
	return float64(e.FrameSize()) / float64(sampleRate)
}

// BinRange returns the bins searched for the configured note range.
func (e *Engine) BinRange(sampleRate int) (i0, i1 int) {
	return BinRange(e.FrameSize(), sampleRate, e.opts.Range.BottomNote, e.opts.Range.TopNote)
}

// BinRange maps the key range [bottom, top] onto transform bins for a frame of
// size samples. The result always satisfies 1 <= i0 < i1 <= size/2-1.
func BinRange(size, sampleRate, bottom, top int) (i0, i1 int) {
	t0 := float64(size) / float64(sampleRate)
	half := size / 2

	i0 = int(midi.Frequency(bottom)*t0 - 0.5)
	i1 = int(midi.Frequency(top)*t0-0.5) + 1

	i0 = min(max(i0, 1), half-2)
	i1 = min(max(i1, i0+1), half-1)
	return i0, i1
}

func checkSource(src transcode.Source) error {
	if src == nil {
		return fmt.Errorf("%w: no source", ErrInput)
	}
	if src.SampleRate() <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInput, src.SampleRate())
	}
	if ch := src.Channels(); ch != 1 && ch != 2 {
		return fmt.Errorf("%w: %w: got %d", ErrInput, transcode.ErrUnsupportedChannels, ch)
	}
	return nil
}

// expectedFrames estimates the number of frames a source of total samples per
// channel yields, or 0 if unknown.
func (e *Engine) expectedFrames(total int64) int64 {
	n, hop := int64(e.FrameSize()), int64(e.Hop())
	if total < n {
		return 0
	}
	return (total-n)/hop + 1
}

// Run analyses src until it is exhausted, handing every frame to sink and the
// running fraction to observer, which may be nil. It returns the number of
// frames analysed. End of input is not an error.
func (e *Engine) Run(ctx context.Context, src transcode.Source, sink FrameSink, observer ProgressObserver) (int, error) {
	if err := checkSource(src); err != nil {
		return 0, err
	}
	if sink == nil {
		return 0, fmt.Errorf("%w: no frame sink", ErrResource)
	}

	a := e.opts.Analysis
	p := e.opts.Processing
	n, hop := a.FFTSize, a.HopSize
	bins := n/2 + 1
	sampleRate := float64(src.SampleRate())

	logger := e.logger.WithFields(logging.Fields{
		"fft_size":    n,
		"hop":         hop,
		"window":      a.Window.String(),
		"phase":       bool(a.UsePhase),
		"backend":     string(a.Backend),
		"sample_rate": src.SampleRate(),
		"channels":    src.Channels(),
	}).WithContext(ctx)

	window, err := windowing.Shared(a.Window, n)
	if err != nil {
		return 0, fmt.Errorf("%w: window: %v", ErrResource, err)
	}
	extractor, err := spectral.NewPowerSpectrum(window.Den)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResource, err)
	}
	suppressor, err := spectral.NewSuppressor(bins, p.DrumRemovalBins, p.DrumRemovalFactor, p.OctaveRemoval)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResource, err)
	}
	buffer, err := common.NewFrameBuffer(n, src.Channels())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResource, err)
	}

	plan, err := spectral.NewPlan(a.Backend, n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResource, err)
	}
	defer plan.Close()

	var (
		vocoder  *spectral.PhaseVocoder
		phase    []float64
		freq     []float64
		windowed = make([]float64, n)
		spectrum = make([]complex128, bins)
		frame    = Frame{Power: make([]float64, bins)}
	)
	if a.UsePhase {
		vocoder, err = spectral.NewPhaseVocoder(n, hop)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrResource, err)
		}
		phase = make([]float64, bins)
		freq = make([]float64, bins)
		frame.Frequency = freq
	}

	expected := e.expectedFrames(src.TotalFrames())
	logger.Debug("Starting spectral analysis", logging.Fields{
		"expected_frames": expected,
	})

	ok, err := buffer.Prime(src, hop)
	if err != nil {
		return 0, fmt.Errorf("%w: priming: %w", ErrInput, err)
	}
	if !ok {
		logger.Debug("Input shorter than one frame")
		return 0, nil
	}

	count := 0
	for {
		if err := ctx.Err(); err != nil {
			logger.Debug("Analysis cancelled", logging.Fields{"frames": count})
			return count, fmt.Errorf("transcription stopped after %d frames: %w", count, err)
		}

		ok, err := buffer.ShiftAndFill(src, hop)
		if err != nil {
			return count, fmt.Errorf("%w: frame %d: %w", ErrInput, count, err)
		}
		if !ok {
			break
		}

		if err := window.ApplyTo(windowed, buffer.Mixdown(), 1.0); err != nil {
			return count, fmt.Errorf("%w: %v", ErrResource, err)
		}
		if spectrum, err = plan.Execute(spectrum, windowed); err != nil {
			return count, fmt.Errorf("%w: %v", ErrResource, err)
		}

		if vocoder != nil {
			extractor.ComputePolar(frame.Power, phase, spectrum)
			vocoder.Process(frame.Power, phase)
			vocoder.Frequencies(freq, sampleRate)
		} else {
			extractor.Compute(frame.Power, spectrum)
		}
		suppressor.Apply(frame.Power)

		frame.Index = count
		if err := sink.ProcessFrame(&frame); err != nil {
			return count, fmt.Errorf("frame %d: %w", count, err)
		}
		count++

		if observer != nil && expected > 0 {
			observer.Progress(min(float64(count)/float64(expected), 1.0))
		}
	}

	logger.Debug("Spectral analysis complete", logging.Fields{
		"frames": count,
	})
	return count, nil
}
