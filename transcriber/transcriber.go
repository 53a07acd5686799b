package transcriber

import (
	"context"
	"fmt"
	"time"

	"github.com/blazeiburgess/WaoN/logging"
	"github.com/blazeiburgess/WaoN/midi"
	"github.com/blazeiburgess/WaoN/notes"
	"github.com/blazeiburgess/WaoN/transcode"
	"github.com/blazeiburgess/WaoN/transcriber/config"
)

// Version of the transcriber.
const Version = "0.11.0"

// Summary describes a finished run.
type Summary struct {
	SampleRate     int           `json:"sample_rate"`
	Channels       int           `json:"channels"`
	FrameSize      int           `json:"fft_size"`
	Hop            int           `json:"hop_size"`
	Frames         int           `json:"frames"`
	Notes          int           `json:"notes"`
	Division       int           `json:"division"`
	PitchDeviation float64       `json:"pitch_deviation"` // mean semitone offset of detected peaks
	Duration       time.Duration `json:"duration"`        // audio analysed
	Elapsed        time.Duration `json:"elapsed"`
}

// Result holds the cleaned notes of a run on the frame grid.
type Result struct {
	Notes   []notes.Note `json:"notes"`
	Summary Summary      `json:"summary"`
	program int
}

// Transcriber turns audio into notes with one validated configuration.
type Transcriber struct {
	engine   *Engine
	observer ProgressObserver
	logger   logging.Logger
}

// New validates opts and creates a transcriber.
func New(opts *config.Options) (*Transcriber, error) {
	engine, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}
	return &Transcriber{
		engine: engine,
		logger: logging.WithFields(logging.Fields{
			"component": "transcriber",
		}),
	}, nil
}

// SetProgressObserver installs an observer for subsequent runs.
func (t *Transcriber) SetProgressObserver(observer ProgressObserver) {
	t.observer = observer
}

// Engine returns the underlying analysis engine.
func (t *Transcriber) Engine() *Engine {
	return t.engine
}

// Transcribe analyses src and returns the cleaned notes.
func (t *Transcriber) Transcribe(ctx context.Context, src transcode.Source) (*Result, error) {
	if err := checkSource(src); err != nil {
		return nil, err
	}

	opts := t.engine.opts
	sampleRate := src.SampleRate()
	i0, i1 := t.engine.BinRange(sampleRate)

	intensity, err := notes.NewIntensity(notes.IntensityConfig{
		Cutoff:            opts.NoteDetection.Cutoff,
		UseRelativeCutoff: opts.NoteDetection.UseRelativeCutoff,
		RelativeCutoff:    opts.NoteDetection.RelativeCutoff,
		PitchAdjust:       opts.NoteDetection.PitchAdjust,
		I0:                i0,
		I1:                i1,
		T0:                t.engine.T0(sampleRate),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	tracker := notes.NewTracker(notes.DebounceFrames, opts.NoteDetection.PeakThreshold)

	var vel notes.Velocities
	sink := FrameSinkFunc(func(f *Frame) error {
		intensity.Compute(f.Power, f.Frequency, &vel)
		tracker.Update(f.Index, &vel)
		return nil
	})

	start := time.Now()
	frames, err := t.engine.Run(ctx, src, sink, t.observer)
	if err != nil {
		return nil, err
	}

	cleaned := notes.Clean(tracker.Notes(), frames)

	hop := t.engine.Hop()
	analysed := 0
	if frames > 0 {
		analysed = (frames-1)*hop + t.engine.FrameSize()
	}

	result := &Result{
		Notes: cleaned,
		Summary: Summary{
			SampleRate:     sampleRate,
			Channels:       src.Channels(),
			FrameSize:      t.engine.FrameSize(),
			Hop:            hop,
			Frames:         frames,
			Notes:          len(cleaned),
			Division:       midi.Division(sampleRate, hop),
			PitchDeviation: intensity.PitchDeviation(),
			Duration:       time.Duration(float64(analysed) / float64(sampleRate) * float64(time.Second)),
			Elapsed:        time.Since(start),
		},
		program: opts.Output.Program,
	}

	t.logger.Info("Transcription complete", logging.Fields{
		"frames":          frames,
		"notes":           len(cleaned),
		"division":        result.Summary.Division,
		"pitch_deviation": result.Summary.PitchDeviation,
		"bin_range":       [2]int{i0, i1},
	})
	return result, nil
}

// TranscribeFile decodes input, transcribes it and, unless output is empty,
// writes the notes as a Standard MIDI File.
func (t *Transcriber) TranscribeFile(ctx context.Context, input, output string) (*Result, error) {
	logger := t.logger.WithFields(logging.Fields{
		"input":  input,
		"output": output,
	})

	src, err := transcode.Open(ctx, input, t.engine.opts.Decoder)
	if err != nil {
		logger.Error(err, "Failed to open input")
		return nil, err
	}
	defer src.Close()

	result, err := t.Transcribe(ctx, src)
	if err != nil {
		return nil, err
	}

	if output != "" {
		if err := result.WriteMIDIFile(output); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// WriterConfig returns the MIDI layout for this result: one tick per hop.
func (r *Result) WriterConfig() midi.WriterConfig {
	return midi.WriterConfig{
		Division: r.Summary.Division,
		Program:  r.program,
	}
}

// WriteMIDIFile writes the notes to path.
func (r *Result) WriteMIDIFile(path string) error {
	return midi.WriteFile(path, r.Notes, r.WriterConfig())
}

// Transcribe analyses src with opts.
func Transcribe(ctx context.Context, src transcode.Source, opts *config.Options) (*Result, error) {
	t, err := New(opts)
	if err != nil {
		return nil, err
	}
	return t.Transcribe(ctx, src)
}

// TranscribeFile decodes input and writes the notes to output.
func TranscribeFile(ctx context.Context, input, output string, opts *config.Options) (*Result, error) {
	t, err := New(opts)
	if err != nil {
		return nil, err
	}
	return t.TranscribeFile(ctx, input, output)
}

// TranscribeSamples transcribes in-memory samples, interleaved when stereo.
func TranscribeSamples(ctx context.Context, samples []float64, sampleRate, channels int, opts *config.Options) (*Result, error) {
	t, err := New(opts)
	if err != nil {
		return nil, err
	}
	src, err := transcode.NewMemorySource(samples, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return t.Transcribe(ctx, src)
}
