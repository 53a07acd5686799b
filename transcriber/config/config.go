package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/blazeiburgess/WaoN/algorithms/common"
	"github.com/blazeiburgess/WaoN/algorithms/spectral"
	"github.com/blazeiburgess/WaoN/algorithms/windowing"
	"github.com/blazeiburgess/WaoN/transcode"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("waon: invalid configuration")

const (
	MinFFTSize = 16
	// NoProgram leaves the MIDI program unset.
	NoProgram = -1
	// NoPeakSearch disables re-striking held notes on velocity jumps.
	NoPeakSearch = 128
)

// Toggle is a boolean that also accepts the 0/1 integers of classic WaoN
// configuration files.
type Toggle bool

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Toggle) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "1", "true", "yes", "on":
		*t = true
	case "0", "false", "no", "off", "":
		*t = false
	default:
		return fmt.Errorf("invalid boolean %q", text)
	}
	return nil
}

// Options is the complete run configuration. The TOML layout follows the
// sections of a WaoN configuration file.
type Options struct {
	General       GeneralOptions           `json:"general" toml:"general"`
	Analysis      AnalysisOptions          `json:"analysis" toml:"analysis"`
	NoteDetection NoteDetectionOptions     `json:"note_detection" toml:"note-detection"`
	Range         RangeOptions             `json:"range" toml:"range"`
	Processing    ProcessingOptions        `json:"processing" toml:"processing"`
	Output        OutputOptions            `json:"output" toml:"output"`
	Decoder       *transcode.DecoderConfig `json:"decoder" toml:"decoder"`
}

type GeneralOptions struct {
	Verbose  Toggle `json:"verbose" toml:"verbose"`
	Quiet    Toggle `json:"quiet" toml:"quiet"`
	Progress Toggle `json:"progress" toml:"progress"`
}

type AnalysisOptions struct {
	FFTSize  int              `json:"fft_size" toml:"fft-size"`
	HopSize  int              `json:"hop_size" toml:"hop-size"` // 0 = FFTSize/4
	Window   windowing.Kind   `json:"window" toml:"window"`
	UsePhase Toggle           `json:"use_phase" toml:"use-phase"`
	Backend  spectral.Backend `json:"backend" toml:"backend"`
}

type NoteDetectionOptions struct {
	Cutoff            float64 `json:"cutoff" toml:"cutoff"` // log10 of the absolute power threshold
	UseRelativeCutoff bool    `json:"use_relative_cutoff" toml:"use-relative-cutoff"`
	RelativeCutoff    float64 `json:"relative_cutoff" toml:"relative-cutoff"`
	PeakThreshold     int     `json:"peak_threshold" toml:"peak-threshold"`
	PitchAdjust       float64 `json:"pitch_adjust" toml:"pitch-adjust"` // semitones
}

type RangeOptions struct {
	TopNote    int `json:"top_note" toml:"top-note"`
	BottomNote int `json:"bottom_note" toml:"bottom-note"`
}

type ProcessingOptions struct {
	DrumRemovalBins   int     `json:"drum_removal_bins" toml:"drum-removal-bins"`
	DrumRemovalFactor float64 `json:"drum_removal_factor" toml:"drum-removal-factor"`
	OctaveRemoval     float64 `json:"octave_removal" toml:"octave-removal"`
	Threads           int     `json:"threads" toml:"threads"`
}

type OutputOptions struct {
	Program int `json:"program" toml:"program"` // General MIDI patch, -1 for none
}

// DefaultOptions returns the classic WaoN command line defaults.
func DefaultOptions() *Options {
	return &Options{
		General: GeneralOptions{},
		Analysis: AnalysisOptions{
			FFTSize:  2048,
			HopSize:  0,
			Window:   windowing.Hanning,
			UsePhase: true,
			Backend:  spectral.DefaultBackend,
		},
		NoteDetection: NoteDetectionOptions{
			Cutoff:         -5.0,
			RelativeCutoff: 1.0,
			PeakThreshold:  NoPeakSearch,
		},
		Range: RangeOptions{
			TopNote:    103, // G7
			BottomNote: 28,  // E1
		},
		Processing: ProcessingOptions{
			Threads: 1,
		},
		Output: OutputOptions{
			Program: NoProgram,
		},
		Decoder: transcode.DefaultDecoderConfig(),
	}
}

// Clone returns a deep copy.
func (o *Options) Clone() *Options {
	c := *o
	if o.Decoder != nil {
		d := *o.Decoder
		c.Decoder = &d
	}
	return &c
}

// EffectiveHop resolves the automatic hop size.
func (o *Options) EffectiveHop() int {
	if o.Analysis.HopSize == 0 {
		return o.Analysis.FFTSize / 4
	}
	return o.Analysis.HopSize
}

// Normalize resolves derived settings: the automatic hop, and drum removal,
// which needs both a radius and a factor to be active.
func (o *Options) Normalize() {
	o.Analysis.HopSize = o.EffectiveHop()
	if o.Processing.DrumRemovalBins == 0 || o.Processing.DrumRemovalFactor == 0 {
		o.Processing.DrumRemovalBins = 0
		o.Processing.DrumRemovalFactor = 0
	}
	if o.Analysis.Backend == "" {
		o.Analysis.Backend = spectral.DefaultBackend
	}
	if o.Decoder == nil {
		o.Decoder = transcode.DefaultDecoderConfig()
	}
}

// Validate checks every invariant of the analysis configuration.
func (o *Options) Validate() error {
	a := o.Analysis
	if a.FFTSize < MinFFTSize {
		return invalid("fft size must be at least %d, got %d", MinFFTSize, a.FFTSize)
	}
	if !common.IsPowerOfTwo(a.FFTSize) {
		return invalid("fft size must be a power of two, got %d (nearest above is %d)", a.FFTSize, common.NextPowerOfTwo(a.FFTSize))
	}
	if hop := o.EffectiveHop(); hop <= 0 || hop > a.FFTSize {
		return invalid("hop size must be in (0, %d], got %d", a.FFTSize, a.HopSize)
	}
	if !a.Window.Valid() {
		return invalid("unknown window %d", int(a.Window))
	}
	if _, err := spectral.ParseBackend(string(a.Backend)); err != nil {
		return invalid("%v", err)
	}

	n := o.NoteDetection
	if !finite(n.Cutoff) || !finite(n.RelativeCutoff) || !finite(n.PitchAdjust) {
		return invalid("cutoff, relative cutoff and pitch adjust must be finite")
	}
	if n.PeakThreshold < 0 {
		return invalid("peak threshold must be non-negative, got %d", n.PeakThreshold)
	}

	r := o.Range
	if r.BottomNote < 0 || r.TopNote > 127 || r.BottomNote > r.TopNote {
		return invalid("note range must satisfy 0 <= bottom <= top <= 127, got [%d, %d]", r.BottomNote, r.TopNote)
	}

	p := o.Processing
	if p.DrumRemovalBins < 0 {
		return invalid("drum removal bins must be non-negative, got %d", p.DrumRemovalBins)
	}
	if p.DrumRemovalFactor < 0 || !finite(p.DrumRemovalFactor) {
		return invalid("drum removal factor must be non-negative, got %g", p.DrumRemovalFactor)
	}
	if p.OctaveRemoval < 0 || !finite(p.OctaveRemoval) {
		return invalid("octave removal factor must be non-negative, got %g", p.OctaveRemoval)
	}
	if p.Threads < 1 {
		return invalid("threads must be at least 1, got %d", p.Threads)
	}

	if prog := o.Output.Program; prog < NoProgram || prog > 127 {
		return invalid("program must be in [0, 127] or %d, got %d", NoProgram, prog)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
