package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/blazeiburgess/WaoN/algorithms/spectral"
	"github.com/blazeiburgess/WaoN/algorithms/windowing"
	"github.com/blazeiburgess/WaoN/transcriber/config"
)

// cliFlags holds raw flag values. Only flags the user actually set are
// applied on top of the configuration files.
type cliFlags struct {
	input  string
	output string

	fftSize  int
	hopSize  int
	window   string
	noPhase  bool
	backend  string
	cutoff   float64
	relative float64
	peak     int
	top      int
	bottom   int
	adjust   float64

	drumBins   int
	drumFactor float64
	octave     float64
	program    int

	configPath string
	noConfig   bool
	saveConfig string
	dryRun     bool
	batch      bool
	threads    int
	jsonOut    bool
	progress   bool
	quiet      bool
	verbose    bool
}

// legacyFlagNames maps the option spellings of older WaoN releases to the
// current flag names.
var legacyFlagNames = map[string]string{
	"shift":       "hop-size",
	"nophase":     "no-phase",
	"psub-n":      "drum-removal-bins",
	"psub-f":      "drum-removal-factor",
	"oct":         "octave-removal",
	"top-note":    "top",
	"bottom-note": "bottom",
	"patch":       "program",
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := legacyFlagNames[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

func (f *cliFlags) register(fs *pflag.FlagSet) {
	d := config.DefaultOptions()

	fs.StringVarP(&f.input, "input", "i", "", `input audio file ("-" reads WAV from stdin)`)
	fs.StringVarP(&f.output, "output", "o", "output.mid", `output MIDI file ("-" writes to stdout), or directory in batch mode`)

	fs.IntVarP(&f.fftSize, "fft-size", "n", d.Analysis.FFTSize, "FFT size, a power of two")
	fs.IntVarP(&f.hopSize, "hop-size", "s", d.Analysis.HopSize, "hop between frames in samples (0 = fft-size/4)")
	fs.StringVarP(&f.window, "window", "w", d.Analysis.Window.String(), "window: 0 none, 1 parzen, 2 welch, 3 hanning, 4 hamming, 5 blackman, 6 steeper")
	fs.BoolVar(&f.noPhase, "no-phase", false, "disable phase-vocoder frequency correction")
	fs.StringVar(&f.backend, "backend", string(d.Analysis.Backend), "FFT backend: gonum or go-dsp")

	fs.Float64VarP(&f.cutoff, "cutoff", "c", d.NoteDetection.Cutoff, "log10 of the absolute power cutoff")
	fs.Float64VarP(&f.relative, "relative", "r", d.NoteDetection.RelativeCutoff, "use a cutoff relative to the mean power, offset in log10 units")
	fs.IntVarP(&f.peak, "peak", "k", d.NoteDetection.PeakThreshold, "velocity jump that re-strikes a held note (128 disables)")
	fs.IntVarP(&f.top, "top", "t", d.Range.TopNote, "highest MIDI key to detect")
	fs.IntVarP(&f.bottom, "bottom", "b", d.Range.BottomNote, "lowest MIDI key to detect")
	fs.Float64VarP(&f.adjust, "adjust", "a", d.NoteDetection.PitchAdjust, "pitch adjustment in semitones")

	fs.IntVar(&f.drumBins, "drum-removal-bins", d.Processing.DrumRemovalBins, "half width of the drum removal average in bins")
	fs.Float64Var(&f.drumFactor, "drum-removal-factor", d.Processing.DrumRemovalFactor, "amplitude factor for drum removal")
	fs.Float64Var(&f.octave, "octave-removal", d.Processing.OctaveRemoval, "amplitude factor for octave removal")
	fs.IntVarP(&f.program, "program", "p", d.Output.Program, "General MIDI program for the track (-1 for none)")

	fs.StringVar(&f.configPath, "config", "", "configuration file applied after the default files")
	fs.BoolVar(&f.noConfig, "no-config", false, "skip /etc/waon.conf and ~/.waonrc")
	fs.StringVar(&f.saveConfig, "save-config", "", "write the effective configuration to this file")
	fs.BoolVar(&f.dryRun, "dry-run", false, "validate and print the effective configuration without processing")
	fs.BoolVar(&f.batch, "batch", false, "transcribe every input argument (globs are expanded)")
	fs.IntVar(&f.threads, "threads", d.Processing.Threads, "maximum concurrent transcriptions in batch mode")
	fs.BoolVar(&f.jsonOut, "json", false, "print a JSON report to stdout")
	fs.BoolVar(&f.progress, "progress", false, "show a progress bar")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only log warnings and errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log debug information")
}

// apply overlays every flag the user set onto opts.
func (f *cliFlags) apply(fs *pflag.FlagSet, opts *config.Options) error {
	changed := fs.Changed

	if changed("fft-size") {
		opts.Analysis.FFTSize = f.fftSize
	}
	if changed("hop-size") {
		opts.Analysis.HopSize = f.hopSize
	}
	if changed("window") {
		kind, err := windowing.ParseKind(f.window)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		opts.Analysis.Window = kind
	}
	if changed("no-phase") {
		opts.Analysis.UsePhase = config.Toggle(!f.noPhase)
	}
	if changed("backend") {
		backend, err := spectral.ParseBackend(f.backend)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		opts.Analysis.Backend = backend
	}

	if changed("cutoff") {
		opts.NoteDetection.Cutoff = f.cutoff
	}
	if changed("relative") {
		opts.NoteDetection.UseRelativeCutoff = true
		opts.NoteDetection.RelativeCutoff = f.relative
	}
	if changed("peak") {
		opts.NoteDetection.PeakThreshold = f.peak
	}
	if changed("adjust") {
		opts.NoteDetection.PitchAdjust = f.adjust
	}
	if changed("top") {
		opts.Range.TopNote = f.top
	}
	if changed("bottom") {
		opts.Range.BottomNote = f.bottom
	}

	if changed("drum-removal-bins") {
		opts.Processing.DrumRemovalBins = f.drumBins
	}
	if changed("drum-removal-factor") {
		opts.Processing.DrumRemovalFactor = f.drumFactor
	}
	if changed("octave-removal") {
		opts.Processing.OctaveRemoval = f.octave
	}
	if changed("threads") {
		opts.Processing.Threads = f.threads
	}
	if changed("program") {
		opts.Output.Program = f.program
	}

	if changed("verbose") {
		opts.General.Verbose = config.Toggle(f.verbose)
	}
	if changed("quiet") {
		opts.General.Quiet = config.Toggle(f.quiet)
	}
	if changed("progress") {
		opts.General.Progress = config.Toggle(f.progress)
	}
	return nil
}

// loadOptions builds the effective configuration: defaults, then the default
// files unless disabled, then --config, then command line flags.
func (f *cliFlags) loadOptions(fs *pflag.FlagSet) (*config.Options, []string, error) {
	opts := config.DefaultOptions()

	var loaded []string
	if !f.noConfig {
		paths, err := config.LoadDefaultFiles(opts)
		if err != nil {
			return nil, nil, err
		}
		loaded = paths
	}
	if f.configPath != "" {
		if err := config.LoadFile(f.configPath, opts); err != nil {
			return nil, nil, err
		}
		loaded = append(loaded, f.configPath)
	}

	if err := f.apply(fs, opts); err != nil {
		return nil, nil, err
	}

	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	return opts, loaded, nil
}
