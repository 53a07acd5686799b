package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blazeiburgess/WaoN/logging"
	"github.com/blazeiburgess/WaoN/midi"
	"github.com/blazeiburgess/WaoN/transcriber"
	"github.com/blazeiburgess/WaoN/transcriber/config"
)

const progressSteps = 1000

// printEffectiveConfig writes the validated configuration as TOML, or as
// JSON with --json.
func printEffectiveConfig(w io.Writer, opts *config.Options, inputs []string, flags *cliFlags) error {
	if flags.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Inputs  []string        `json:"inputs"`
			Output  string          `json:"output"`
			Options *config.Options `json:"options"`
		}{inputs, flags.output, opts})
	}

	fmt.Fprintf(w, "# inputs: %s\n# output: %s\n\n", strings.Join(inputs, " "), flags.output)
	return toml.NewEncoder(w).Encode(opts)
}

// newProgressBar returns an observer that renders a progress bar on w.
func newProgressBar(w io.Writer, description string) (*progressbar.ProgressBar, transcriber.ProgressObserver) {
	bar := progressbar.NewOptions(progressSteps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
	observer := transcriber.ProgressFunc(func(fraction float64) {
		_ = bar.Set(int(fraction * progressSteps))
	})
	return bar, observer
}

// transcribeTo runs one input and writes its MIDI file, or streams it to
// stdout when output is "-".
func transcribeTo(ctx context.Context, tr *transcriber.Transcriber, input, output string, stdout io.Writer) (*transcriber.Result, error) {
	if output != "-" {
		return tr.TranscribeFile(ctx, input, output)
	}

	result, err := tr.TranscribeFile(ctx, input, "")
	if err != nil {
		return nil, err
	}
	if err := midi.Write(stdout, result.Notes, result.WriterConfig()); err != nil {
		return nil, err
	}
	return result, nil
}

func runSingle(cmd *cobra.Command, opts *config.Options, flags *cliFlags, input string) error {
	ctx := logging.ContextWithFields(cmd.Context(), logging.Fields{"input": input})
	output := flags.output
	if flags.jsonOut && output == "-" {
		return fmt.Errorf("%w: --json and MIDI on stdout cannot be combined", transcriber.ErrOutput)
	}

	tr, err := transcriber.New(opts)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if opts.General.Progress && !opts.General.Quiet {
		var observer transcriber.ProgressObserver
		bar, observer = newProgressBar(cmd.ErrOrStderr(), filepath.Base(input))
		tr.SetProgressObserver(observer)
	}

	result, err := transcribeTo(ctx, tr, input, output, cmd.OutOrStdout())
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	if flags.jsonOut {
		return result.Report(input, output).WriteJSON(cmd.OutOrStdout())
	}
	return nil
}

// batchOutputPath places <name>.mid next to the input, or inside dir when
// one is given.
func batchOutputPath(input, dir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".mid"
	if dir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	return filepath.Join(dir, base)
}

// expandInputs resolves glob patterns. Arguments without matches are kept as
// given so that the open error names them.
func expandInputs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", transcriber.ErrInput, arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func runBatch(cmd *cobra.Command, opts *config.Options, flags *cliFlags, args []string) error {
	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}

	dir := ""
	if cmd.Flags().Changed("output") {
		dir = flags.output
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", transcriber.ErrOutput, err)
		}
	}

	logger := logging.WithFields(logging.Fields{
		"component": "batch",
		"inputs":    len(inputs),
		"threads":   opts.Processing.Threads,
	})
	logger.Info("Starting batch transcription")

	var (
		mu      sync.Mutex
		reports = make([]*transcriber.Report, len(inputs))
		failed  int
	)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.Processing.Threads)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			output := batchOutputPath(input, dir)
			tr, err := transcriber.New(opts)
			if err != nil {
				return err
			}

			result, err := tr.TranscribeFile(logging.ContextWithFields(ctx, logging.Fields{"input": input}), input, output)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error(err, "Transcription failed", logging.Fields{"input": input})
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			reports[i] = result.Report(input, output)
			logger.Info("Transcribed", logging.Fields{
				"input":  input,
				"output": output,
				"notes":  result.Summary.Notes,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if flags.jsonOut {
		done := make([]*transcriber.Report, 0, len(reports))
		for _, r := range reports {
			if r != nil {
				done = append(done, r)
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(done); err != nil {
			return fmt.Errorf("%w: %v", transcriber.ErrOutput, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d inputs failed", transcriber.ErrInput, failed, len(inputs))
	}
	return nil
}
