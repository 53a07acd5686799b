package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blazeiburgess/WaoN/logging"
	"github.com/blazeiburgess/WaoN/transcriber"
	"github.com/blazeiburgess/WaoN/transcriber/config"
)

// defaultSettle is how long a new file must stay unmodified before it is
// transcribed.
const defaultSettle = 500 * time.Millisecond

func newWatchCommand(flags *cliFlags) *cobra.Command {
	settle := defaultSettle

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Transcribe every WAV file created in a directory",
		Long: `watch transcribes each .wav file that appears in DIR until interrupted.
MIDI files are written next to the input, or into the directory given with -o.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, _, err := flags.loadOptions(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cmd, opts)

			outDir := ""
			if cmd.Flags().Changed("output") {
				outDir = flags.output
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("%w: %v", transcriber.ErrOutput, err)
				}
			}

			w := &dirWatcher{
				dir:    args[0],
				outDir: outDir,
				opts:   opts,
				settle: settle,
				logger: logging.WithFields(logging.Fields{
					"component": "watcher",
					"dir":       args[0],
				}),
			}
			return w.run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", defaultSettle, "quiet period after the last write before a file is processed")
	return cmd
}

func isWAVPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return true
	}
	return false
}

type dirWatcher struct {
	dir    string
	outDir string
	opts   *config.Options
	settle time.Duration
	logger logging.Logger

	// onDone is called after each file, mainly for tests.
	onDone func(input string, result *transcriber.Result, err error)
}

// run watches until ctx is cancelled. Cancellation is a clean exit.
func (w *dirWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %v", transcriber.ErrResource, err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("%w: watch %s: %v", transcriber.ErrInput, w.dir, err)
	}
	w.logger.Info("Watching for new WAV files")

	jobs := make(chan string, 16)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		return w.collect(gctx, watcher, jobs)
	})
	g.Go(func() error {
		for input := range jobs {
			w.process(gctx, input)
		}
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		w.logger.Info("Watcher stopped")
		return nil
	}
	return err
}

// collect turns filesystem events into jobs once a file has settled.
func (w *dirWatcher) collect(ctx context.Context, watcher *fsnotify.Watcher, jobs chan<- string) error {
	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		ready   = make(chan string, 16)
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(w.settle)
			return
		}
		pending[path] = time.AfterFunc(w.settle, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isWAVPath(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				schedule(event.Name)
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				mu.Lock()
				_, tracked := pending[event.Name]
				mu.Unlock()
				if tracked {
					schedule(event.Name)
				}
			}
		case path := <-ready:
			select {
			case jobs <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err, "Watcher error")
		}
	}
}

func (w *dirWatcher) process(ctx context.Context, input string) {
	output := batchOutputPath(input, w.outDir)

	result, err := transcriber.TranscribeFile(
		logging.ContextWithFields(ctx, logging.Fields{"input": input}),
		input, output, w.opts)
	if err != nil {
		w.logger.Error(err, "Transcription failed", logging.Fields{"input": input})
	} else {
		w.logger.Info("Transcribed", logging.Fields{
			"input":  input,
			"output": output,
			"notes":  result.Summary.Notes,
		})
	}

	if w.onDone != nil {
		w.onDone(input, result, err)
	}
}
