// Command waon transcribes audio recordings into Standard MIDI Files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blazeiburgess/WaoN/logging"
	"github.com/blazeiburgess/WaoN/transcriber"
	"github.com/blazeiburgess/WaoN/transcriber/config"
)

const (
	exitFailure = 1
	exitConfig  = 2
	exitInput   = 3
	exitOutput  = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, transcriber.ErrInvalidConfig):
		return exitConfig
	case errors.Is(err, transcriber.ErrInput):
		return exitInput
	case errors.Is(err, transcriber.ErrOutput):
		return exitOutput
	}
	return exitFailure
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "waon [flags] [input...]",
		Short: "Transcribe audio into MIDI",
		Long: `waon analyses a recording with short-time Fourier transforms, refines
bin frequencies with a phase vocoder and writes the detected notes as a
Standard MIDI File. WAV input is decoded natively, other formats through ffmpeg.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, loaded, err := flags.loadOptions(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cmd, opts)
			logging.Debug("Configuration resolved", logging.Fields{
				"config_files": loaded,
			})

			if flags.saveConfig != "" {
				if err := config.SaveFile(flags.saveConfig, opts); err != nil {
					return fmt.Errorf("%w: %v", transcriber.ErrOutput, err)
				}
			}

			inputs := args
			if flags.input != "" {
				inputs = append([]string{flags.input}, inputs...)
			}

			if flags.dryRun {
				return printEffectiveConfig(cmd.OutOrStdout(), opts, inputs, flags)
			}
			if len(inputs) == 0 {
				if flags.saveConfig != "" {
					return nil
				}
				return fmt.Errorf("%w: no input file given (use -i FILE or pass it as an argument)", transcriber.ErrInput)
			}

			if flags.batch {
				return runBatch(cmd, opts, flags, inputs)
			}
			if len(inputs) > 1 {
				return fmt.Errorf("%w: %d inputs given; use --batch to process several files", transcriber.ErrInput, len(inputs))
			}
			return runSingle(cmd, opts, flags, inputs[0])
		},
	}

	root.SetGlobalNormalizationFunc(normalizeFlagName)
	flags.register(root.PersistentFlags())

	root.AddCommand(newVersionCommand())
	root.AddCommand(newWatchCommand(flags))
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "waon %s\n", transcriber.Version)
		},
	}
}

// setupLogging routes library logging through logrus on stderr.
func setupLogging(cmd *cobra.Command, opts *config.Options) {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	adapter := logging.NewLogrusAdapter(logger)
	switch {
	case bool(opts.General.Verbose):
		adapter.SetLevel(logging.DebugLevel)
	case bool(opts.General.Quiet):
		adapter.SetLevel(logging.WarnLevel)
	default:
		adapter.SetLevel(logging.InfoLevel)
	}
	logging.SetGlobalLogger(adapter)
}
