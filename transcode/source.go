package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blazeiburgess/WaoN/algorithms/common"
)

var (
	// ErrInvalidInput marks sources that cannot be opened or decoded.
	ErrInvalidInput = errors.New("waon: invalid input")
	// ErrUnsupportedChannels marks sources that are neither mono nor stereo.
	ErrUnsupportedChannels = errors.New("waon: unsupported channel count (must be 1 or 2)")
)

// Source is a sample stream with a fixed format for its whole lifetime.
type Source interface {
	common.SampleReader

	SampleRate() int
	Channels() int
	// TotalFrames is the expected number of frames per channel, 0 if unknown.
	TotalFrames() int64
	Close() error
}

// Stdin is the input path that reads WAV data from standard input.
const Stdin = "-"

// Open picks a decoder by file extension: WAV files are read natively,
// anything else is decoded through ffmpeg. Stdin is read as WAV.
func Open(ctx context.Context, path string, config *DecoderConfig) (Source, error) {
	var (
		src Source
		err error
	)
	switch {
	case path == Stdin:
		src, err = OpenWAVStream(os.Stdin)
	case isWAV(path):
		src, err = OpenWAV(path)
	default:
		src, err = OpenFFmpeg(ctx, path, config)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func isWAV(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return true
	}
	return false
}

// OpenWAVStream buffers a non-seekable WAV stream in memory and decodes it.
func OpenWAVStream(r io.Reader) (*WAVSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return OpenWAVReader(bytes.NewReader(data), nil)
}

func validateFormat(sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidInput, sampleRate)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %w: got %d", ErrInvalidInput, ErrUnsupportedChannels, channels)
	}
	return nil
}
