package transcode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/blazeiburgess/WaoN/logging"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVSource streams integer PCM from a RIFF/WAVE file.
type WAVSource struct {
	closer   io.Closer
	decoder  *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	rate     int
	scale    float64
	offset   float64
	total    int64
	eof      bool
}

// OpenWAV opens path and positions the decoder at the first PCM sample.
func OpenWAV(path string) (*WAVSource, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "wav_decoder",
		"function":  "OpenWAV",
		"filename":  path,
	})

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	src, err := OpenWAVReader(file, file)
	if err != nil {
		file.Close()
		logger.Error(err, "Failed to open WAV file")
		return nil, err
	}

	logger.Debug("WAV stream opened", logging.Fields{
		"sample_rate": src.rate,
		"channels":    src.channels,
		"bit_depth":   src.decoder.BitDepth,
		"frames":      src.total,
	})
	return src, nil
}

// OpenWAVReader reads WAV data from r. closer, if not nil, is closed with the
// source.
func OpenWAVReader(r io.ReadSeeker, closer io.Closer) (*WAVSource, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrInvalidInput)
	}
	if decoder.WavAudioFormat != wavFormatPCM && decoder.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: unsupported WAV encoding %d (only integer PCM)", ErrInvalidInput, decoder.WavAudioFormat)
	}

	channels := int(decoder.NumChans)
	rate := int(decoder.SampleRate)
	if err := validateFormat(rate, channels); err != nil {
		return nil, err
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidInput, bitDepth)
	}

	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	src := &WAVSource{
		closer:   closer,
		decoder:  decoder,
		channels: channels,
		rate:     rate,
		scale:    1.0 / float64(int64(1)<<(bitDepth-1)),
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: rate},
		},
	}
	// 8-bit WAV is unsigned
	if bitDepth == 8 {
		src.offset = 128
	}
	if pcmLen := decoder.PCMLen(); pcmLen > 0 {
		src.total = pcmLen / int64(channels*bitDepth/8)
	}
	return src, nil
}

func (w *WAVSource) Read(left, right []float64) (int, error) {
	if w.eof {
		return 0, io.EOF
	}

	want := len(left) * w.channels
	if cap(w.buf.Data) < want {
		w.buf.Data = make([]int, want)
	}
	w.buf.Data = w.buf.Data[:want]

	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	frames := n / w.channels
	for i := 0; i < frames; i++ {
		left[i] = (float64(w.buf.Data[i*w.channels]) - w.offset) * w.scale
		if w.channels == 2 && right != nil {
			right[i] = (float64(w.buf.Data[i*2+1]) - w.offset) * w.scale
		}
	}

	if n < want {
		w.eof = true
		return frames, io.EOF
	}
	return frames, nil
}

func (w *WAVSource) SampleRate() int    { return w.rate }
func (w *WAVSource) Channels() int      { return w.channels }
func (w *WAVSource) TotalFrames() int64 { return w.total }

func (w *WAVSource) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
