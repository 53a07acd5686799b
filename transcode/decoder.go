package transcode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/blazeiburgess/WaoN/logging"
)

// DecoderConfig holds ffmpeg decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" toml:"target-sample-rate"` // 0 keeps the native rate
	MaxDuration      time.Duration `json:"max_duration" toml:"max-duration"`
	ResampleQuality  string        `json:"resample_quality" toml:"resample-quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path" toml:"ffmpeg-path"`
	FFprobePath      string        `json:"ffprobe_path" toml:"ffprobe-path"`
	ProbeTimeout     time.Duration `json:"probe_timeout" toml:"probe-timeout"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,
		MaxDuration:      0, // No limit
		ResampleQuality:  "medium",
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		ProbeTimeout:     30 * time.Second,
	}
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// FFmpegSource streams float64 PCM from an ffmpeg child process.
type FFmpegSource struct {
	cmd        *exec.Cmd
	cancel     context.CancelFunc
	stdout     io.ReadCloser
	reader     *bufio.Reader
	stderr     bytes.Buffer
	scratch    []byte
	sampleRate int
	channels   int
	total      int64
	metadata   *AudioMetadata

	done bool
	err  error
}

// OpenFFmpeg probes path and starts an ffmpeg process decoding its first
// audio stream. Sources with more than two channels are downmixed to stereo.
func OpenFFmpeg(ctx context.Context, path string, config *DecoderConfig) (*FFmpegSource, error) {
	if config == nil {
		config = DefaultDecoderConfig()
	}

	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "OpenFFmpeg",
		"filename":  path,
	})

	metadata, err := probeAudioFile(ctx, path, config)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	channels := min(metadata.Channels, 2)
	sampleRate := metadata.SampleRate
	if config.TargetSampleRate > 0 {
		sampleRate = config.TargetSampleRate
	}
	if err := validateFormat(sampleRate, channels); err != nil {
		return nil, err
	}

	args := buildFFmpegArgs(path, config, metadata, sampleRate, channels)

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, config.FFmpegPath, args...)
	src := &FFmpegSource{
		cmd:        cmd,
		cancel:     cancel,
		sampleRate: sampleRate,
		channels:   channels,
		total:      expectedFrames(metadata.Duration, config.MaxDuration, sampleRate),
		metadata:   metadata,
	}
	cmd.Stderr = &src.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: ffmpeg start failed: %v", ErrInvalidInput, err)
	}

	src.stdout = stdout
	src.reader = bufio.NewReaderSize(stdout, 64*1024)
	return src, nil
}

func (s *FFmpegSource) Read(left, right []float64) (int, error) {
	if s.done {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}

	frameBytes := 8 * s.channels
	want := len(left) * frameBytes
	if cap(s.scratch) < want {
		s.scratch = make([]byte, want)
	}
	buf := s.scratch[:want]

	n, err := io.ReadFull(s.reader, buf)
	frames := n / frameBytes
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		left[i] = float64FromBytes(buf[base:])
		if s.channels == 2 && right != nil {
			right[i] = float64FromBytes(buf[base+8:])
		}
	}

	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.finish()
			if s.err != nil {
				return frames, s.err
			}
			return frames, io.EOF
		}
		return frames, err
	}
	return frames, nil
}

// finish reaps the child once the pipe is drained and records its exit status.
func (s *FFmpegSource) finish() {
	if s.done {
		return
	}
	s.done = true
	if err := s.cmd.Wait(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logging.WithFields(logging.Fields{
				"component": "audio_decoder",
			}).Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": s.stderr.String(),
			})
			s.err = fmt.Errorf("%w: ffmpeg decode failed: %v, stderr: %s", ErrInvalidInput, err, strings.TrimSpace(s.stderr.String()))
			return
		}
		s.err = fmt.Errorf("ffmpeg decode failed: %w", err)
	}
}

func (s *FFmpegSource) SampleRate() int    { return s.sampleRate }
func (s *FFmpegSource) Channels() int      { return s.channels }
func (s *FFmpegSource) TotalFrames() int64 { return s.total }

// Metadata returns what ffprobe reported for the input.
func (s *FFmpegSource) Metadata() *AudioMetadata { return s.metadata }

// Close stops the decoder. Closing before the stream is drained kills ffmpeg.
func (s *FFmpegSource) Close() error {
	if s.done {
		s.cancel()
		return nil
	}
	s.done = true
	s.cancel()
	_ = s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}

// probeAudioFile uses ffprobe to get audio information from a file
func probeAudioFile(ctx context.Context, filename string, config *DecoderConfig) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-show_format",           // Container duration fallback
		"-select_streams", "a:0", // First audio stream only
		filename,
	}

	if config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, config.FFprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("%w: ffprobe failed: %v, stderr: %s", ErrInvalidInput, err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrInvalidInput, err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no audio streams found", ErrInvalidInput)
	}

	stream := probe.Streams[0]

	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: stream is not audio type: %s", ErrInvalidInput, stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: bad sample rate %q", ErrInvalidInput, stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration, err = strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			duration = 0
		}
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("%w: invalid channel count: %d", ErrInvalidInput, stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs builds the ffmpeg arguments based on configuration and metadata
func buildFFmpegArgs(path string, config *DecoderConfig, metadata *AudioMetadata, sampleRate, channels int) []string {
	args := []string{
		"-v", "error", // Suppress verbose output
		"-nostdin",
		"-i", path,
		"-map", "0:a:0",
		"-vn",         // No video
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
	}

	if metadata.SampleRate != sampleRate {
		switch config.ResampleQuality {
		case "fast":
			args = append(args, "-af", "aresample=resampler=soxr:precision=16")
		case "medium":
			args = append(args, "-af", "aresample=resampler=soxr:precision=20")
		case "high":
			args = append(args, "-af", "aresample=resampler=soxr:precision=28")
		}
	}

	if config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", config.MaxDuration.Seconds()))
	}

	return append(args, "pipe:1")
}

func expectedFrames(durationSec float64, limit time.Duration, sampleRate int) int64 {
	if limit > 0 && (durationSec <= 0 || limit.Seconds() < durationSec) {
		durationSec = limit.Seconds()
	}
	if durationSec <= 0 {
		return 0
	}
	return int64(durationSec * float64(sampleRate))
}

// float64FromBytes decodes one little-endian float64
func float64FromBytes(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:8]))
}
