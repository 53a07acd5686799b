package transcode

import (
	"fmt"
	"io"
)

// MemorySource serves samples from an in-memory interleaved buffer.
type MemorySource struct {
	data       []float64
	sampleRate int
	channels   int
	pos        int // in frames
}

// NewMemorySource wraps interleaved samples (L R L R ... for stereo).
// A trailing incomplete stereo frame is ignored.
func NewMemorySource(data []float64, sampleRate, channels int) (*MemorySource, error) {
	if err := validateFormat(sampleRate, channels); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	return &MemorySource{
		data:       data,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

func (m *MemorySource) Read(left, right []float64) (int, error) {
	total := len(m.data) / m.channels
	if m.pos >= total {
		return 0, io.EOF
	}

	n := min(len(left), total-m.pos)
	if m.channels == 1 {
		copy(left, m.data[m.pos:m.pos+n])
	} else {
		base := m.pos * 2
		for i := 0; i < n; i++ {
			left[i] = m.data[base+2*i]
			if right != nil {
				right[i] = m.data[base+2*i+1]
			}
		}
	}
	m.pos += n
	return n, nil
}

func (m *MemorySource) SampleRate() int    { return m.sampleRate }
func (m *MemorySource) Channels() int      { return m.channels }
func (m *MemorySource) TotalFrames() int64 { return int64(len(m.data) / m.channels) }
func (m *MemorySource) Close() error       { return nil }

// Rewind restarts reading from the first frame.
func (m *MemorySource) Rewind() {
	m.pos = 0
}
