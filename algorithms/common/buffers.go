package common

import (
	"errors"
	"fmt"
	"io"
)

// SampleReader supplies deinterleaved samples. Read fills up to len(left)
// frames into left, and into right when the source is stereo; right is nil
// for mono readers. It returns the number of frames written. End of input is
// reported as io.EOF, possibly together with a final partial count.
type SampleReader interface {
	Read(left, right []float64) (int, error)
}

// FrameBuffer is the sliding analysis window over one or two channels.
// Each hop shifts the history left and appends fresh samples at the tail.
type FrameBuffer struct {
	size     int
	channels int
	left     []float64
	right    []float64
	mix      []float64
}

// NewFrameBuffer allocates the channel histories for frames of size samples.
func NewFrameBuffer(size, channels int) (*FrameBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", size)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("only mono and stereo are supported, got %d channels", channels)
	}

	fb := &FrameBuffer{
		size:     size,
		channels: channels,
		left:     make([]float64, size),
		mix:      make([]float64, size),
	}
	if channels == 2 {
		fb.right = make([]float64, size)
	}
	return fb, nil
}

// Prime fills positions [hop, size) so that the first ShiftAndFill yields a
// frame starting at sample 0. It returns false if the source ends first.
func (fb *FrameBuffer) Prime(r SampleReader, hop int) (bool, error) {
	if err := fb.checkHop(hop); err != nil {
		return false, err
	}
	if hop == fb.size {
		return true, nil
	}
	return fb.fill(r, hop, fb.size-hop)
}

// ShiftAndFill moves [hop, size) to [0, size-hop) and reads hop new samples
// into the tail. A short read means end of stream: it returns false and the
// partial tail must not be analysed.
func (fb *FrameBuffer) ShiftAndFill(r SampleReader, hop int) (bool, error) {
	if err := fb.checkHop(hop); err != nil {
		return false, err
	}

	keep := fb.size - hop
	copy(fb.left, fb.left[hop:])
	if fb.channels == 2 {
		copy(fb.right, fb.right[hop:])
	}
	return fb.fill(r, keep, hop)
}

func (fb *FrameBuffer) checkHop(hop int) error {
	if hop <= 0 || hop > fb.size {
		return fmt.Errorf("hop must be in (0, %d], got %d", fb.size, hop)
	}
	return nil
}

// fill reads exactly n frames starting at start, looping over short reads.
func (fb *FrameBuffer) fill(r SampleReader, start, n int) (bool, error) {
	end := start + n
	for start < end {
		var right []float64
		if fb.channels == 2 {
			right = fb.right[start:end]
		}

		got, err := r.Read(fb.left[start:end], right)
		start += got
		if err != nil {
			if errors.Is(err, io.EOF) {
				return start == end, nil
			}
			return false, err
		}
		if got == 0 {
			return false, nil
		}
	}
	return true, nil
}

// Mixdown returns the analysis signal: the mean of both channels for stereo,
// the left channel for mono. The returned slice is reused by later calls.
func (fb *FrameBuffer) Mixdown() []float64 {
	if fb.channels == 1 {
		copy(fb.mix, fb.left)
		return fb.mix
	}
	for i := range fb.mix {
		fb.mix[i] = 0.5 * (fb.left[i] + fb.right[i])
	}
	return fb.mix
}

// Left returns the left channel history
func (fb *FrameBuffer) Left() []float64 {
	return fb.left
}

// Right returns the right channel history, nil for mono
func (fb *FrameBuffer) Right() []float64 {
	return fb.right
}

// Size returns the frame size
func (fb *FrameBuffer) Size() int {
	return fb.size
}

// Channels returns the channel count
func (fb *FrameBuffer) Channels() int {
	return fb.channels
}

// Reset clears the histories
func (fb *FrameBuffer) Reset() {
	for i := range fb.left {
		fb.left[i] = 0.0
		fb.mix[i] = 0.0
	}
	for i := range fb.right {
		fb.right[i] = 0.0
	}
}
