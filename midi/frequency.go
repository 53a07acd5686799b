package midi

import (
	"fmt"
	"math"
)

const (
	// A4 is the reference key, tuned to 440 Hz.
	A4        = 69
	A4Hz      = 440.0
	MaxKey    = 127
	NumKeys   = 128
	MiddleC   = 60
	octaveLen = 12
)

var noteNames = [octaveLen]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var frequencies = func() [NumKeys]float64 {
	var t [NumKeys]float64
	for k := range t {
		t[k] = A4Hz * math.Pow(2, float64(k-A4)/octaveLen)
	}
	return t
}()

// Frequency returns the equal-tempered frequency of key in Hz.
func Frequency(key int) float64 {
	if key >= 0 && key < NumKeys {
		return frequencies[key]
	}
	return A4Hz * math.Pow(2, float64(key-A4)/octaveLen)
}

// FrequencyTable returns the frequencies of all 128 keys.
func FrequencyTable() [NumKeys]float64 {
	return frequencies
}

// KeyName formats key in scientific pitch notation with middle C as C4.
func KeyName(key int) string {
	if key < 0 || key > MaxKey {
		return fmt.Sprintf("key(%d)", key)
	}
	return fmt.Sprintf("%s%d", noteNames[key%octaveLen], key/octaveLen-1)
}

// Division returns the ticks per quarter note that make one tick last one
// hop at 120 BPM.
func Division(sampleRate, hop int) int {
	if hop <= 0 {
		return 1
	}
	return max(int(0.5*float64(sampleRate)/float64(hop)), 1)
}
