package notes

// DebounceFrames is how long after its onset a note may still raise its
// velocity to the loudest value seen.
const DebounceFrames = 8

// Tracker turns per-frame key velocities into note on/off events.
type Tracker struct {
	debounce      int
	peakThreshold int

	sounding [NumKeys]int // index into notes, -1 when the key is off
	last     [NumKeys]int // velocity of the previous frame
	notes    []Note
}

// NewTracker creates a tracker. A peakThreshold in (0, 128) re-strikes a held
// key whenever its velocity jumps by at least that much between frames.
func NewTracker(debounceFrames, peakThreshold int) *Tracker {
	t := &Tracker{
		debounce:      debounceFrames,
		peakThreshold: peakThreshold,
	}
	for k := range t.sounding {
		t.sounding[k] = -1
	}
	return t
}

// Update applies the velocities of frame.
func (t *Tracker) Update(frame int, vel *Velocities) {
	for k, v := range vel {
		idx := t.sounding[k]

		switch {
		case v > 0 && idx < 0:
			t.open(k, v, frame)

		case v > 0:
			n := &t.notes[idx]
			if t.restrike(v - t.last[k]) {
				n.End = frame
				t.open(k, v, frame)
			} else if frame-n.Start < t.debounce && v > n.Velocity {
				n.Velocity = v
			}

		case idx >= 0:
			t.notes[idx].End = frame
			t.sounding[k] = -1
		}
		t.last[k] = v
	}
}

func (t *Tracker) restrike(jump int) bool {
	return t.peakThreshold > 0 && t.peakThreshold < 128 && jump >= t.peakThreshold
}

func (t *Tracker) open(key, vel, frame int) {
	t.notes = append(t.notes, Note{Key: key, Velocity: vel, Start: frame, End: -1})
	t.sounding[key] = len(t.notes) - 1
}

// Notes returns the collected notes; notes still sounding have End == -1.
func (t *Tracker) Notes() []Note {
	return t.notes
}
