package notes

import "sort"

// Note is one detected note on the frame grid. End is the frame at which the
// note stopped sounding, or -1 while it is still open.
type Note struct {
	Key      int `json:"key"`
	Velocity int `json:"velocity"`
	Start    int `json:"start"`
	End      int `json:"end"`
}

// Open reports whether the note has not been closed yet.
func (n Note) Open() bool {
	return n.End < 0
}

// Duration returns the length of a closed note in frames.
func (n Note) Duration() int {
	if n.Open() {
		return 0
	}
	return n.End - n.Start
}

// Overlaps reports whether both notes sound during some common frame.
func (n Note) Overlaps(o Note) bool {
	return n.Start < o.End && o.Start < n.End
}

// SortByStart orders notes by start frame, then key.
func SortByStart(ns []Note) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Start != ns[j].Start {
			return ns[i].Start < ns[j].Start
		}
		return ns[i].Key < ns[j].Key
	})
}
