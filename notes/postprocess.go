package notes

// Regulate closes every open note at frame end, drops empty notes and orders
// the result by start frame.
func Regulate(ns []Note, end int) []Note {
	out := ns[:0]
	for _, n := range ns {
		if n.Open() {
			n.End = end
		}
		if n.End > n.Start {
			out = append(out, n)
		}
	}
	SortByStart(out)
	return out
}

// RemoveShortNotes drops notes lasting at most maxFrames that are quieter
// than minVelocity.
func RemoveShortNotes(ns []Note, maxFrames, minVelocity int) []Note {
	out := ns[:0]
	for _, n := range ns {
		if n.Duration() <= maxFrames && n.Velocity < minVelocity {
			continue
		}
		out = append(out, n)
	}
	return out
}

// RemoveOctaves drops notes that are likely harmonics: an octave above an
// overlapping note that started no later and is at least as loud.
func RemoveOctaves(ns []Note) []Note {
	byKey := make(map[int][]int, len(ns))
	for i, n := range ns {
		byKey[n.Key] = append(byKey[n.Key], i)
	}

	drop := make([]bool, len(ns))
	for i, n := range ns {
		for _, j := range byKey[n.Key-12] {
			m := ns[j]
			if m.Start <= n.Start && m.Velocity >= n.Velocity && m.Overlaps(n) {
				drop[i] = true
				break
			}
		}
	}

	out := make([]Note, 0, len(ns))
	for i, n := range ns {
		if !drop[i] {
			out = append(out, n)
		}
	}
	return out
}

// Clean runs the standard clean-up chain on tracked notes: regulate, drop
// one-frame notes below velocity 64 and two-frame notes below 28, then
// remove octave duplicates.
func Clean(ns []Note, end int) []Note {
	ns = Regulate(ns, end)
	ns = RemoveShortNotes(ns, 1, 64)
	ns = RemoveShortNotes(ns, 2, 28)
	return RemoveOctaves(ns)
}
