package common

// LinearAt reads data at a fractional index by linear interpolation between
// the two surrounding samples. Indices outside the slice clamp to its ends.
func LinearAt(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 {
		return data[0]
	}
	last := len(data) - 1
	if index >= float64(last) {
		return data[last]
	}

	i := int(index)
	return Lerp(data[i], data[i+1], index-float64(i))
}
