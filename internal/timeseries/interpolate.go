package timeseries

// FillGaps linearly interpolates runs of consecutive missing points, as
// long as no run exceeds maxGapRun and the run is bracketed by valid
// points on both sides. Leading and trailing runs cannot be bracketed and
// are left missing. The input is not modified.
//
// ok is false when the series contains an interior gap run longer than
// maxGapRun, signalling the caller to exclude the series rather than
// correlate over fabricated data.
func FillGaps(points []Point, maxGapRun int) ([]Point, bool) {
	filled := make([]Point, len(points))
	copy(filled, points)

	i := 0
	for i < len(filled) {
		if filled[i].Valid {
			i++
			continue
		}

		// Measure the run of missing points starting at i.
		j := i
		for j < len(filled) && !filled[j].Valid {
			j++
		}
		run := j - i

		// Leading or trailing runs have no bracketing values.
		if i == 0 || j == len(filled) {
			i = j
			continue
		}

		if run > maxGapRun {
			return nil, false
		}

		lo := filled[i-1].Value
		hi := filled[j].Value
		for k := i; k < j; k++ {
			frac := float64(k-i+1) / float64(run+1)
			filled[k].Value = lo + (hi-lo)*frac
			filled[k].Valid = true
		}
		i = j
	}

	return filled, true
}
