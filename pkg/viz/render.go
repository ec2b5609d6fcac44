// ABOUTME: Waveform geometry helpers
// ABOUTME: Maps samples in [-1, 1] to display rows and columns
package viz

// Normalize maps v from [-1, 1] to [0, 1], clamping out-of-range input
func Normalize(v float32) float64 {
	n := (float64(v) + 1) / 2
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Row returns the display row for v on a canvas of the given height.
// Terminal rows grow downward, so the plain canvas y of Normalize(v)*height
// is mirrored: +1.0 is drawn on row 0 at the top and -1.0 on the bottom row,
// which keeps positive excursions pointing up.
func Row(v float32, height int) int {
	if height <= 0 {
		return 0
	}
	y := int(Normalize(v) * float64(height))
	if y >= height {
		y = height - 1
	}
	return height - 1 - y
}

// Columns resamples a snapshot to width points by nearest neighbour
func Columns(samples []float32, width int) []float32 {
	if width <= 0 || len(samples) == 0 {
		return nil
	}

	out := make([]float32, width)
	for x := range out {
		idx := x * len(samples) / width
		out[x] = samples[idx]
	}
	return out
}

// Peak returns the largest absolute sample value
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
