package pool

import "math"

// weightedMoments computes the attention-weighted mean and standard
// deviation over the time axis for every (batch, channel) pair.
//
// x: flat (b, c, t); w: flat (b, wc, t) attention weights, already
// normalized over t. wc must be either c (one distribution per channel) or
// 1 (one distribution shared by all c channels of the partition).
//
// The variance comes from E[X²]−E[X]², which floating-point cancellation can
// push slightly negative when the true variance is near zero; it is clamped
// to floor before the square root rather than letting sqrt produce NaN.
func weightedMoments(x, w []float32, b, c, wc, t int, floor float32) (mean, std []float32) {
	mean = make([]float32, b*c)
	std = make([]float32, b*c)
	for i := 0; i < b; i++ {
		for j := 0; j < c; j++ {
			wj := j
			if wc == 1 {
				wj = 0
			}
			xRow := x[(i*c+j)*t : (i*c+j+1)*t]
			wRow := w[(i*wc+wj)*t : (i*wc+wj+1)*t]

			var m, m2 float32
			for k, v := range xRow {
				m += wRow[k] * v
				m2 += wRow[k] * v * v
			}
			v := m2 - m*m
			if v < floor {
				v = floor
			}
			mean[i*c+j] = m
			std[i*c+j] = float32(math.Sqrt(float64(v)))
		}
	}
	return mean, std
}

// timeStats computes the unweighted per-(batch, channel) mean and standard
// deviation over the time axis. The variance is the unbiased estimator
// (divide by t−1); a single frame yields zero variance. eps keeps the square
// root away from zero and from tiny negative rounding.
func timeStats(x []float32, b, c, t int, eps float32) (mean, std []float32) {
	mean = make([]float32, b*c)
	std = make([]float32, b*c)
	for i := 0; i < b; i++ {
		for j := 0; j < c; j++ {
			row := x[(i*c+j)*t : (i*c+j+1)*t]

			var sum float32
			for _, v := range row {
				sum += v
			}
			m := sum / float32(t)

			var sq float32
			if t > 1 {
				for _, v := range row {
					d := v - m
					sq += d * d
				}
				sq /= float32(t - 1)
			}
			mean[i*c+j] = m
			std[i*c+j] = float32(math.Sqrt(float64(sq + eps)))
		}
	}
	return mean, std
}
