// Package stats holds the running accumulators folded per packet into a flow.
package stats

// Welford keeps count, mean, variance, min and max of a stream of values
// using Welford's online update, which stays stable for large magnitudes.
type Welford struct {
	count uint64
	mean  float64
	m2    float64
	min   float64
	max   float64
}

// Add folds one value into the accumulator.
func (w *Welford) Add(x float64) {
	w.count++
	if w.count == 1 {
		w.mean = x
		w.m2 = 0
		w.min = x
		w.max = x
		return
	}
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (x - w.mean)
	if x < w.min {
		w.min = x
	}
	if x > w.max {
		w.max = x
	}
}

// Count returns the number of values folded so far.
func (w *Welford) Count() uint64 { return w.count }

// Mean returns the running mean, 0 when empty.
func (w *Welford) Mean() float64 { return w.mean }

// Min returns the smallest value seen, 0 when empty.
func (w *Welford) Min() float64 { return w.min }

// Max returns the largest value seen, 0 when empty.
func (w *Welford) Max() float64 { return w.max }

// Variance returns the population variance, 0 for fewer than two values.
func (w *Welford) Variance() float64 {
	if w.count < 2 {
		return 0
	}
	v := w.m2 / float64(w.count)
	// rounding can leave a tiny negative residue
	if v < 0 {
		return 0
	}
	return v
}

// IAT accumulates inter-arrival samples: count, min, max and sum.
type IAT struct {
	count uint64
	min   float64
	max   float64
	sum   float64
}

// Add folds one inter-arrival sample.
func (a *IAT) Add(x float64) {
	a.count++
	a.sum += x
	if a.count == 1 {
		a.min = x
		a.max = x
		return
	}
	if x < a.min {
		a.min = x
	}
	if x > a.max {
		a.max = x
	}
}

// Count returns the number of samples.
func (a *IAT) Count() uint64 { return a.count }

// Min returns the smallest sample, 0 when empty.
func (a *IAT) Min() float64 { return a.min }

// Max returns the largest sample, 0 when empty.
func (a *IAT) Max() float64 { return a.max }

// Sum returns the total of all samples.
func (a *IAT) Sum() float64 { return a.sum }

// Mean returns the average sample, 0 when empty.
func (a *IAT) Mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}
