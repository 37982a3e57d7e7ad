// Package predict implements the windowed-median predictor used by
// the compression pipeline's optional higher-compression tier.
package predict

import "sort"

// WindowMedianPredictor buffers the last WindowSize pushed values and
// predicts their median.
type WindowMedianPredictor struct {
	windowSize int
	buffer     []int64
}

// New returns a predictor over a window of the given size.
func New(windowSize int) *WindowMedianPredictor {
	return &WindowMedianPredictor{windowSize: windowSize}
}

// Predict returns the median of the current window, or ok=false if
// the window is empty.
func (p *WindowMedianPredictor) Predict() (median float64, ok bool) {
	if len(p.buffer) == 0 {
		return 0, false
	}
	sorted := append([]int64(nil), p.buffer...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2]), true
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2, true
}

// Push appends value to the window, evicting the oldest entry once
// the window is full (FIFO).
func (p *WindowMedianPredictor) Push(value int64) {
	p.buffer = append(p.buffer, value)
	if len(p.buffer) > p.windowSize {
		p.buffer = p.buffer[1:]
	}
}

// PredictAndPush returns the prediction for the window as it stood
// before value is pushed, then pushes value. This is the order the
// corrector needs: predict against history, then extend history.
func (p *WindowMedianPredictor) PredictAndPush(value int64) (median float64, ok bool) {
	median, ok = p.Predict()
	p.Push(value)
	return median, ok
}
