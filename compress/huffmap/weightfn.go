package huffmap

import "math"

// WeightFn produces the symbol-frequency table HuffmanMapS partitions
// into blocks: ComputeFn precomputes size samples of the underlying
// continuous weight function, and GetRange sums (then ceils) the
// weight mass across [from, to) — the frequency assigned to one
// Huffman block.
type WeightFn interface {
	ComputeFn(size int)
	GetRange(from, to int) uint64
}

// Sech2 models the empirical residual distribution as a mixture of
// two hyperbolic-secant-squared lobes, one tuned to the configured
// precision and a wider companion scaled by the cube root of the
// expected item count. This is the one weight function whose exact
// formula survived in the retrieved reference sources.
type Sech2 struct {
	precision float64
	itemCount int
	function  []float64
}

// NewSech2 returns a Sech2 weight function for the given relative
// precision and expected item count (symbols encoded per raw value).
func NewSech2(precision float64, itemCount int) *Sech2 {
	return &Sech2{precision: precision, itemCount: itemCount}
}

func sech(v float64) float64  { return 2.0 / (math.Exp(v) + math.Exp(-v)) }
func sech2(v float64) float64 { return sech(v) * sech(v) }

// ComputeFn precomputes size samples of the weight function.
func (s *Sech2) ComputeFn(size int) {
	s.function = make([]float64, size)
	stdev := math.Pow(1/s.precision, 1.0/1.6)
	items := float64(s.itemCount)
	for i := 0; i < size; i++ {
		v1 := sech2(float64(i)/stdev) * items
		v2 := sech2(float64(i)/math.Pow(stdev, 1.5)) * math.Cbrt(items)
		k := 1.0
		if i == 0 {
			k = 2.0
		}
		s.function[i] = (v1 + v2) * k
	}
}

// GetRange sums the precomputed weight mass over [from, to).
func (s *Sech2) GetRange(from, to int) uint64 {
	if from < 0 {
		from = 0
	}
	if to > len(s.function) {
		to = len(s.function)
	}
	var sum float64
	for i := from; i < to; i++ {
		sum += s.function[i]
	}
	return uint64(math.Ceil(sum))
}

// Recip models the residual distribution as a simple reciprocal decay
// rather than Sech2's two-lobe mixture: weight falls off as
// 1/(1+i/scale), approximating the empirical distribution of latency
// residuals, scaled the same way Sech2 derives its width from
// precision.
type Recip struct {
	precision float64
	itemCount int
	function  []float64
}

// NewRecip returns a Recip weight function for the given precision
// and expected item count.
func NewRecip(precision float64, itemCount int) *Recip {
	return &Recip{precision: precision, itemCount: itemCount}
}

func (r *Recip) ComputeFn(size int) {
	r.function = make([]float64, size)
	scale := math.Pow(1/r.precision, 1.0/1.6)
	items := float64(r.itemCount)
	for i := 0; i < size; i++ {
		r.function[i] = items / (1 + float64(i)/scale)
	}
}

func (r *Recip) GetRange(from, to int) uint64 {
	if from < 0 {
		from = 0
	}
	if to > len(r.function) {
		to = len(r.function)
	}
	var sum float64
	for i := from; i < to; i++ {
		sum += r.function[i]
	}
	return uint64(math.Ceil(sum))
}

// Manual is a breakpoint-interpolated weight function: a short table
// of (position, weight) pairs, log-linearly interpolated between
// points and held flat beyond the last one.
type Manual struct {
	breakpoints []manualPoint
	itemCount   int
	function    []float64
}

type manualPoint struct {
	pos    int
	weight float64
}

// DefaultManualBreakpoints is a monotonically decreasing weight curve
// with most of its mass near zero, the shape observed for latency
// residuals on typical networks.
var DefaultManualBreakpoints = []struct {
	Pos    int
	Weight float64
}{
	{0, 1.0}, {16, 0.5}, {64, 0.15}, {256, 0.03}, {4096, 0.001},
}

// NewManual returns a Manual weight function built from breakpoints
// (each an x-position and a relative weight multiplier) scaled by
// itemCount.
func NewManual(breakpoints []struct {
	Pos    int
	Weight float64
}, itemCount int) *Manual {
	m := &Manual{itemCount: itemCount}
	for _, b := range breakpoints {
		m.breakpoints = append(m.breakpoints, manualPoint{pos: b.Pos, weight: b.Weight})
	}
	return m
}

func (m *Manual) ComputeFn(size int) {
	m.function = make([]float64, size)
	items := float64(m.itemCount)
	for i := 0; i < size; i++ {
		m.function[i] = items * m.interpolate(float64(i))
	}
}

func (m *Manual) interpolate(x float64) float64 {
	pts := m.breakpoints
	if len(pts) == 0 {
		return 0
	}
	if x <= float64(pts[0].pos) {
		return pts[0].weight
	}
	for i := 1; i < len(pts); i++ {
		if x <= float64(pts[i].pos) {
			x0, x1 := float64(pts[i-1].pos), float64(pts[i].pos)
			w0, w1 := pts[i-1].weight, pts[i].weight
			frac := (x - x0) / (x1 - x0)
			// log-linear interpolation keeps the decay curve smooth
			// even though the breakpoints span orders of magnitude.
			logW := math.Log(w0) + frac*(math.Log(w1)-math.Log(w0))
			return math.Exp(logW)
		}
	}
	return pts[len(pts)-1].weight
}

func (m *Manual) GetRange(from, to int) uint64 {
	if from < 0 {
		from = 0
	}
	if to > len(m.function) {
		to = len(m.function)
	}
	var sum float64
	for i := from; i < to; i++ {
		sum += m.function[i]
	}
	return uint64(math.Ceil(sum))
}
