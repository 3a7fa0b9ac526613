package engine

import "math"

const (
	// FullScale is the largest magnitude of the 16-bit fixed-point encoding.
	FullScale = 0x7fff
	// DefaultScratchSize is the baseline capacity of the conversion buffers.
	DefaultScratchSize = 40960
)

// ScaleFactor is the multiplier turning a voltage sample into the [-1, 1]
// range of the fixed-point encoding for a channel with the given volts per
// bit.
func ScaleFactor(bitVolts float32) float64 {
	return 1 / (float64(FullScale) * float64(bitVolts))
}

// ScaleSamples writes src*factor into dst. len(dst) must be >= len(src).
func ScaleSamples(dst, src []float32, factor float64) {
	f := float32(factor)
	for i, s := range src {
		dst[i] = s * f
	}
}

// QuantizeInt16 maps normalized samples to 16-bit values, clamping to full
// scale and rounding half away from zero so that q(-x) == -q(x).
func QuantizeInt16(dst []int16, src []float32) {
	for i, s := range src {
		v := float64(s) * FullScale
		if v > FullScale {
			v = FullScale
		} else if v < -FullScale {
			v = -FullScale
		}
		dst[i] = int16(math.Round(v))
	}
}

// ConvertToInt16 is ScaleSamples followed by QuantizeInt16, using scaled as
// the intermediate buffer.
func ConvertToInt16(dst []int16, scaled, src []float32, bitVolts float32) {
	ScaleSamples(scaled, src, ScaleFactor(bitVolts))
	QuantizeInt16(dst, scaled[:len(src)])
}

// scratch holds the reusable conversion buffers. They only grow while a
// recording runs and go back to the baseline size on reset.
type scratch struct {
	baseline int
	scaled   []float32
	fixed    []int16
}

func newScratch(size int) *scratch {
	if size <= 0 {
		size = DefaultScratchSize
	}
	s := &scratch{baseline: size}
	s.reset()
	return s
}

func (s *scratch) capacity() int {
	return len(s.fixed)
}

// ensure grows both buffers to n samples and reports whether it had to.
func (s *scratch) ensure(n int) bool {
	if n <= len(s.fixed) {
		return false
	}
	s.scaled = make([]float32, n)
	s.fixed = make([]int16, n)
	return true
}

func (s *scratch) convert(samples []float32, bitVolts float32) []int16 {
	n := len(samples)
	ConvertToInt16(s.fixed[:n], s.scaled[:n], samples, bitVolts)
	return s.fixed[:n]
}

func (s *scratch) reset() {
	s.scaled = make([]float32, s.baseline)
	s.fixed = make([]int16, s.baseline)
}
