package acquisition

import (
	"fmt"
	"math"
	"math/rand"
)

// Generator synthesizes the signal of one channel. Fill writes the samples
// starting at absolute sample index start, in volts.
type Generator interface {
	Fill(dst []float32, start int64)
}

type sineGenerator struct {
	amplitude float64
	omega     float64
}

func (g sineGenerator) Fill(dst []float32, start int64) {
	for i := range dst {
		dst[i] = float32(g.amplitude * math.Sin(g.omega*float64(start+int64(i))))
	}
}

type noiseGenerator struct {
	amplitude float64
	rng       *rand.Rand
}

func (g noiseGenerator) Fill(dst []float32, _ int64) {
	for i := range dst {
		dst[i] = float32(g.amplitude * g.rng.NormFloat64())
	}
}

// rampGenerator is a sawtooth from -amplitude to amplitude, one period per
// 1/frequency seconds.
type rampGenerator struct {
	amplitude float64
	period    int64
}

func (g rampGenerator) Fill(dst []float32, start int64) {
	for i := range dst {
		phase := float64((start+int64(i))%g.period) / float64(g.period)
		dst[i] = float32(g.amplitude * (2*phase - 1))
	}
}

const (
	defaultFrequency = 10.0
	defaultAmplitude = 100.0
)

// NewGenerator builds a generator of the named waveform (sine, noise or
// ramp) for a channel sampled at rate.
func NewGenerator(waveform string, frequency, amplitude float64, rate float32, rng *rand.Rand) (Generator, error) {
	if frequency <= 0 {
		frequency = defaultFrequency
	}
	if amplitude <= 0 {
		amplitude = defaultAmplitude
	}
	switch waveform {
	case "", "sine":
		return sineGenerator{amplitude: amplitude, omega: 2 * math.Pi * frequency / float64(rate)}, nil
	case "noise":
		return noiseGenerator{amplitude: amplitude, rng: rng}, nil
	case "ramp":
		period := int64(float64(rate) / frequency)
		if period < 1 {
			period = 1
		}
		return rampGenerator{amplitude: amplitude, period: period}, nil
	default:
		return nil, fmt.Errorf("unknown waveform %q", waveform)
	}
}

// spikeWaveform fills a channel-major waveform of a negative-going spike
// whose amplitude decays across the sub-channels of the electrode.
func spikeWaveform(dst []float32, channels, samplesPerChannel int, amplitude float64) {
	peak := float64(samplesPerChannel) / 4
	for ch := 0; ch < channels; ch++ {
		gain := amplitude * (1 - 0.2*float64(ch))
		for i := 0; i < samplesPerChannel; i++ {
			d := float64(i) - peak
			dst[ch*samplesPerChannel+i] = float32(-gain * math.Exp(-d*d/8))
		}
	}
}
