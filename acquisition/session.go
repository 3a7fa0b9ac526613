// Package acquisition simulates an acquisition rig: a set of Sources with
// synthetic channels delivered in irregular blocks, TTL and text events
// replayed from a script, and spikes on tetrode electrodes. A Session is the
// engine.Host of the recording engine and drives its whole lifecycle.
package acquisition

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/utils"
	"github.com/ephysio/kwikstore/utils/log"
)

const (
	ttlLines = 8

	electrodeChannels      = 4
	spikeSamplesPerChannel = 40
	spikeRate              = 20.0 // Hz per electrode
	spikeAmplitude         = 150.0
)

// Channel is one synthetic continuous channel.
type Channel struct {
	Name       string
	Source     int
	Real       int
	SampleRate float32
	BitVolts   float32
	gen        Generator
}

type electrode struct {
	index  int
	source int
}

// Stats accumulates what a Session handed to the engine and how it fared.
type Stats struct {
	Recordings int
	Cycles     int
	Samples    int64
	Events     int
	SyncEvents int
	Spikes     int
	NotReady   int
	Resized    int
	Dropped    int
}

type Session struct {
	cfg *utils.RecorderConfig
	eng *engine.Engine
	rng *rand.Rand

	sources  []*utils.SourceSetting
	channels []*Channel
	script   []*ScriptedEvent

	// recorded[i] is the channel behind recorded channel i; clocks[i] is the
	// number of samples delivered on it so far.
	recorded []*Channel
	clocks   []int64

	refRate    float64
	refSamples int64

	ttlChannel  int
	textChannel int
	electrodes  []electrode

	buf   []float32
	spike []float32
	stats Stats
}

var _ engine.Host = (*Session)(nil)

// NewSession builds the engine over factory and registers every Source,
// channel, event channel and electrode described by cfg.
func NewSession(cfg *utils.RecorderConfig, factory engine.FileFactory) (*Session, error) {
	s := &Session{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		sources: cfg.Sources,
	}
	s.eng = engine.NewEngine(factory, s, cfg.Engine)
	if cfg.EventsFile != "" {
		script, err := LoadScriptFile(cfg.EventsFile)
		if err != nil {
			return nil, err
		}
		s.script = script
	}
	if err := s.eng.StartAcquisition(); err != nil {
		return nil, err
	}
	if err := s.setupChannels(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) setupChannels() error {
	s.channels = s.channels[:0]
	s.electrodes = s.electrodes[:0]
	for si, src := range s.sources {
		if _, err := s.eng.RegisterSource(engine.Source{NodeID: src.NodeID, Name: src.Name, SampleRate: src.SampleRate}); err != nil {
			return err
		}
		for ci := 0; ci < src.Channels; ci++ {
			rate := src.SampleRate
			if len(src.ChannelSampleRates) > 0 {
				rate = src.ChannelSampleRates[ci]
			}
			gen, err := NewGenerator(src.Waveform, src.Frequency, src.Amplitude, rate, s.rng)
			if err != nil {
				return fmt.Errorf("source %d: %w", src.NodeID, err)
			}
			ch := &Channel{
				Name:       fmt.Sprintf("%s/CH%d", src.Name, ci),
				Source:     si,
				SampleRate: rate,
				BitVolts:   src.BitVolts,
				gen:        gen,
			}
			real, res := s.eng.AddChannel(engine.DataChannel{
				Name:         ch.Name,
				SourceNodeID: src.NodeID,
				SampleRate:   rate,
				BitVolts:     src.BitVolts,
			})
			if res != engine.OK {
				return fmt.Errorf("failed to add channel %s: %v", ch.Name, res)
			}
			ch.Real = real
			s.channels = append(s.channels, ch)
			if float64(rate) > s.refRate {
				s.refRate = float64(rate)
			}
		}
		for e := 0; e < src.SpikeElectrodes; e++ {
			bitVolts := make([]float32, electrodeChannels)
			for i := range bitVolts {
				bitVolts[i] = src.BitVolts
			}
			idx := s.eng.AddSpikeElectrode(engine.SpikeChannel{
				Name:              fmt.Sprintf("%s/TT%d", src.Name, e),
				SourceNodeID:      src.NodeID,
				SamplesPerChannel: spikeSamplesPerChannel,
				ChannelBitVolts:   bitVolts,
			})
			s.electrodes = append(s.electrodes, electrode{index: idx, source: si})
		}
	}

	primary := uint16(s.sources[0].NodeID)
	s.ttlChannel = s.eng.AddEventChannel(engine.EventChannel{Name: "TTL", Type: engine.TTL, SourceID: primary, Lines: ttlLines})
	s.textChannel = s.eng.AddEventChannel(engine.EventChannel{Name: "Messages", Type: engine.Text, SourceID: primary})

	names := make([]string, len(s.channels))
	for i, ch := range s.channels {
		names[i] = ch.Name
	}
	selected, err := SelectChannels(names, s.cfg.Record)
	if err != nil {
		return err
	}
	s.recorded = s.recorded[:0]
	for _, i := range selected {
		s.recorded = append(s.recorded, s.channels[i])
	}
	s.clocks = make([]int64, len(s.recorded))
	log.Info("acquisition ready: %d sources, %d channels, %d recorded, %d electrodes",
		len(s.sources), len(s.channels), len(s.recorded), len(s.electrodes))
	return nil
}

func (s *Session) NumRecordedChannels() int {
	return len(s.recorded)
}

func (s *Session) RealChannel(recorded int) int {
	return s.recorded[recorded].Real
}

func (s *Session) Timestamp(recorded int) int64 {
	return s.clocks[recorded]
}

func (s *Session) Engine() *engine.Engine {
	return s.eng
}

func (s *Session) Channels() []*Channel {
	return s.channels
}

func (s *Session) Recorded() []*Channel {
	return s.recorded
}

func (s *Session) Stats() Stats {
	return s.stats
}

// Run records cfg.Recordings recordings of cfg.RecordingDuration each. The
// engine is left acquiring and idle when it returns.
func (s *Session) Run(ctx context.Context) error {
	for rec := 0; rec < s.cfg.Recordings; rec++ {
		if err := s.RunRecording(ctx, rec); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// RunRecording records one recording. Cancelling ctx ends the recording
// early; the files are closed either way.
func (s *Session) RunRecording(ctx context.Context, recording int) error {
	if err := s.eng.BeginRecording(s.cfg.RootDirectory, s.cfg.ExperimentNumber, recording); err != nil {
		return err
	}
	defer s.eng.EndRecording()
	s.stats.Recordings++

	for si, src := range s.sources {
		ts := s.sourceTimestamp(si)
		label := fmt.Sprintf("%s start time: %d@%gHz", src.Name, ts, src.SampleRate)
		s.count(s.eng.WriteTimestampSyncEvent(uint16(src.NodeID), ts, label))
		s.stats.SyncEvents++
	}

	start := s.refSamples
	end := start + int64(s.cfg.RecordingDuration.Seconds()*s.refRate)
	next := 0
	for s.refSamples < end {
		if err := ctx.Err(); err != nil {
			log.Info("recording %d interrupted: %v", recording, err)
			return nil
		}
		step := int64(1 + s.rng.Intn(s.cfg.BlockSize))
		if s.refSamples+step > end {
			step = end - s.refSamples
		}
		s.cycle(step)
		next = s.replayScript(next, start)
		s.eng.EndChannelBlock(false)
	}
	return nil
}

// cycle advances the reference clock by step samples and delivers every
// recorded channel's share of that time span.
func (s *Session) cycle(step int64) {
	s.stats.Cycles++
	prev := s.refSamples
	s.refSamples += step
	for i, ch := range s.recorded {
		target := s.samplesAt(ch.SampleRate)
		n := int(target - s.clocks[i])
		if n <= 0 {
			continue
		}
		if cap(s.buf) < n {
			s.buf = make([]float32, n)
		}
		buf := s.buf[:n]
		ch.gen.Fill(buf, s.clocks[i])
		s.count(s.eng.WriteSamples(i, ch.Real, buf))
		s.stats.Samples += int64(n)
		s.clocks[i] = target
	}

	dt := float64(s.refSamples-prev) / s.refRate
	for _, el := range s.electrodes {
		if s.rng.Float64() >= dt*spikeRate {
			continue
		}
		n := electrodeChannels * spikeSamplesPerChannel
		if cap(s.spike) < n {
			s.spike = make([]float32, n)
		}
		spikeWaveform(s.spike[:n], electrodeChannels, spikeSamplesPerChannel, spikeAmplitude*float64(s.sources[el.source].BitVolts))
		s.count(s.eng.WriteSpike(el.index, engine.SpikeEvent{
			Timestamp: s.sourceTimestamp(el.source),
			Data:      s.spike[:n],
		}))
		s.stats.Spikes++
	}
}

// replayScript writes the scripted events due by now, starting at script
// index next, and returns the index of the first event still pending.
func (s *Session) replayScript(next int, start int64) int {
	elapsed := float64(s.refSamples-start) / s.refRate
	primary := s.sources[0]
	source := uint16(primary.NodeID)
	for ; next < len(s.script) && s.script[next].Time <= elapsed; next++ {
		ev := s.script[next]
		ts := int64((float64(start)/s.refRate + ev.Time) * float64(primary.SampleRate))
		var raw []byte
		var channel int
		switch ev.Kind {
		case kindTTL:
			raw, channel = engine.EncodeTTL(source, ev.Line, ev.State, ts), s.ttlChannel
		default:
			raw, channel = engine.EncodeText(source, ev.Text, ts), s.textChannel
		}
		s.count(s.eng.WriteEvent(channel, raw))
		s.stats.Events++
	}
	return next
}

func (s *Session) samplesAt(rate float32) int64 {
	if float64(rate) == s.refRate {
		return s.refSamples
	}
	return int64(float64(s.refSamples) * float64(rate) / s.refRate)
}

func (s *Session) sourceTimestamp(source int) int64 {
	return s.samplesAt(s.sources[source].SampleRate)
}

func (s *Session) count(res engine.Result) {
	switch res {
	case engine.NotReady:
		s.stats.NotReady++
	case engine.CapacityExceeded:
		s.stats.Resized++
	case engine.Dropped:
		s.stats.Dropped++
	}
}

// Close ends any recording and forgets the channel set.
func (s *Session) Close() {
	s.eng.ResetChannels()
}
