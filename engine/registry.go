package engine

import "strconv"

const defaultBitDepth = 16

// SourceState groups everything the engine keeps per Source: its output file,
// its recording metadata and the per-segment channel accumulators.
type SourceState struct {
	Source       Source
	File         ChannelGroupFile
	Info         *SourceInfo
	BitVolts     []float32
	SampleRates  []float32
	ChannelCount int

	// initialized is set once the file has been bound to a path during the
	// current segment.
	initialized bool
}

func newSourceState(src Source, file ChannelGroupFile) *SourceState {
	return &SourceState{
		Source: src,
		File:   file,
		Info: &SourceInfo{
			SampleRate: src.SampleRate,
			BitDepth:   defaultBitDepth,
		},
	}
}

func (s *SourceState) addChannel(ch DataChannel) {
	s.ChannelCount++
	s.BitVolts = append(s.BitVolts, ch.BitVolts)
	s.SampleRates = append(s.SampleRates, ch.SampleRate)
	if ch.SampleRate != s.Info.SampleRate {
		s.Info.MultiSample = true
	}
}

func (s *SourceState) resetAccumulators() {
	s.ChannelCount = 0
	s.BitVolts = s.BitVolts[:0]
	s.SampleRates = s.SampleRates[:0]
	s.Info.MultiSample = false
	s.initialized = false
}

type boundChannel struct {
	DataChannel
	source int
}

type recordedChannel struct {
	real   int
	source int
	dest   int
	rate   float32
	ts     *TimestampBuffer
}

func (rc *recordedChannel) bound() bool {
	return rc.source >= 0
}

// registry maps real channels to Sources and, while recording, recorded
// channels to their destination index inside the Source file.
type registry struct {
	sources  []*SourceState
	byNode   map[int]int
	channels []boundChannel
	recorded []*recordedChannel
}

func newRegistry() *registry {
	return &registry{byNode: map[int]int{}}
}

func (r *registry) addSource(src Source, file ChannelGroupFile) (int, error) {
	if _, found := r.byNode[src.NodeID]; found {
		return -1, DuplicateSourceError(strconv.Itoa(src.NodeID))
	}
	ordinal := len(r.sources)
	r.sources = append(r.sources, newSourceState(src, file))
	r.byNode[src.NodeID] = ordinal
	return ordinal, nil
}

// bind appends ch as the next real channel and returns its index.
func (r *registry) bind(ch DataChannel) (int, bool) {
	ordinal, found := r.byNode[ch.SourceNodeID]
	if !found {
		return -1, false
	}
	r.channels = append(r.channels, boundChannel{DataChannel: ch, source: ordinal})
	return len(r.channels) - 1, true
}

func (r *registry) channel(real int) (*boundChannel, bool) {
	if real < 0 || real >= len(r.channels) {
		return nil, false
	}
	return &r.channels[real], true
}

func (r *registry) recordedChannel(recorded int) (*recordedChannel, bool) {
	if recorded < 0 || recorded >= len(r.recorded) {
		return nil, false
	}
	return r.recorded[recorded], true
}

func (r *registry) source(ordinal int) (*SourceState, bool) {
	if ordinal < 0 || ordinal >= len(r.sources) {
		return nil, false
	}
	return r.sources[ordinal], true
}

func (r *registry) reset() {
	r.sources = nil
	r.byNode = map[int]int{}
	r.channels = nil
	r.recorded = nil
}
