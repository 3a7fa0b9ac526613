package engine

import "fmt"

// Source is an upstream contributor of one or more channels.
type Source struct {
	NodeID     int
	Name       string
	SampleRate float32
}

// DataChannel is the upstream metadata of one continuous channel.
type DataChannel struct {
	Name         string
	SourceNodeID int
	// CurrentNodeID keys the physical file; zero falls back to SourceNodeID.
	CurrentNodeID int
	SampleRate    float32
	BitVolts      float32
}

func (c DataChannel) fileNodeID() int {
	if c.CurrentNodeID != 0 {
		return c.CurrentNodeID
	}
	return c.SourceNodeID
}

// SourceInfo is the per-Source recording metadata handed to the files when a
// recording starts.
type SourceInfo struct {
	Name               string    `msgpack:"name"`
	StartTime          int64     `msgpack:"start_time"`
	StartSample        int64     `msgpack:"start_sample"`
	SampleRate         float32   `msgpack:"sample_rate"`
	BitDepth           int       `msgpack:"bit_depth"`
	MultiSample        bool      `msgpack:"multi_sample"`
	BitVolts           []float32 `msgpack:"bit_volts"`
	ChannelSampleRates []float32 `msgpack:"channel_sample_rates"`
}

func recordingName(recording int) string {
	return fmt.Sprintf("Open Ephys Recording #%d", recording)
}

// SpikeChannel describes an electrode: a group of sub-channels sampled
// together around each detected spike.
type SpikeChannel struct {
	Name              string
	SourceNodeID      int
	SamplesPerChannel int
	ChannelBitVolts   []float32
}

func (s SpikeChannel) NumChannels() int {
	return len(s.ChannelBitVolts)
}

func (s SpikeChannel) TotalSamples() int {
	return s.SamplesPerChannel * len(s.ChannelBitVolts)
}

// SpikeEvent is one detected spike; Data holds NumChannels*SamplesPerChannel
// values, channel-major.
type SpikeEvent struct {
	Timestamp int64
	Data      []float32
}
