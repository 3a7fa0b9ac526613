package engine

import (
	"github.com/ephysio/kwikstore/metrics"
	"github.com/ephysio/kwikstore/utils/log"
)

// WriteSamples converts one buffer of recorded channel recorded (real channel
// real) to 16-bit samples, writes it to the channel's Source file and feeds
// the channel's timestamp reconstructor.
func (e *Engine) WriteSamples(recorded, real int, samples []float32) Result {
	if e.state != Recording {
		return e.skip("samples")
	}
	rc, found := e.reg.recordedChannel(recorded)
	if !found || !rc.bound() || rc.real != real {
		return e.skip("samples")
	}
	ch, found := e.reg.channel(real)
	if !found {
		return e.skip("samples")
	}
	ss, found := e.reg.source(rc.source)
	if !found || !ss.File.IsOpen() {
		return e.skip("samples")
	}

	res := OK
	n := len(samples)
	if e.scratch.ensure(n) {
		log.Warn("write buffer overrun, resizing to %d", n)
		metrics.ScratchResizesTotal.Inc()
		res = CapacityExceeded
	}
	fixed := e.scratch.convert(samples, ch.BitVolts)
	if err := ss.File.WriteSamples(fixed, rc.dest); err != nil {
		log.Error("failed to write %d samples of channel %d to %s: %v", n, recorded, ss.File.FileName(), err)
		return e.skip("samples")
	}
	metrics.SamplesWrittenTotal.Add(float64(n))

	rc.ts.Append(e.host.Timestamp(recorded), n)
	return res
}

// EndChannelBlock flushes the timestamp batches that grew past the minimum
// write size. With final set every non-empty batch is flushed.
func (e *Engine) EndChannelBlock(final bool) {
	for i, rc := range e.reg.recorded {
		if !rc.bound() {
			continue
		}
		n := rc.ts.Len()
		if n == 0 || (!final && n <= e.minTimestampWrite(rc)) {
			continue
		}
		ss := e.reg.sources[rc.source]
		if ss.File.IsOpen() {
			if err := ss.File.WriteTimestamps(rc.ts.Pending(), rc.dest); err != nil {
				log.Error("failed to write %d timestamps of channel %d to %s: %v", n, i, ss.File.FileName(), err)
			} else {
				metrics.TimestampsWrittenTotal.Add(float64(n))
			}
		}
		rc.ts.Clear()
	}
}

func (e *Engine) minTimestampWrite(rc *recordedChannel) int {
	threshold := e.cfg.MinTimestampWrite
	if !e.cfg.ScaleMinWriteWithRate || rc.rate <= 0 {
		return threshold
	}
	scaled := int(float64(threshold) * float64(rc.rate) / referenceRate)
	if scaled < 1 {
		return 1
	}
	return scaled
}

// WriteEvent decodes a serialized event of event channel eventChannel and
// forwards it to the event sink. Events that fail to decode are dropped.
func (e *Engine) WriteEvent(eventChannel int, raw []byte) Result {
	if e.state != Recording || e.events == nil {
		return e.skip("event")
	}
	if eventChannel < 0 || eventChannel >= len(e.eventChannels) {
		return e.drop("unknown event channel %d", eventChannel)
	}
	ch := e.eventChannels[eventChannel]

	switch PeekEventType(raw) {
	case TTL:
		ev, err := DecodeEvent(raw, ch)
		if err != nil {
			return e.drop("TTL event on %q: %v", ch.Name, err)
		}
		var state uint8
		if ev.State {
			state = 1
		}
		return e.forwardEvent(TTLEventIndex, state, ev.SourceID, []byte{ev.Line}, ev.Timestamp, "ttl")
	case Text:
		ev, err := DecodeEvent(raw, ch)
		if err != nil {
			return e.drop("text event on %q: %v", ch.Name, err)
		}
		return e.forwardEvent(TextEventIndex, 0, ev.SourceID, []byte(ev.Text), ev.Timestamp, "text")
	default:
		return e.drop("unrecognized event type %d on %q", PeekEventType(raw), ch.Name)
	}
}

// WriteTimestampSyncEvent records a clock-sync marker for sourceID.
func (e *Engine) WriteTimestampSyncEvent(sourceID uint16, timestamp int64, label string) Result {
	if e.state != Recording || e.events == nil {
		return e.skip("event")
	}
	return e.forwardEvent(TextEventIndex, SyncState, sourceID, []byte(label), timestamp, "sync")
}

func (e *Engine) forwardEvent(typeIndex int, state uint8, sourceID uint16, payload []byte, ts int64, kind string) Result {
	if err := e.events.WriteEvent(typeIndex, state, sourceID, payload, ts); err != nil {
		log.Error("failed to write %s event: %v", kind, err)
		return e.skip("event")
	}
	metrics.EventsWrittenTotal.WithLabelValues(kind).Inc()
	return OK
}

// WriteSpike forwards a spike waveform of electrode electrode together with
// the bit volts of each of its sub-channels.
func (e *Engine) WriteSpike(electrode int, spike SpikeEvent) Result {
	if e.state != Recording || e.spikes == nil {
		return e.skip("spike")
	}
	if electrode < 0 || electrode >= len(e.spikeChannels) {
		return e.skip("spike")
	}
	sc := e.spikeChannels[electrode]
	if len(spike.Data) != sc.TotalSamples() {
		return e.drop("spike of %d samples on electrode %q expecting %d", len(spike.Data), sc.Name, sc.TotalSamples())
	}
	bitVolts := make([]float32, 0, sc.NumChannels())
	for i := 0; i < sc.NumChannels(); i++ {
		bitVolts = append(bitVolts, sc.ChannelBitVolts[i])
	}
	if err := e.spikes.WriteSpike(electrode, sc.SamplesPerChannel, spike.Data, bitVolts, spike.Timestamp); err != nil {
		log.Error("failed to write spike on electrode %d: %v", electrode, err)
		return e.skip("spike")
	}
	metrics.SpikesWrittenTotal.Inc()
	return OK
}

func (e *Engine) skip(kind string) Result {
	metrics.SkippedWritesTotal.WithLabelValues(kind).Inc()
	return NotReady
}

func (e *Engine) drop(format string, args ...interface{}) Result {
	log.Debug("dropping event: "+format, args...)
	metrics.DroppedEventsTotal.Inc()
	return Dropped
}
