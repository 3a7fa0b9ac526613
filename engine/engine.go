// Package engine persists multi-source continuous data, events and spikes
// through a set of channel group files, one per upstream Source.
//
// An Engine is driven synchronously from a single data-delivery goroutine:
// StartAcquisition, RegisterSource/AddChannel, BeginRecording, then
// WriteSamples/EndChannelBlock per processing cycle, and EndRecording.
package engine

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ephysio/kwikstore/metrics"
	"github.com/ephysio/kwikstore/utils/log"
)

// State is the lifecycle state of an Engine.
type State int

const (
	Idle State = iota
	Acquiring
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Acquiring:
		return "Acquiring"
	case Recording:
		return "Recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AnchorPolicy decides which timestamp a Source file records as its start
// time.
type AnchorPolicy int

const (
	// AnchorPerSource uses the timestamp of the Source's first recorded
	// channel at the moment the recording begins.
	AnchorPerSource AnchorPolicy = iota
	// AnchorPrimary uses the primary start time (recorded channel 0) for
	// every Source.
	AnchorPrimary
)

// referenceRate is the sample rate at which MinTimestampWrite applies
// unscaled when ScaleMinWriteWithRate is set.
const referenceRate = 30000

type Config struct {
	TimestampInterval     int
	MinTimestampWrite     int
	ScaleMinWriteWithRate bool
	ScratchSize           int
	Anchor                AnchorPolicy
}

func DefaultConfig() Config {
	return Config{
		TimestampInterval: DefaultTimestampInterval,
		MinTimestampWrite: DefaultMinTimestampWrite,
		ScratchSize:       DefaultScratchSize,
		Anchor:            AnchorPerSource,
	}
}

func (c Config) withDefaults() Config {
	if c.TimestampInterval <= 0 {
		c.TimestampInterval = DefaultTimestampInterval
	}
	if c.MinTimestampWrite < 0 {
		c.MinTimestampWrite = DefaultMinTimestampWrite
	}
	if c.ScratchSize <= 0 {
		c.ScratchSize = DefaultScratchSize
	}
	return c
}

// Engine is the recording engine. It exclusively owns its sinks and files;
// none of its methods are safe for concurrent use.
type Engine struct {
	cfg     Config
	factory FileFactory
	host    Host

	state  State
	events EventSink
	spikes SpikeSink

	reg           *registry
	eventChannels []EventChannel
	spikeChannels []SpikeChannel
	scratch       *scratch

	hasAcquired bool
	sinksOpen   bool
	recording   int
	basePath    string
	primary     SourceInfo
}

func NewEngine(factory FileFactory, host Host, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:     cfg,
		factory: factory,
		host:    host,
		reg:     newRegistry(),
		scratch: newScratch(cfg.ScratchSize),
	}
}

func (e *Engine) State() State {
	return e.state
}

// HasAcquired reports whether at least one recording has been started. It
// survives ResetChannels.
func (e *Engine) HasAcquired() bool {
	return e.hasAcquired
}

// BasePath is the <root>/experiment<N> prefix of the current or last recording.
func (e *Engine) BasePath() string {
	return e.basePath
}

func (e *Engine) ScratchCapacity() int {
	return e.scratch.capacity()
}

// Sources returns the per-Source state in ordinal order.
func (e *Engine) Sources() []*SourceState {
	return e.reg.sources
}

// PrimaryInfo is the metadata handed to the event sink when the current or
// last recording started.
func (e *Engine) PrimaryInfo() SourceInfo {
	return e.primary
}

// DestinationIndex returns the position of a recorded channel inside its
// Source file for the current recording.
func (e *Engine) DestinationIndex(recorded int) (source, dest int, ok bool) {
	rc, found := e.reg.recordedChannel(recorded)
	if !found || !rc.bound() {
		return -1, -1, false
	}
	return rc.source, rc.dest, true
}

// TimestampBuffer exposes the reconstructor of a recorded channel.
func (e *Engine) TimestampBuffer(recorded int) (*TimestampBuffer, bool) {
	rc, found := e.reg.recordedChannel(recorded)
	if !found || !rc.bound() {
		return nil, false
	}
	return rc.ts, true
}

// StartAcquisition constructs a fresh event sink and spike sink. On failure
// nothing is retained and the previous sinks, if any, stay in place.
func (e *Engine) StartAcquisition() error {
	if e.state == Recording {
		return AlreadyRecordingError("start acquisition")
	}
	events, err := e.factory.NewEventSink()
	if err != nil {
		return errors.Wrap(err, "failed to construct event sink")
	}
	spikes, err := e.factory.NewSpikeSink()
	if err != nil {
		_ = events.Close()
		return errors.Wrap(err, "failed to construct spike sink")
	}
	events.RegisterEventType("TTL", U8, "event_channels")
	events.RegisterEventType("Messages", DSTR, "Text")
	for _, sc := range e.spikeChannels {
		spikes.AddChannelGroup(sc.NumChannels())
	}

	e.events = events
	e.spikes = spikes
	e.state = Acquiring
	return nil
}

// RegisterSource appends a Source with an unbound channel group file and
// returns its ordinal.
func (e *Engine) RegisterSource(src Source) (int, error) {
	if e.state == Recording {
		return -1, AlreadyRecordingError(fmt.Sprintf("register source %d", src.NodeID))
	}
	return e.reg.addSource(src, e.factory.NewChannelGroupFile())
}

// AddChannel binds ch to its Source and returns its real channel index.
func (e *Engine) AddChannel(ch DataChannel) (int, Result) {
	if e.state == Recording {
		log.Warn("cannot add channel %q while recording", ch.Name)
		return -1, NotReady
	}
	if ch.BitVolts <= 0 {
		log.Warn("channel %q has invalid bit volts %v", ch.Name, ch.BitVolts)
		return -1, NotReady
	}
	real, ok := e.reg.bind(ch)
	if !ok {
		log.Warn("channel %q references unregistered source %d", ch.Name, ch.SourceNodeID)
		return -1, NotReady
	}
	return real, OK
}

// AddEventChannel registers an upstream event channel and returns its index.
func (e *Engine) AddEventChannel(ch EventChannel) int {
	e.eventChannels = append(e.eventChannels, ch)
	return len(e.eventChannels) - 1
}

// AddSpikeElectrode registers an electrode and its channel group in the spike
// sink, returning the electrode index.
func (e *Engine) AddSpikeElectrode(sc SpikeChannel) int {
	e.spikeChannels = append(e.spikeChannels, sc)
	if e.spikes != nil {
		e.spikes.AddChannelGroup(sc.NumChannels())
	}
	return len(e.spikeChannels) - 1
}

// ResetChannels forgets every Source, channel and electrode so that a new
// channel set can be registered. A recording in progress is ended first.
func (e *Engine) ResetChannels() {
	if e.state == Recording {
		log.Warn("resetting channels while recording, ending recording %d", e.recording)
		e.EndRecording()
	}
	e.scratch.reset()
	e.reg.reset()
	e.eventChannels = nil
	e.spikeChannels = nil
	if e.spikes != nil {
		e.spikes.ResetChannels()
	}
}

// BeginRecording opens the sinks and every Source file that has recorded
// channels, under <rootDir>/experiment<experiment>. A file that fails to open
// is logged and its channels produce no output for this recording.
func (e *Engine) BeginRecording(rootDir string, experiment, recording int) error {
	if e.events == nil || e.spikes == nil {
		return NotAcquiringError(fmt.Sprintf("begin recording %d", recording))
	}
	if e.state == Recording {
		return AlreadyRecordingError(fmt.Sprintf("begin recording %d", recording))
	}
	e.basePath = filepath.Join(rootDir, fmt.Sprintf("experiment%d", experiment))
	e.recording = recording
	name := recordingName(recording)

	e.openSinks(name)

	numRecorded := e.host.NumRecordedChannels()
	recPos := make([]int, len(e.reg.sources))
	e.reg.recorded = make([]*recordedChannel, 0, numRecorded)
	for i := 0; i < numRecorded; i++ {
		real := e.host.RealChannel(i)
		ch, found := e.reg.channel(real)
		if !found {
			log.Warn("recorded channel %d maps to unknown channel %d, skipping", i, real)
			e.reg.recorded = append(e.reg.recorded, &recordedChannel{real: real, source: -1, dest: -1})
			continue
		}
		ss := e.reg.sources[ch.source]
		if !ss.File.IsOpen() && !ss.initialized {
			ss.File.Init(ch.fileNodeID(), e.basePath)
			ss.initialized = true
			ss.Info.StartTime = e.anchor(i)
		}
		ss.addChannel(ch.DataChannel)

		dest := recPos[ch.source]
		recPos[ch.source]++
		e.reg.recorded = append(e.reg.recorded, &recordedChannel{
			real:   real,
			source: ch.source,
			dest:   dest,
			rate:   ch.SampleRate,
			ts:     NewTimestampBuffer(e.cfg.TimestampInterval),
		})
	}

	for ordinal, ss := range e.reg.sources {
		if !ss.File.IsOpen() && ss.ChannelCount > 0 && ss.File.IsReadyToOpen() {
			if err := ss.File.Open(ss.ChannelCount); err != nil {
				log.Error("failed to open file for source %d (node %d): %v", ordinal, ss.Source.NodeID, err)
				continue
			}
			metrics.OpenFiles.Inc()
		}
		if !ss.File.IsOpen() {
			continue
		}
		ss.Info.Name = name
		ss.Info.StartSample = 0
		ss.Info.BitVolts = append([]float32(nil), ss.BitVolts...)
		ss.Info.ChannelSampleRates = append([]float32(nil), ss.SampleRates...)
		if err := ss.File.StartRecording(recording, len(ss.BitVolts), ss.Info); err != nil {
			log.Error("failed to start recording %d in %s: %v", recording, ss.File.FileName(), err)
		}
	}

	e.hasAcquired = true
	e.state = Recording
	metrics.RecordingsTotal.Inc()
	log.Info("started %s in %s with %d channels across %d sources",
		name, e.basePath, numRecorded, len(e.reg.sources))
	return nil
}

func (e *Engine) openSinks(name string) {
	e.events.Init(e.basePath)
	if err := e.events.Open(); err != nil {
		log.Error("failed to open event file under %s: %v", e.basePath, err)
	}
	e.sinksOpen = true
	e.spikes.Init(e.basePath)
	if err := e.spikes.Open(); err != nil {
		log.Error("failed to open spike file under %s: %v", e.basePath, err)
	}
	if err := e.spikes.StartRecording(e.recording); err != nil {
		log.Error("failed to start spike recording %d: %v", e.recording, err)
	}

	// The first Source is the one described in the event file.
	if len(e.reg.sources) > 0 {
		e.primary = *e.reg.sources[0].Info
		e.primary.BitVolts = nil
		e.primary.ChannelSampleRates = nil
	} else {
		e.primary = SourceInfo{BitDepth: defaultBitDepth}
	}
	e.primary.Name = name
	e.primary.StartSample = 0
	e.primary.StartTime = 0
	if e.host.NumRecordedChannels() > 0 {
		e.primary.StartTime = e.host.Timestamp(0)
	}
	if err := e.events.StartRecording(e.recording, &e.primary); err != nil {
		log.Error("failed to start event recording %d: %v", e.recording, err)
	}
}

func (e *Engine) anchor(recorded int) int64 {
	if e.cfg.Anchor == AnchorPrimary {
		return e.primary.StartTime
	}
	return e.host.Timestamp(recorded)
}

// EndRecording flushes pending timestamps, stops and closes the sinks and
// every open Source file, then resets the per-recording state. It is safe to
// call in any state.
func (e *Engine) EndRecording() {
	if e.state == Recording {
		e.EndChannelBlock(true)
	}
	if e.sinksOpen {
		if err := e.events.StopRecording(); err != nil {
			log.Error("failed to stop event recording: %v", err)
		}
		if err := e.events.Close(); err != nil {
			log.Error("failed to close event file: %v", err)
		}
		if err := e.spikes.StopRecording(); err != nil {
			log.Error("failed to stop spike recording: %v", err)
		}
		if err := e.spikes.Close(); err != nil {
			log.Error("failed to close spike file: %v", err)
		}
		e.sinksOpen = false
	}
	for i, ss := range e.reg.sources {
		if ss.File.IsOpen() {
			if err := ss.File.StopRecording(); err != nil {
				log.Error("failed to stop recording in %s: %v", ss.File.FileName(), err)
			}
			if err := ss.File.Close(); err != nil {
				log.Error("failed to close %s: %v", ss.File.FileName(), err)
			}
			metrics.OpenFiles.Dec()
			log.Info("closed file %d: %s", i, ss.File.FileName())
		}
		ss.resetAccumulators()
	}
	e.reg.recorded = nil
	e.scratch.reset()
	if e.state == Recording {
		log.Info("ended %s", recordingName(e.recording))
	}
	e.state = Idle
}
