package test

import (
	"errors"
	"fmt"

	"github.com/ephysio/kwikstore/engine"
)

// ErrInjected is returned by doubles configured to fail.
var ErrInjected = errors.New("injected failure")

// MemoryFile is an in-memory engine.ChannelGroupFile that records every call.
type MemoryFile struct {
	NodeID      int
	BasePath    string
	FailOpen    bool
	InitCalls   int
	OpenCalls   int
	CloseCalls  int
	StartCalls  int
	StopCalls   int
	Channels    int
	Recording   int
	Info        engine.SourceInfo
	Samples     map[int][]int16
	Timestamps  map[int][]int64
	TSWrites    map[int]int
	initialized bool
	open        bool
}

func (f *MemoryFile) Init(nodeID int, basePath string) {
	f.NodeID = nodeID
	f.BasePath = basePath
	f.InitCalls++
	f.initialized = true
}

func (f *MemoryFile) IsReadyToOpen() bool {
	return f.initialized
}

func (f *MemoryFile) Open(channelCount int) error {
	f.OpenCalls++
	if f.FailOpen {
		return ErrInjected
	}
	if f.open {
		return fmt.Errorf("%s already open", f.FileName())
	}
	f.open = true
	f.Channels = channelCount
	f.Samples = map[int][]int16{}
	f.Timestamps = map[int][]int64{}
	f.TSWrites = map[int]int{}
	return nil
}

func (f *MemoryFile) IsOpen() bool {
	return f.open
}

func (f *MemoryFile) StartRecording(recording, channelCount int, info *engine.SourceInfo) error {
	f.StartCalls++
	f.Recording = recording
	f.Info = *info
	return nil
}

func (f *MemoryFile) WriteSamples(data []int16, destIndex int) error {
	if !f.open {
		return fmt.Errorf("%s not open", f.FileName())
	}
	f.Samples[destIndex] = append(f.Samples[destIndex], data...)
	return nil
}

func (f *MemoryFile) WriteTimestamps(timestamps []int64, destIndex int) error {
	if !f.open {
		return fmt.Errorf("%s not open", f.FileName())
	}
	f.Timestamps[destIndex] = append(f.Timestamps[destIndex], timestamps...)
	f.TSWrites[destIndex]++
	return nil
}

func (f *MemoryFile) StopRecording() error {
	f.StopCalls++
	return nil
}

func (f *MemoryFile) Close() error {
	f.CloseCalls++
	f.open = false
	f.initialized = false
	return nil
}

func (f *MemoryFile) FileName() string {
	return fmt.Sprintf("%s_%d.raw.kwd", f.BasePath, f.NodeID)
}

// EventRecord is one call to MemoryEventSink.WriteEvent.
type EventRecord struct {
	TypeIndex int
	State     uint8
	SourceID  uint16
	Payload   []byte
	Timestamp int64
}

type EventTypeRecord struct {
	Name     string
	DataType engine.DataType
	Group    string
}

type MemoryEventSink struct {
	BasePath   string
	Types      []EventTypeRecord
	Events     []EventRecord
	Primary    engine.SourceInfo
	Recordings []int
	OpenCalls  int
	CloseCalls int
	StopCalls  int
	open       bool
}

func (s *MemoryEventSink) RegisterEventType(name string, dataType engine.DataType, groupLabel string) {
	s.Types = append(s.Types, EventTypeRecord{Name: name, DataType: dataType, Group: groupLabel})
}

func (s *MemoryEventSink) Init(basePath string) {
	s.BasePath = basePath
}

func (s *MemoryEventSink) Open() error {
	s.OpenCalls++
	s.open = true
	return nil
}

func (s *MemoryEventSink) StartRecording(recording int, primary *engine.SourceInfo) error {
	s.Recordings = append(s.Recordings, recording)
	s.Primary = *primary
	return nil
}

func (s *MemoryEventSink) WriteEvent(typeIndex int, state uint8, sourceID uint16, payload []byte, timestamp int64) error {
	if !s.open {
		return errors.New("event sink not open")
	}
	s.Events = append(s.Events, EventRecord{
		TypeIndex: typeIndex,
		State:     state,
		SourceID:  sourceID,
		Payload:   append([]byte(nil), payload...),
		Timestamp: timestamp,
	})
	return nil
}

func (s *MemoryEventSink) StopRecording() error {
	s.StopCalls++
	return nil
}

func (s *MemoryEventSink) Close() error {
	s.CloseCalls++
	s.open = false
	return nil
}

// SpikeRecord is one call to MemorySpikeSink.WriteSpike.
type SpikeRecord struct {
	Electrode         int
	SamplesPerChannel int
	Data              []float32
	BitVolts          []float32
	Timestamp         int64
}

type MemorySpikeSink struct {
	BasePath   string
	Groups     []int
	Spikes     []SpikeRecord
	Recordings []int
	Resets     int
	CloseCalls int
	open       bool
}

func (s *MemorySpikeSink) Init(basePath string) {
	s.BasePath = basePath
}

func (s *MemorySpikeSink) Open() error {
	s.open = true
	return nil
}

func (s *MemorySpikeSink) AddChannelGroup(channelCount int) {
	s.Groups = append(s.Groups, channelCount)
}

func (s *MemorySpikeSink) StartRecording(recording int) error {
	s.Recordings = append(s.Recordings, recording)
	return nil
}

func (s *MemorySpikeSink) WriteSpike(electrode, samplesPerChannel int, data []float32, bitVolts []float32, timestamp int64) error {
	if !s.open {
		return errors.New("spike sink not open")
	}
	s.Spikes = append(s.Spikes, SpikeRecord{
		Electrode:         electrode,
		SamplesPerChannel: samplesPerChannel,
		Data:              append([]float32(nil), data...),
		BitVolts:          append([]float32(nil), bitVolts...),
		Timestamp:         timestamp,
	})
	return nil
}

func (s *MemorySpikeSink) ResetChannels() {
	s.Resets++
	s.Groups = nil
}

func (s *MemorySpikeSink) StopRecording() error {
	return nil
}

func (s *MemorySpikeSink) Close() error {
	s.CloseCalls++
	s.open = false
	return nil
}

// MemoryFactory hands out memory doubles and keeps them for inspection.
type MemoryFactory struct {
	FailEventSink bool
	FailSpikeSink bool
	// FailOpen makes every channel group file created afterwards fail Open.
	FailOpen   bool
	Files      []*MemoryFile
	EventSinks []*MemoryEventSink
	SpikeSinks []*MemorySpikeSink
}

func (f *MemoryFactory) NewEventSink() (engine.EventSink, error) {
	if f.FailEventSink {
		return nil, ErrInjected
	}
	s := &MemoryEventSink{}
	f.EventSinks = append(f.EventSinks, s)
	return s, nil
}

func (f *MemoryFactory) NewSpikeSink() (engine.SpikeSink, error) {
	if f.FailSpikeSink {
		return nil, ErrInjected
	}
	s := &MemorySpikeSink{}
	f.SpikeSinks = append(f.SpikeSinks, s)
	return s, nil
}

func (f *MemoryFactory) NewChannelGroupFile() engine.ChannelGroupFile {
	file := &MemoryFile{FailOpen: f.FailOpen}
	f.Files = append(f.Files, file)
	return file
}

// EventSink returns the most recently constructed event sink.
func (f *MemoryFactory) EventSink() *MemoryEventSink {
	if len(f.EventSinks) == 0 {
		return nil
	}
	return f.EventSinks[len(f.EventSinks)-1]
}

// SpikeSink returns the most recently constructed spike sink.
func (f *MemoryFactory) SpikeSink() *MemorySpikeSink {
	if len(f.SpikeSinks) == 0 {
		return nil
	}
	return f.SpikeSinks[len(f.SpikeSinks)-1]
}

// OpenFiles counts the files currently open.
func (f *MemoryFactory) OpenFiles() int {
	n := 0
	for _, file := range f.Files {
		if file.IsOpen() {
			n++
		}
	}
	return n
}

// StaticHost is an engine.Host over a fixed recorded channel list whose
// timestamps are advanced explicitly by the test.
type StaticHost struct {
	Recorded   []int
	Timestamps []int64
}

// NewStaticHost records the real channels 0..n-1, all starting at start.
func NewStaticHost(n int, start int64) *StaticHost {
	h := &StaticHost{Recorded: make([]int, n), Timestamps: make([]int64, n)}
	for i := range h.Recorded {
		h.Recorded[i] = i
		h.Timestamps[i] = start
	}
	return h
}

func (h *StaticHost) NumRecordedChannels() int {
	return len(h.Recorded)
}

func (h *StaticHost) RealChannel(recorded int) int {
	return h.Recorded[recorded]
}

func (h *StaticHost) Timestamp(recorded int) int64 {
	return h.Timestamps[recorded]
}

// Advance moves the timestamp of a recorded channel forward by n samples.
func (h *StaticHost) Advance(recorded, n int) {
	h.Timestamps[recorded] += int64(n)
}
