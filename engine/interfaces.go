package engine

// DataType describes the payload stored for a registered event type.
type DataType int8

const (
	U8 DataType = iota + 1
	I16
	I64
	F32
	DSTR // variable length string
)

func (t DataType) String() string {
	switch t {
	case U8:
		return "U8"
	case I16:
		return "I16"
	case I64:
		return "I64"
	case F32:
		return "F32"
	case DSTR:
		return "DSTR"
	default:
		return "UNKNOWN"
	}
}

// ChannelGroupFile is one physical output unit holding every recorded channel
// of a single Source. Samples and timestamps are addressed by the channel's
// destination index inside the file, not by its global recorded index.
type ChannelGroupFile interface {
	Init(nodeID int, basePath string)
	IsReadyToOpen() bool
	Open(channelCount int) error
	IsOpen() bool
	StartRecording(recording, channelCount int, info *SourceInfo) error
	WriteSamples(data []int16, destIndex int) error
	WriteTimestamps(timestamps []int64, destIndex int) error
	StopRecording() error
	Close() error
	FileName() string
}

// EventSink receives the discrete events (TTL transitions, text messages and
// sync markers) of a whole experiment.
type EventSink interface {
	RegisterEventType(name string, dataType DataType, groupLabel string)
	Init(basePath string)
	Open() error
	StartRecording(recording int, primary *SourceInfo) error
	WriteEvent(typeIndex int, state uint8, sourceID uint16, payload []byte, timestamp int64) error
	StopRecording() error
	Close() error
}

// SpikeSink receives spike waveforms grouped by electrode.
type SpikeSink interface {
	Init(basePath string)
	Open() error
	AddChannelGroup(channelCount int)
	StartRecording(recording int) error
	WriteSpike(electrode, samplesPerChannel int, data []float32, bitVolts []float32, timestamp int64) error
	ResetChannels()
	StopRecording() error
	Close() error
}

// FileFactory constructs the collaborators owned by an Engine. Sink
// construction may fail; it is the only fatal condition of a recording.
type FileFactory interface {
	NewEventSink() (EventSink, error)
	NewSpikeSink() (SpikeSink, error)
	NewChannelGroupFile() ChannelGroupFile
}

// Host is the acquisition side: it knows which of the added channels are
// selected for recording and the current absolute timestamp of each of them.
type Host interface {
	NumRecordedChannels() int
	RealChannel(recorded int) int
	Timestamp(recorded int) int64
}
