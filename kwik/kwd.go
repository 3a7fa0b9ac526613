package kwik

import (
	"fmt"

	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/utils/io"
	"github.com/ephysio/kwikstore/utils/log"
)

type rawRecordingHeader struct {
	Recording int               `msgpack:"recording"`
	NodeID    int               `msgpack:"node_id"`
	Channels  int               `msgpack:"channels"`
	Info      engine.SourceInfo `msgpack:"info"`
}

type rawRecordingFooter struct {
	Recording  int     `msgpack:"recording"`
	Samples    []int64 `msgpack:"samples"`
	Timestamps []int64 `msgpack:"timestamps"`
}

// KWDFile holds the continuous data of one Source: a recording header, then
// interleaved sample and timestamp frames addressed by destination channel.
type KWDFile struct {
	nodeID   int
	basePath string
	ready    bool

	c          *container
	channels   int
	recording  int
	samples    []int64
	timestamps []int64
	buf        []byte
}

var _ engine.ChannelGroupFile = (*KWDFile)(nil)

func NewKWDFile() *KWDFile {
	return &KWDFile{}
}

func (f *KWDFile) Init(nodeID int, basePath string) {
	f.nodeID = nodeID
	f.basePath = basePath
	f.ready = true
}

func (f *KWDFile) IsReadyToOpen() bool {
	return f.ready
}

func (f *KWDFile) FileName() string {
	return fmt.Sprintf("%s_%d.raw.kwd", f.basePath, f.nodeID)
}

func (f *KWDFile) Open(channelCount int) error {
	if f.c != nil {
		return AlreadyOpenError(f.FileName())
	}
	if !f.ready {
		return NotInitializedError(fmt.Sprintf("source %d", f.nodeID))
	}
	c, err := openContainer(f.FileName(), kindRaw)
	if err != nil {
		return err
	}
	f.c = c
	f.channels = channelCount
	f.samples = make([]int64, channelCount)
	f.timestamps = make([]int64, channelCount)
	log.Info("opened %s with %d channels", f.FileName(), channelCount)
	return nil
}

func (f *KWDFile) IsOpen() bool {
	return f.c != nil
}

func (f *KWDFile) StartRecording(recording, channelCount int, info *engine.SourceInfo) error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	if channelCount != f.channels {
		return WrongChannelError(fmt.Sprintf("%s: recording %d has %d channels, file opened with %d",
			f.FileName(), recording, channelCount, f.channels))
	}
	f.recording = recording
	for i := range f.samples {
		f.samples[i] = 0
		f.timestamps[i] = 0
	}
	return f.c.writeRecord(tagRecordingStart, rawRecordingHeader{
		Recording: recording,
		NodeID:    f.nodeID,
		Channels:  channelCount,
		Info:      *info,
	})
}

func (f *KWDFile) checkDest(dest int) error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	if dest < 0 || dest >= f.channels {
		return WrongChannelError(fmt.Sprintf("%s channel %d", f.FileName(), dest))
	}
	return nil
}

func (f *KWDFile) WriteSamples(data []int16, dest int) error {
	if err := f.checkDest(dest); err != nil {
		return err
	}
	f.buf = io.Int16sToLE(f.buf, data)
	if err := f.c.writeFrame(tagSamples, destHeader(dest), f.buf); err != nil {
		return err
	}
	f.samples[dest] += int64(len(data))
	return nil
}

func (f *KWDFile) WriteTimestamps(timestamps []int64, dest int) error {
	if err := f.checkDest(dest); err != nil {
		return err
	}
	f.buf = io.Int64sToLE(f.buf, timestamps)
	if err := f.c.writeFrame(tagTimestamps, destHeader(dest), f.buf); err != nil {
		return err
	}
	f.timestamps[dest] += int64(len(timestamps))
	return nil
}

func (f *KWDFile) StopRecording() error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	footer := rawRecordingFooter{
		Recording:  f.recording,
		Samples:    append([]int64(nil), f.samples...),
		Timestamps: append([]int64(nil), f.timestamps...),
	}
	if err := f.c.writeRecord(tagRecordingEnd, footer); err != nil {
		return err
	}
	return f.c.endRecording()
}

// Close releases the file. The next recording has to Init it again. Closing
// a closed file is a no-op.
func (f *KWDFile) Close() error {
	if f.c == nil {
		return nil
	}
	err := f.c.close()
	f.c = nil
	f.ready = false
	return err
}
