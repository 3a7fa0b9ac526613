package kwik

import (
	"encoding/binary"
	"fmt"

	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/utils/log"
)

type eventType struct {
	Name     string `msgpack:"name"`
	DataType string `msgpack:"data_type"`
	Group    string `msgpack:"group"`
}

type eventRecordingHeader struct {
	Recording int               `msgpack:"recording"`
	Primary   engine.SourceInfo `msgpack:"primary"`
	Types     []eventType       `msgpack:"types"`
}

type eventRecordingFooter struct {
	Recording int     `msgpack:"recording"`
	Counts    []int64 `msgpack:"counts"`
}

// event frame payload: type index u8 | state u8 | source id u16 | timestamp i64 | data
const eventHeaderSize = 12

// KWEFile is the experiment-wide event file.
type KWEFile struct {
	basePath  string
	types     []eventType
	c         *container
	recording int
	counts    []int64
	hdr       [eventHeaderSize]byte
}

var _ engine.EventSink = (*KWEFile)(nil)

func NewKWEFile() *KWEFile {
	return &KWEFile{}
}

func (f *KWEFile) RegisterEventType(name string, dataType engine.DataType, groupLabel string) {
	f.types = append(f.types, eventType{Name: name, DataType: dataType.String(), Group: groupLabel})
}

func (f *KWEFile) Init(basePath string) {
	f.basePath = basePath
}

func (f *KWEFile) FileName() string {
	return f.basePath + ".kwe"
}

func (f *KWEFile) Open() error {
	if f.c != nil {
		return AlreadyOpenError(f.FileName())
	}
	if f.basePath == "" {
		return NotInitializedError("event file")
	}
	c, err := openContainer(f.FileName(), kindEvents)
	if err != nil {
		return err
	}
	f.c = c
	log.Info("opened %s with %d event types", f.FileName(), len(f.types))
	return nil
}

func (f *KWEFile) StartRecording(recording int, primary *engine.SourceInfo) error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	f.recording = recording
	f.counts = make([]int64, len(f.types))
	return f.c.writeRecord(tagRecordingStart, eventRecordingHeader{
		Recording: recording,
		Primary:   *primary,
		Types:     f.types,
	})
}

func (f *KWEFile) WriteEvent(typeIndex int, state uint8, sourceID uint16, payload []byte, timestamp int64) error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	if typeIndex < 0 || typeIndex >= len(f.types) {
		return WrongChannelError(fmt.Sprintf("%s event type %d", f.FileName(), typeIndex))
	}
	f.hdr[0] = uint8(typeIndex)
	f.hdr[1] = state
	binary.LittleEndian.PutUint16(f.hdr[2:], sourceID)
	binary.LittleEndian.PutUint64(f.hdr[4:], uint64(timestamp))
	if err := f.c.writeFrame(tagEvent, f.hdr[:], payload); err != nil {
		return err
	}
	if typeIndex < len(f.counts) {
		f.counts[typeIndex]++
	}
	return nil
}

func (f *KWEFile) StopRecording() error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	if err := f.c.writeRecord(tagRecordingEnd, eventRecordingFooter{Recording: f.recording, Counts: f.counts}); err != nil {
		return err
	}
	return f.c.endRecording()
}

func (f *KWEFile) Close() error {
	if f.c == nil {
		return nil
	}
	err := f.c.close()
	f.c = nil
	return err
}
