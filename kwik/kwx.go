package kwik

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/snappy"

	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/utils/io"
	"github.com/ephysio/kwikstore/utils/log"
)

type spikeRecordingHeader struct {
	Recording  int   `msgpack:"recording"`
	Groups     []int `msgpack:"groups"`
	Compressed bool  `msgpack:"compressed"`
}

type spikeRecordingFooter struct {
	Recording int     `msgpack:"recording"`
	Counts    []int64 `msgpack:"counts"`
}

// spike frame payload:
//   electrode u16 | flags u8 | samples per channel u16 | channels u16 | timestamp i64
//   | bit volts f32 * channels | waveform int16 * channels * samples per channel
// The waveform is snappy encoded when flags has spikeCompressed set.
const (
	spikeHeaderSize = 15
	spikeCompressed = 1 << 0
)

// KWXFile stores spike waveforms grouped by electrode, quantized to 16 bits
// with each sub-channel's bit volts.
type KWXFile struct {
	basePath  string
	compress  bool
	groups    []int
	c         *container
	recording int
	counts    []int64

	hdr    [spikeHeaderSize]byte
	scaled []float32
	fixed  []int16
	buf    []byte
	bv     []byte
}

var _ engine.SpikeSink = (*KWXFile)(nil)

func NewKWXFile(compress bool) *KWXFile {
	return &KWXFile{compress: compress}
}

func (f *KWXFile) Init(basePath string) {
	f.basePath = basePath
}

func (f *KWXFile) FileName() string {
	return f.basePath + ".kwx"
}

func (f *KWXFile) Open() error {
	if f.c != nil {
		return AlreadyOpenError(f.FileName())
	}
	if f.basePath == "" {
		return NotInitializedError("spike file")
	}
	c, err := openContainer(f.FileName(), kindSpikes)
	if err != nil {
		return err
	}
	f.c = c
	log.Info("opened %s with %d electrodes", f.FileName(), len(f.groups))
	return nil
}

// AddChannelGroup registers the next electrode. Electrodes added during a
// recording are announced with a channel group frame.
func (f *KWXFile) AddChannelGroup(channelCount int) {
	f.groups = append(f.groups, channelCount)
	f.counts = append(f.counts, 0)
	if f.c != nil {
		if err := f.c.writeRecord(tagChannelGroups, f.groups); err != nil {
			log.Error("failed to announce electrode %d in %s: %v", len(f.groups)-1, f.FileName(), err)
		}
	}
}

func (f *KWXFile) ResetChannels() {
	f.groups = nil
	f.counts = nil
}

func (f *KWXFile) StartRecording(recording int) error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	f.recording = recording
	f.counts = make([]int64, len(f.groups))
	return f.c.writeRecord(tagRecordingStart, spikeRecordingHeader{
		Recording:  recording,
		Groups:     f.groups,
		Compressed: f.compress,
	})
}

func (f *KWXFile) WriteSpike(electrode, samplesPerChannel int, data []float32, bitVolts []float32, timestamp int64) error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	if electrode < 0 || electrode >= len(f.groups) {
		return WrongChannelError(fmt.Sprintf("%s electrode %d", f.FileName(), electrode))
	}
	channels := f.groups[electrode]
	if len(bitVolts) != channels || len(data) != channels*samplesPerChannel {
		return ShortWriteError(fmt.Sprintf("%s electrode %d: %d samples, %d bit volts",
			f.FileName(), electrode, len(data), len(bitVolts)))
	}

	f.quantize(samplesPerChannel, data, bitVolts)
	waveform := io.Int16sToLE(f.buf, f.fixed)
	f.buf = waveform
	var flags uint8
	if f.compress {
		waveform = snappy.Encode(nil, waveform)
		flags |= spikeCompressed
	}

	binary.LittleEndian.PutUint16(f.hdr[0:], uint16(electrode))
	f.hdr[2] = flags
	binary.LittleEndian.PutUint16(f.hdr[3:], uint16(samplesPerChannel))
	binary.LittleEndian.PutUint16(f.hdr[5:], uint16(channels))
	binary.LittleEndian.PutUint64(f.hdr[7:], uint64(timestamp))
	f.bv = io.Float32sToLE(f.bv, bitVolts)
	if err := f.c.writeFrame(tagSpike, f.hdr[:], f.bv, waveform); err != nil {
		return err
	}
	f.counts[electrode]++
	return nil
}

// quantize converts the channel-major waveform into f.fixed.
func (f *KWXFile) quantize(samplesPerChannel int, data, bitVolts []float32) {
	n := len(data)
	if cap(f.fixed) < n {
		f.fixed = make([]int16, n)
		f.scaled = make([]float32, n)
	}
	f.fixed = f.fixed[:n]
	f.scaled = f.scaled[:n]
	for ch, bv := range bitVolts {
		lo, hi := ch*samplesPerChannel, (ch+1)*samplesPerChannel
		engine.ConvertToInt16(f.fixed[lo:hi], f.scaled[lo:hi], data[lo:hi], bv)
	}
}

func (f *KWXFile) StopRecording() error {
	if f.c == nil {
		return NotOpenError(f.FileName())
	}
	if err := f.c.writeRecord(tagRecordingEnd, spikeRecordingFooter{Recording: f.recording, Counts: f.counts}); err != nil {
		return err
	}
	return f.c.endRecording()
}

func (f *KWXFile) Close() error {
	if f.c == nil {
		return nil
	}
	err := f.c.close()
	f.c = nil
	return err
}
