package kwik

import (
	"encoding/binary"
	stdio "io"
	"os"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"

	"github.com/ephysio/kwikstore/kwik/buffile"
	"github.com/ephysio/kwikstore/utils/io"
	"github.com/ephysio/kwikstore/utils/log"
)

// Every kwik file is a fixed preamble followed by a sequence of frames.
//
//   preamble: "KWIK" | kind [4]byte | version uint32 | recordings uint32
//   frame:    tag uint8 | length uint32 | payload
//
// All integers are little-endian. Recording headers and footers are msgpack
// maps; bulk payloads are raw little-endian arrays.
const (
	magic            = "KWIK"
	formatVersion    = 1
	preambleSize     = 16
	recordingsOffset = 12
	frameHeaderSize  = 5
)

type fileKind string

const (
	kindRaw    fileKind = "RAW"
	kindEvents fileKind = "EVT"
	kindSpikes fileKind = "SPK"
)

type frameTag uint8

const (
	tagRecordingStart frameTag = iota + 1
	tagRecordingEnd
	tagSamples
	tagTimestamps
	tagEvent
	tagChannelGroups
	tagSpike
)

// container is the framed file underneath KWDFile, KWEFile and KWXFile.
// Reopening an existing file appends to it.
type container struct {
	path       string
	kind       fileKind
	bf         *buffile.BufferedFile
	recordings uint32
	hdr        [frameHeaderSize]byte
}

func openContainer(path string, kind fileKind) (*container, error) {
	recordings, err := readPreamble(path, kind)
	if err != nil {
		return nil, err
	}
	bf, err := buffile.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	c := &container{path: path, kind: kind, bf: bf, recordings: recordings}
	if bf.Size() == 0 {
		if _, err := bf.Append(c.preamble()); err != nil {
			bf.Close()
			return nil, errors.Wrapf(err, "failed to write preamble of %s", path)
		}
	}
	return c, nil
}

// readPreamble validates an existing file and returns the number of
// recordings it already holds. A missing or empty file holds none.
func readPreamble(path string, kind fileKind) (uint32, error) {
	fp, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open %s", path)
	}
	defer fp.Close()

	buf := make([]byte, preambleSize)
	n, err := stdio.ReadFull(fp, buf)
	if n == 0 {
		return 0, nil
	}
	if err != nil || string(buf[:len(magic)]) != magic || fileKind(buf[4:4+len(kind)]) != kind {
		return 0, CorruptFileError(path)
	}
	return io.ToUInt32(buf[recordingsOffset:]), nil
}

func (c *container) preamble() []byte {
	buf := make([]byte, preambleSize)
	copy(buf, magic)
	copy(buf[4:8], c.kind)
	binary.LittleEndian.PutUint32(buf[8:], formatVersion)
	binary.LittleEndian.PutUint32(buf[recordingsOffset:], c.recordings)
	return buf
}

func (c *container) writeFrame(tag frameTag, parts ...[]byte) error {
	length := 0
	for _, p := range parts {
		length += len(p)
	}
	c.hdr[0] = byte(tag)
	binary.LittleEndian.PutUint32(c.hdr[1:], uint32(length))
	if err := c.append(c.hdr[:]); err != nil {
		return err
	}
	for _, p := range parts {
		if err := c.append(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *container) append(p []byte) error {
	n, err := c.bf.Append(p)
	if err != nil {
		return errors.Wrapf(err, "failed to write to %s", c.path)
	}
	if n != len(p) {
		return ShortWriteError(c.path)
	}
	return nil
}

func (c *container) writeRecord(tag frameTag, v interface{}) error {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode frame %d of %s", tag, c.path)
	}
	return c.writeFrame(tag, buf)
}

// endRecording bumps the recording count kept in the preamble.
func (c *container) endRecording() error {
	c.recordings++
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], c.recordings)
	if _, err := c.bf.WriteAt(buf[:], recordingsOffset); err != nil {
		return errors.Wrapf(err, "failed to update recording count of %s", c.path)
	}
	return nil
}

func (c *container) close() error {
	size := c.bf.Size()
	if err := c.bf.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", c.path)
	}
	log.Info("closed %s (%s, %d recordings)", c.path, bytefmt.ByteSize(uint64(size)), c.recordings)
	return nil
}

func destHeader(dest int) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(dest))
	return buf[:]
}
