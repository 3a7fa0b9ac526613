// Package buffile batches small writes into block-sized in-memory buffers,
// assuming consecutive writes land close to each other in a single file.
// Unlike a plain WriteAt on os.File, writes may extend the file.
package buffile

import (
	"errors"
	"io"
	"os"

	"github.com/ephysio/kwikstore/utils/log"
)

type fileLike interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// BufferedFile abstracts a file with a block-sized buffer to group writes
// that are likely consecutive. It provides no concurrency guarantee.
type BufferedFile struct {
	fp           fileLike
	blockSize    int
	buffer       []byte
	bufferOffset int64
	// bufferLen is the number of meaningful bytes in buffer: either read
	// from disk or written since the last flush.
	bufferLen int
	size      int64
}

const DefaultBlockSize = 32 * 1024

// New opens filePath for read/write, creating it when missing.
func New(filePath string) (*BufferedFile, error) {
	return NewWithBlockSize(filePath, DefaultBlockSize)
}

func NewWithBlockSize(filePath string, blockSize int) (*BufferedFile, error) {
	fp, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := fp.Stat()
	if err != nil {
		fp.Close()
		return nil, err
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &BufferedFile{
		fp:        fp,
		blockSize: blockSize,
		size:      fi.Size(),
	}, nil
}

// Size is the logical file size, including buffered bytes.
func (f *BufferedFile) Size() int64 {
	return f.size
}

func (f *BufferedFile) Close() error {
	if err := f.writeBuffer(); err != nil {
		log.Error("failed to write buffer before closing. err=" + err.Error())
	}
	return f.fp.Close()
}

// Flush writes the buffered block to the file.
func (f *BufferedFile) Flush() error {
	return f.writeBuffer()
}

func (f *BufferedFile) readBuffer(offset int64, size int) error {
	// we always read from block boundary
	readOffset := offset - offset%int64(f.blockSize)

	// read size is block lower + offset residual + actual size
	readSize := int(offset%int64(f.blockSize)) + size
	// align to block size
	readSize += f.blockSize
	readSize -= readSize % f.blockSize

	// len(nil slice) is 0
	if len(f.buffer) < readSize {
		f.buffer = make([]byte, readSize)
	}
	f.buffer = f.buffer[:readSize]
	n, err := f.fp.ReadAt(f.buffer, readOffset)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	// read short is fine at the end of file, the tail is not ours yet
	for i := n; i < len(f.buffer); i++ {
		f.buffer[i] = 0
	}
	f.bufferOffset = readOffset
	f.bufferLen = n
	return nil
}

func (f *BufferedFile) writeBuffer() error {
	if f.buffer != nil && f.bufferLen > 0 {
		if _, err := f.fp.WriteAt(f.buffer[:f.bufferLen], f.bufferOffset); err != nil {
			return err
		}
	}
	return nil
}

func (f *BufferedFile) ensureBuffer(data []byte, offset int64) error {
	if f.buffer == nil {
		return f.readBuffer(offset, len(data))
	}
	bufferLower := f.bufferOffset
	bufferUpper := f.bufferOffset + int64(len(f.buffer))
	if offset < bufferLower || offset+int64(len(data)) > bufferUpper {
		if err := f.writeBuffer(); err != nil {
			return err
		}
		if err := f.readBuffer(offset, len(data)); err != nil {
			return err
		}
	}
	return nil
}

// WriteAt writes the data at offset from the beginning of the file. Upon the
// return from this call, the data does not reach the disk yet. Flush or Close
// the BufferedFile to write it.
func (f *BufferedFile) WriteAt(data []byte, offset int64) (int, error) {
	if err := f.ensureBuffer(data, offset); err != nil {
		return 0, err
	}
	writePos := int(offset - f.bufferOffset)
	n := copy(f.buffer[writePos:], data)
	if end := writePos + n; end > f.bufferLen {
		f.bufferLen = end
	}
	if end := offset + int64(n); end > f.size {
		f.size = end
	}
	return n, nil
}

// Append writes data at the current end of the file.
func (f *BufferedFile) Append(data []byte) (int, error) {
	return f.WriteAt(data, f.size)
}
