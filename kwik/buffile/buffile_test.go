package buffile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephysio/kwikstore/kwik/buffile"
)

func TestBufferedFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "test.bin")
	fp, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR, 0o700)
	require.Nil(t, err)
	err = fp.Truncate(1024 * 1024)
	require.Nil(t, err)
	err = fp.Close()
	require.Nil(t, err)

	bf, err := buffile.New(filePath)
	assert.Nil(t, err)
	dataIn := make([]byte, 64)
	for i := 0; i < len(dataIn); i++ {
		dataIn[i] = 0xaa
	}
	offset := int64(128)
	offset2 := offset * 3
	offset3 := int64(buffile.DefaultBlockSize - 2)
	offset4 := int64(1024*1024 - len(dataIn))
	for _, off := range []int64{offset, offset2, offset3, offset4} {
		_, err = bf.WriteAt(dataIn, off)
		require.Nil(t, err)
	}
	err = bf.Close()
	require.Nil(t, err)

	fp, err = os.Open(filePath)
	assert.Nil(t, err)
	defer fp.Close()
	checkFunc := func(offset int64, size int) {
		outData := make([]byte, size+2)
		_, _ = fp.ReadAt(outData, offset-1)
		assert.Equal(t, byte(0x00), outData[0])
		for i := 0; i < size; i++ {
			assert.Equal(t, byte(0xaa), outData[i+1])
		}
		if offset+int64(size) < 1024*1024 {
			assert.Equal(t, byte(0x00), outData[size+1])
		}
	}
	checkFunc(offset, len(dataIn))
	checkFunc(offset2, len(dataIn))
	checkFunc(offset3, len(dataIn))
	checkFunc(offset4, len(dataIn))
	fs, _ := fp.Stat()
	// make sure the file hasn't extended
	assert.Equal(t, int64(1024*1024), fs.Size())
}

func TestAppendGrowsFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "grow.bin")
	bf, err := buffile.NewWithBlockSize(filePath, 16)
	require.Nil(t, err)
	assert.Equal(t, int64(0), bf.Size())

	var want []byte
	for i := 0; i < 10; i++ {
		chunk := make([]byte, 7)
		for j := range chunk {
			chunk[j] = byte(i*7 + j)
		}
		n, err := bf.Append(chunk)
		require.Nil(t, err)
		require.Equal(t, len(chunk), n)
		want = append(want, chunk...)
	}
	assert.Equal(t, int64(70), bf.Size())

	// patch a header after the buffer has moved on
	_, err = bf.WriteAt([]byte{0xff, 0xfe}, 2)
	require.Nil(t, err)
	want[2], want[3] = 0xff, 0xfe

	// a large write spans several blocks
	big := make([]byte, 100)
	for i := range big {
		big[i] = 0x55
	}
	_, err = bf.Append(big)
	require.Nil(t, err)
	want = append(want, big...)
	require.Nil(t, bf.Close())

	got, err := os.ReadFile(filePath)
	require.Nil(t, err)
	assert.Equal(t, want, got)
}

func TestReopenAppends(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "reopen.bin")
	bf, err := buffile.New(filePath)
	require.Nil(t, err)
	_, err = bf.Append([]byte("first"))
	require.Nil(t, err)
	require.Nil(t, bf.Flush())
	require.Nil(t, bf.Close())

	bf, err = buffile.New(filePath)
	require.Nil(t, err)
	assert.Equal(t, int64(5), bf.Size())
	_, err = bf.Append([]byte("+second"))
	require.Nil(t, err)
	require.Nil(t, bf.Close())

	got, err := os.ReadFile(filePath)
	require.Nil(t, err)
	assert.Equal(t, "first+second", string(got))
}
