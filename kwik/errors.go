package kwik

import (
	"fmt"

	"github.com/ephysio/kwikstore/utils/io"
)

type NotOpenError string

func (msg NotOpenError) Error() string {
	return errReport("%s: file not open", string(msg))
}

type AlreadyOpenError string

func (msg AlreadyOpenError) Error() string {
	return errReport("%s: file already open", string(msg))
}

type NotInitializedError string

func (msg NotInitializedError) Error() string {
	return errReport("%s: file has no path, call Init first", string(msg))
}

type WrongChannelError string

func (msg WrongChannelError) Error() string {
	return errReport("%s: channel out of range", string(msg))
}

type ShortWriteError string

func (msg ShortWriteError) Error() string {
	return errReport("%s: payload length does not match the channel layout", string(msg))
}

type CorruptFileError string

func (msg CorruptFileError) Error() string {
	return errReport("%s: not a kwik file of the expected kind", string(msg))
}

func errReport(base string, msg string) string {
	base = io.GetCallerFileContext(2) + ":" + base
	return fmt.Sprintf(base, msg)
}
