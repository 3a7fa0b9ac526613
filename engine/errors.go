package engine

import (
	"fmt"

	"github.com/ephysio/kwikstore/utils/io"
)

type NotAcquiringError string

func (msg NotAcquiringError) Error() string {
	return errReport("%s: acquisition has not been started", string(msg))
}

type AlreadyRecordingError string

func (msg AlreadyRecordingError) Error() string {
	return errReport("%s: a recording is already in progress", string(msg))
}

type DuplicateSourceError string

func (msg DuplicateSourceError) Error() string {
	return errReport("%s: source node is already registered", string(msg))
}

type UnknownFormatError string

func (msg UnknownFormatError) Error() string {
	return errReport("%s: no container format registered under this name", string(msg))
}

type MalformedEventError string

func (msg MalformedEventError) Error() string {
	return errReport("%s: malformed event payload", string(msg))
}

func errReport(base string, msg string) string {
	base = io.GetCallerFileContext(2) + ":" + base
	return fmt.Sprintf(base, msg)
}
