package rawimport

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ErrDescriptorRequired is returned when a raw file is loaded without a
// description of its layout.
var ErrDescriptorRequired = errors.New("raw import: volume layout not specified")

// ErrHeaderIsDataFile is wrapped in a *HeaderWriteError when the sidecar
// header path is the data file itself.
var ErrHeaderIsDataFile = errors.New("sidecar header would overwrite the data file")

// SizeMismatchError reports a raw file whose size disagrees with its descriptor.
type SizeMismatchError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("expected data size %s bytes does not match file size %s bytes (%s)",
		humanize.Comma(e.Expected), humanize.Comma(e.Actual), e.Path)
}

// HeaderWriteError reports a sidecar header that could not be written, or a
// volume that could not be read back through it.
type HeaderWriteError struct {
	Path string
	Err  error
}

func (e *HeaderWriteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("error writing to file: %s", e.Path)
	}
	return fmt.Sprintf("error writing to file: %s: %v", e.Path, e.Err)
}

func (e *HeaderWriteError) Unwrap() error {
	return e.Err
}
