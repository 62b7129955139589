package parser

import (
	"bytes"
	"io"
)

// A seekable byte stream over an attribute value. The same surface
// serves resident values (an in memory slice) and non resident ones
// (a RangeReader over mapped runs). Reads past the initialized size
// were already spliced with zero pads when the runs were mapped, so
// the stream covers [0, size) fully.
type StreamReader struct {
	reader RangeReaderAt
	size   int64

	position int64

	// Once a seek lands at or past the end the cached position is
	// cleared: there is no current byte, which is distinct from any
	// in range position.
	past_end bool
}

func NewStreamReader(reader RangeReaderAt, size int64) *StreamReader {
	return &StreamReader{reader: reader, size: size}
}

// A stream over a resident value's bytes.
func NewResidentStream(value []byte) *StreamReader {
	owned := make([]byte, len(value))
	copy(owned, value)

	var runs []*MappedReader
	if len(owned) > 0 {
		runs = []*MappedReader{{
			FileOffset: 0,
			Length:     int64(len(owned)),
			Reader:     bytes.NewReader(owned),
		}}
	}
	return NewStreamReader(NewRangeReader(runs), int64(len(owned)))
}

func (self *StreamReader) Size() int64 {
	return self.size
}

func (self *StreamReader) Ranges() []Range {
	return self.reader.Ranges()
}

// The current byte position, or ok=false when the stream is past the
// end and there is no current byte.
func (self *StreamReader) Position() (int64, bool) {
	if self.past_end {
		return 0, false
	}
	return self.position, true
}

func (self *StreamReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = self.position + offset
	case io.SeekEnd:
		abs = self.size + offset
	default:
		return 0, SeekOutOfBoundsError
	}

	if abs < 0 {
		return 0, SeekOutOfBoundsError
	}

	// Seeking at or past the end clamps to the size and clears the
	// current position.
	if abs >= self.size {
		self.position = self.size
		self.past_end = true
		return self.size, nil
	}

	self.position = abs
	self.past_end = false
	return abs, nil
}

func (self *StreamReader) Read(buf []byte) (int, error) {
	// A zero byte read must not advance any cursor state.
	if len(buf) == 0 {
		return 0, nil
	}

	if self.past_end || self.position >= self.size {
		return 0, io.EOF
	}

	to_read := self.size - self.position
	if to_read > int64(len(buf)) {
		to_read = int64(len(buf))
	}

	n, err := self.reader.ReadAt(buf[:to_read], self.position)
	if n > 0 {
		self.position += int64(n)
		if err == io.EOF {
			err = nil
		}
	}
	return n, err
}

// ReadAt serves the stream as an io.ReaderAt, bounded by the stream
// size. It does not disturb the seek position.
func (self *StreamReader) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, SeekOutOfBoundsError
	}
	if offset >= self.size {
		return 0, io.EOF
	}

	to_read := self.size - offset
	if to_read > int64(len(buf)) {
		to_read = int64(len(buf))
	}

	n, err := self.reader.ReadAt(buf[:to_read], offset)
	if err == io.EOF && int64(n) == to_read {
		err = nil
	}
	return n, err
}

// Fill buf completely from the given offset or fail.
func (self *StreamReader) ReadFullAt(buf []byte, offset int64) error {
	n, err := self.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}
	if n < len(buf) {
		return ShortReadError
	}
	return nil
}
