package parser

import (
	"bytes"
	"io"
	"sort"
)

// A reader that can also describe the byte ranges backing it.
type RangeReaderAt interface {
	io.ReaderAt

	Ranges() []Range
}

type Range struct {
	Offset   int64
	Length   int64
	IsSparse bool
}

// A reader of zeros, backing sparse ranges and the initialized size
// pad.
type NullReader struct{}

func (self *NullReader) ReadAt(buf []byte, offset int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

// One contiguous piece of a logical byte stream, mapped either onto
// the volume at TargetOffset or onto zeros when sparse. All fields
// are in bytes.
type MappedReader struct {
	FileOffset   int64
	TargetOffset int64
	Length       int64
	IsSparse     bool
	Reader       io.ReaderAt
}

// Read relative to the start of this mapped piece.
func (self *MappedReader) readRelative(buf []byte, offset int64) (
	int, error) {
	if offset < 0 || offset >= self.Length {
		return 0, io.EOF
	}

	to_read := self.Length - offset
	if to_read > int64(len(buf)) {
		to_read = int64(len(buf))
	}

	if self.IsSparse {
		for i := int64(0); i < to_read; i++ {
			buf[i] = 0
		}
		return int(to_read), nil
	}

	n, err := self.Reader.ReadAt(buf[:to_read], self.TargetOffset+offset)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// The concatenation of mapped pieces presented as one io.ReaderAt.
// Pieces are kept sorted by FileOffset and tile the stream - gaps
// read as EOF.
type RangeReader struct {
	runs []*MappedReader
}

func NewRangeReader(runs []*MappedReader) *RangeReader {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].FileOffset < runs[j].FileOffset
	})
	return &RangeReader{runs: runs}
}

func (self *RangeReader) Size() int64 {
	if len(self.runs) == 0 {
		return 0
	}
	last := self.runs[len(self.runs)-1]
	return last.FileOffset + last.Length
}

func (self *RangeReader) Ranges() []Range {
	result := make([]Range, 0, len(self.runs))
	for _, run := range self.runs {
		result = append(result, Range{
			Offset:   run.FileOffset,
			Length:   run.Length,
			IsSparse: run.IsSparse,
		})
	}
	return result
}

func (self *RangeReader) ReadAt(buf []byte, offset int64) (int, error) {
	buf_idx := 0

	for buf_idx < len(buf) {
		run := self.findRun(offset)
		if run == nil {
			break
		}

		n, err := run.readRelative(buf[buf_idx:], offset-run.FileOffset)
		if err != nil && err != io.EOF {
			return buf_idx, err
		}
		if n == 0 {
			break
		}

		buf_idx += n
		offset += int64(n)
	}

	if buf_idx == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return buf_idx, nil
}

func (self *RangeReader) findRun(offset int64) *MappedReader {
	idx := sort.Search(len(self.runs), func(i int) bool {
		return self.runs[i].FileOffset+self.runs[i].Length > offset
	})
	if idx >= len(self.runs) {
		return nil
	}
	run := self.runs[idx]
	if run.FileOffset > offset {
		return nil
	}
	return run
}

// Convert decoded runs into mapped byte ranges for one VCN segment.
// segment_start is the byte offset of the segment's first VCN within
// the logical stream; segment_length caps the mapping (the run set
// may over allocate past the end of the data).
func mapRuns(
	ntfs *NTFSContext,
	runs []Run,
	segment_start int64,
	segment_length int64) ([]*MappedReader, error) {

	result := []*MappedReader{}
	file_offset := segment_start
	remaining := segment_length

	for _, run := range runs {
		if remaining <= 0 {
			break
		}

		length, ok := checkedMul(run.Length, ntfs.ClusterSize)
		if !ok {
			return nil, &InvalidDataRunError{Position: 0}
		}
		if length > remaining {
			length = remaining
		}

		mapped := &MappedReader{
			FileOffset: file_offset,
			Length:     length,
			IsSparse:   run.IsSparse,
			Reader:     ntfs.DiskReader,
		}
		if run.IsSparse {
			mapped.Reader = &NullReader{}
		} else {
			target, ok := checkedMul(run.LCN, ntfs.ClusterSize)
			if !ok {
				return nil, &InvalidDataRunError{Position: 0}
			}
			mapped.TargetOffset = target
		}

		result = append(result, mapped)
		file_offset += length
		remaining -= length
	}

	return result, nil
}

// Produce the mapped ranges covering this attribute's VCN segment.
// actual_size and initialized_size are the stream wide sizes, already
// reduced by the segments before this one. Returns the ranges and the
// number of stream bytes they consumed.
func (self *NTFS_ATTRIBUTE) segmentReaders(
	ntfs *NTFSContext,
	actual_size int64,
	initialized_size int64) ([]*MappedReader, int64, error) {

	// Resident values are served straight from the record buffer.
	if self.IsResident() {
		value, err := self.ResidentBytes()
		if err != nil {
			return nil, 0, err
		}

		return []*MappedReader{{
			FileOffset: 0,
			Length:     int64(len(value)),
			Reader:     bytes.NewReader(value),
		}}, int64(len(value)), nil
	}

	if self.Flags().IsCompressed() || self.Flags().IsEncrypted() ||
		self.Compression_unit_size() != 0 {
		return nil, 0, UnsupportedCompressionError
	}

	start, ok := checkedMul(self.Runlist_vcn_start(), ntfs.ClusterSize)
	if !ok {
		return nil, 0, &AttributeOutOfBoundsError{
			Position: self.Position()}
	}

	end, ok := checkedMul(self.Runlist_vcn_end()+1, ntfs.ClusterSize)
	if !ok {
		return nil, 0, &AttributeOutOfBoundsError{
			Position: self.Position()}
	}

	// The segment covers [start, end) but never more than the
	// stream's remaining data.
	length := end - start
	if length > actual_size {
		length = actual_size
	}
	if length <= 0 {
		return nil, 0, nil
	}

	runs, err := self.RunList(ntfs)
	if err != nil {
		return nil, 0, err
	}

	// Reads between initialized_size and data size yield zeros: trim
	// the mapping to the initialized prefix and splice a sparse pad
	// for the tail.
	if length > initialized_size {
		mapped, err := mapRuns(ntfs, runs, start, initialized_size)
		if err != nil {
			return nil, 0, err
		}

		mapped = append(mapped, &MappedReader{
			FileOffset: start + initialized_size,
			Length:     length - initialized_size,
			IsSparse:   true,
			Reader:     &NullReader{},
		})
		return mapped, length, nil
	}

	mapped, err := mapRuns(ntfs, runs, start, length)
	if err != nil {
		return nil, 0, err
	}
	return mapped, length, nil
}

// Open a single attribute's value as a stream without splicing
// sibling VCN segments. Suitable for structural attributes that are
// always self contained. File data should go through OpenStream.
func (self *NTFS_ATTRIBUTE) Data(ntfs *NTFSContext) (*StreamReader, error) {
	if self.IsResident() {
		value, err := self.ResidentBytes()
		if err != nil {
			return nil, err
		}
		return NewResidentStream(value), nil
	}

	actual_size := self.Actual_size()
	initialized_size := self.Initialized_size()
	if initialized_size > actual_size {
		initialized_size = actual_size
	}

	mapped, _, err := self.segmentReaders(
		ntfs, actual_size, initialized_size)
	if err != nil {
		return nil, err
	}

	return NewStreamReader(NewRangeReader(mapped), actual_size), nil
}

// Open the complete logical stream of (attr_type, name) under the
// given base record. A stream may be spliced from several VCN
// segments recorded in an attribute list; the segments must tile the
// VCN space exactly. Name matching is case insensitive via $UpCase.
func OpenStream(
	ntfs *NTFSContext,
	mft_entry *MFT_ENTRY,
	attr_type uint32,
	name string) (*StreamReader, error) {

	attrs, err := mft_entry.EnumerateAttributes(ntfs)
	if err != nil {
		return nil, err
	}

	segments := []*NTFS_ATTRIBUTE{}
	for _, attr := range attrs {
		if attr.TypeValue() == attr_type &&
			ntfs.NamesEqual(attr.Name(), name) {
			segments = append(segments, attr)
		}
	}

	if len(segments) == 0 {
		return nil, NotFoundError
	}

	first := segments[0]
	if first.IsResident() {
		value, err := first.ResidentBytes()
		if err != nil {
			return nil, err
		}
		return NewResidentStream(value), nil
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Runlist_vcn_start() <
			segments[j].Runlist_vcn_start()
	})

	// Stream wide sizes live on the first segment only.
	first = segments[0]
	actual_size := first.Actual_size()
	initialized_size := first.Initialized_size()
	if initialized_size > actual_size {
		initialized_size = actual_size
	}

	// The segments' VCN ranges must tile the stream without gaps or
	// overlaps.
	expected_vcn := int64(0)
	for _, segment := range segments {
		if segment.IsResident() {
			return nil, &InvalidAttributeListError{
				Reason:   "Resident segment in a spliced stream",
				Position: segment.Position(),
			}
		}
		if segment.Runlist_vcn_start() != expected_vcn {
			return nil, &InvalidAttributeListError{
				Reason:   "Segment VCN ranges do not tile",
				Position: segment.Position(),
			}
		}
		expected_vcn = segment.Runlist_vcn_end() + 1
	}

	runs := []*MappedReader{}
	remaining_actual := actual_size
	remaining_initialized := initialized_size

	for _, segment := range segments {
		mapped, consumed, err := segment.segmentReaders(
			ntfs, remaining_actual, remaining_initialized)
		if err != nil {
			return nil, err
		}

		runs = append(runs, mapped...)
		remaining_actual -= consumed
		remaining_initialized -= consumed
		if remaining_initialized < 0 {
			remaining_initialized = 0
		}
	}

	return NewStreamReader(NewRangeReader(runs), actual_size), nil
}
