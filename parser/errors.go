package parser

import (
	"errors"
	"fmt"
)

// The error taxonomy of the library. Malformed on disk data never
// panics - every invariant violation surfaces as one of these,
// carrying the byte position where it was detected so callers can
// correlate with a hex dump of the image.

var (
	NotFoundError               = errors.New("Not found")
	SeekOutOfBoundsError        = errors.New("Seek out of bounds")
	AttributeListCycleError     = errors.New("Attribute list cycle")
	UnsupportedCompressionError = errors.New(
		"Compressed or encrypted attributes are not supported")
	ShortReadError = errors.New("ShortReadError")
)

type InvalidBootSectorError struct {
	Reason string
}

func (self *InvalidBootSectorError) Error() string {
	return fmt.Sprintf("Invalid boot sector: %s", self.Reason)
}

type UnsupportedSectorSizeError struct {
	Size int64
}

func (self *UnsupportedSectorSizeError) Error() string {
	return fmt.Sprintf("Unsupported sector size %d", self.Size)
}

type UnsupportedClusterSizeError struct {
	Size int64
}

func (self *UnsupportedClusterSizeError) Error() string {
	return fmt.Sprintf("Unsupported cluster size %d", self.Size)
}

type UnsupportedRecordSizeError struct {
	Size int64
}

func (self *UnsupportedRecordSizeError) Error() string {
	return fmt.Sprintf("Unsupported record size %d", self.Size)
}

type InvalidRecordSignatureError struct {
	Expected string
	Found    string
	Position int64
}

func (self *InvalidRecordSignatureError) Error() string {
	return fmt.Sprintf(
		"Invalid record signature at %#x: expected %q found %q",
		self.Position, self.Expected, self.Found)
}

type InvalidUpdateSequenceError struct {
	Position int64
}

func (self *InvalidUpdateSequenceError) Error() string {
	return fmt.Sprintf("Invalid update sequence at %#x", self.Position)
}

type AttributeOutOfBoundsError struct {
	Position int64
}

func (self *AttributeOutOfBoundsError) Error() string {
	return fmt.Sprintf("Attribute out of bounds at %#x", self.Position)
}

type UnknownAttributeTypeError struct {
	Value    uint32
	Position int64
}

func (self *UnknownAttributeTypeError) Error() string {
	return fmt.Sprintf("Unknown attribute type %#x at %#x",
		self.Value, self.Position)
}

type InvalidAttributeListError struct {
	Reason   string
	Position int64
}

func (self *InvalidAttributeListError) Error() string {
	return fmt.Sprintf("Invalid attribute list at %#x: %s",
		self.Position, self.Reason)
}

type SequenceMismatchError struct {
	Expected  uint16
	Found     uint16
	Reference uint64
}

func (self *SequenceMismatchError) Error() string {
	return fmt.Sprintf(
		"Sequence mismatch for reference %#x: expected %d found %d",
		self.Reference, self.Expected, self.Found)
}

type InvalidDataRunError struct {
	Position int64
}

func (self *InvalidDataRunError) Error() string {
	return fmt.Sprintf("Invalid data run at %#x", self.Position)
}

type UnsupportedCollationRuleError struct {
	Rule uint32
}

func (self *UnsupportedCollationRuleError) Error() string {
	return fmt.Sprintf("Unsupported collation rule %#x", self.Rule)
}

type InvalidUpcaseTableSizeError struct {
	Expected int64
	Actual   int64
}

func (self *InvalidUpcaseTableSizeError) Error() string {
	return fmt.Sprintf(
		"$UpCase table should be %d bytes but has %d",
		self.Expected, self.Actual)
}
