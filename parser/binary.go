package parser

import (
	"encoding/binary"
	"io"
)

// Low level little endian parsers. These never fail - short reads
// leave the missing bytes zero. Structural validation happens at the
// record and attribute level where we can attach a position to the
// error.

func ParseUint8(reader io.ReaderAt, offset int64) uint8 {
	var buf [1]byte
	_, _ = reader.ReadAt(buf[:], offset)
	return buf[0]
}

func ParseInt8(reader io.ReaderAt, offset int64) int8 {
	return int8(ParseUint8(reader, offset))
}

func ParseUint16(reader io.ReaderAt, offset int64) uint16 {
	var buf [2]byte
	_, _ = reader.ReadAt(buf[:], offset)
	return binary.LittleEndian.Uint16(buf[:])
}

func ParseUint32(reader io.ReaderAt, offset int64) uint32 {
	var buf [4]byte
	_, _ = reader.ReadAt(buf[:], offset)
	return binary.LittleEndian.Uint32(buf[:])
}

func ParseUint64(reader io.ReaderAt, offset int64) uint64 {
	var buf [8]byte
	_, _ = reader.ReadAt(buf[:], offset)
	return binary.LittleEndian.Uint64(buf[:])
}

func ParseInt64(reader io.ReaderAt, offset int64) int64 {
	return int64(ParseUint64(reader, offset))
}

func ParseSignature(reader io.ReaderAt, offset int64, length int) string {
	buf := make([]byte, length)
	_, _ = reader.ReadAt(buf, offset)
	return string(buf)
}

// An Enumeration pairs the raw on disk value with its symbolic name.
type Enumeration struct {
	Value uint64
	Name  string
}

func (self Enumeration) DebugString() string {
	return self.Name
}

// Slice variants for code that already holds a fixed up buffer.

func u16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func u32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func u64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// Checked arithmetic over untrusted on disk sizes. The bool result is
// false on overflow or on negative operands - callers convert that
// into the typed error appropriate for their layer.

func checkedMul(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	res := a * b
	if res/a != b {
		return 0, false
	}
	return res, true
}

func checkedAdd(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	res := a + b
	if res < a {
		return 0, false
	}
	return res, true
}

func isPowerOfTwo(v int64) bool {
	return v > 0 && v&(v-1) == 0
}
