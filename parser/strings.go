package parser

import (
	"io"
	"unicode/utf16"
)

// On disk strings are UTF-16LE without a terminator.

func UTF16ToString(buf []byte) string {
	units := make([]uint16, len(buf)/2)
	for i := range units {
		units[i] = u16(buf[i*2:])
	}
	return string(utf16.Decode(units))
}

func UTF16Units(buf []byte) []uint16 {
	units := make([]uint16, len(buf)/2)
	for i := range units {
		units[i] = u16(buf[i*2:])
	}
	return units
}

func StringToUTF16(in string) []uint16 {
	return utf16.Encode([]rune(in))
}

func ParseUTF16String(reader io.ReaderAt, offset int64, length int64) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, length)
	n, _ := reader.ReadAt(buf, offset)
	return UTF16ToString(buf[:n-n%2])
}
