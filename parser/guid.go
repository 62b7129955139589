package parser

import (
	"fmt"
)

// A GUID in its mixed endian on disk layout: the first three groups
// little endian, the last eight bytes as stored.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func ParseGUID(buf []byte) *GUID {
	if len(buf) < 16 {
		return &GUID{}
	}

	self := &GUID{
		Data1: u32(buf[0:]),
		Data2: u16(buf[4:]),
		Data3: u16(buf[6:]),
	}
	copy(self.Data4[:], buf[8:16])
	return self
}

func (self *GUID) String() string {
	return fmt.Sprintf(
		"{%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x}",
		self.Data1, self.Data2, self.Data3,
		self.Data4[0], self.Data4[1],
		self.Data4[2], self.Data4[3], self.Data4[4],
		self.Data4[5], self.Data4[6], self.Data4[7])
}
