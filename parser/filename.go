package parser

import (
	"fmt"
)

// Structured values carried by metadata attributes. Each is a window
// over the attribute's value bytes read into memory.

const (
	FILE_NAME_HEADER_SIZE            = 0x42
	STANDARD_INFORMATION_MIN_SIZE    = 0x30
	VOLUME_INFORMATION_VALUE_SIZE    = 0x0C
	OBJECT_ID_MIN_SIZE               = 0x10

	FILE_NAMESPACE_POSIX         = 0
	FILE_NAMESPACE_WIN32         = 1
	FILE_NAMESPACE_DOS           = 2
	FILE_NAMESPACE_WIN32_AND_DOS = 3
)

func namespaceName(value uint8) string {
	switch value {
	case FILE_NAMESPACE_POSIX:
		return "POSIX"
	case FILE_NAMESPACE_WIN32:
		return "Win32"
	case FILE_NAMESPACE_DOS:
		return "DOS"
	case FILE_NAMESPACE_WIN32_AND_DOS:
		return "DOS+Win32"
	}
	return "Unknown"
}

// Preference order when a record carries several names: the Win32
// long name first, then the combined Win32+DOS name, the DOS short
// name, and POSIX last. Lower ranks win.
func namespaceRank(namespace string) int {
	switch namespace {
	case "Win32":
		return 0
	case "DOS+Win32":
		return 1
	case "DOS":
		return 2
	case "POSIX":
		return 3
	}
	return 4
}

// The $FILE_NAME attribute value. Also used as the key of $I30
// filename indexes.
type FILE_NAME struct {
	buffer []byte

	// Position on the volume for error reporting.
	position int64
}

func NewFileName(buffer []byte, position int64) (*FILE_NAME, error) {
	STATS.Inc_FILE_NAME()

	self := &FILE_NAME{buffer: buffer, position: position}
	if int64(len(buffer)) < FILE_NAME_HEADER_SIZE ||
		int64(len(buffer)) < self.nameEnd() {
		return nil, &AttributeOutOfBoundsError{Position: position}
	}
	return self, nil
}

func (self *FILE_NAME) MftReference() FileReference {
	return FileReference(u64(self.buffer))
}

func (self *FILE_NAME) Created() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x08:])
}

func (self *FILE_NAME) File_modified() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x10:])
}

func (self *FILE_NAME) Mft_modified() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x18:])
}

func (self *FILE_NAME) File_accessed() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x20:])
}

func (self *FILE_NAME) AllocatedSize() int64 {
	return int64(u64(self.buffer[0x28:]))
}

func (self *FILE_NAME) RealSize() int64 {
	return int64(u64(self.buffer[0x30:]))
}

func (self *FILE_NAME) FileFlags() uint32 {
	return u32(self.buffer[0x38:])
}

func (self *FILE_NAME) name_length() int64 {
	return int64(self.buffer[0x40])
}

func (self *FILE_NAME) nameEnd() int64 {
	return FILE_NAME_HEADER_SIZE + self.name_length()*2
}

func (self *FILE_NAME) NameType() *Enumeration {
	value := self.buffer[0x41]
	return &Enumeration{
		Value: uint64(value),
		Name:  namespaceName(value),
	}
}

func (self *FILE_NAME) Name() string {
	end := self.nameEnd()
	if end > int64(len(self.buffer)) {
		return ""
	}
	return UTF16ToString(self.buffer[FILE_NAME_HEADER_SIZE:end])
}

// The name as raw UTF-16 units, for collation.
func (self *FILE_NAME) NameUnits() []uint16 {
	end := self.nameEnd()
	if end > int64(len(self.buffer)) {
		return nil
	}
	return UTF16Units(self.buffer[FILE_NAME_HEADER_SIZE:end])
}

func (self *FILE_NAME) DebugString() string {
	return fmt.Sprintf(
		"FILE_NAME %q (%s) parent %v",
		self.Name(), self.NameType().Name, self.MftReference())
}

// The $STANDARD_INFORMATION attribute value.
type STANDARD_INFORMATION struct {
	buffer   []byte
	position int64
}

func NewStandardInformation(buffer []byte, position int64) (
	*STANDARD_INFORMATION, error) {
	STATS.Inc_STANDARD_INFORMATION()

	if len(buffer) < STANDARD_INFORMATION_MIN_SIZE {
		return nil, &AttributeOutOfBoundsError{Position: position}
	}
	return &STANDARD_INFORMATION{buffer: buffer, position: position}, nil
}

func (self *STANDARD_INFORMATION) Create_time() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x00:])
}

func (self *STANDARD_INFORMATION) File_altered_time() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x08:])
}

func (self *STANDARD_INFORMATION) Mft_altered_time() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x10:])
}

func (self *STANDARD_INFORMATION) File_accessed_time() *WinFileTime {
	return ParseWinFileTime(self.buffer[0x18:])
}

func (self *STANDARD_INFORMATION) FileFlags() uint32 {
	return u32(self.buffer[0x20:])
}

// The $VOLUME_NAME attribute value: the label as a bare UTF-16LE
// string.
type VOLUME_NAME struct {
	buffer []byte
}

func (self *VOLUME_NAME) Name() string {
	return UTF16ToString(self.buffer)
}

// The $VOLUME_INFORMATION attribute value.
type VOLUME_INFORMATION struct {
	buffer   []byte
	position int64
}

func NewVolumeInformation(buffer []byte, position int64) (
	*VOLUME_INFORMATION, error) {
	if len(buffer) < VOLUME_INFORMATION_VALUE_SIZE {
		return nil, &AttributeOutOfBoundsError{Position: position}
	}
	return &VOLUME_INFORMATION{buffer: buffer, position: position}, nil
}

func (self *VOLUME_INFORMATION) MajorVersion() uint8 {
	return self.buffer[0x08]
}

func (self *VOLUME_INFORMATION) MinorVersion() uint8 {
	return self.buffer[0x09]
}

func (self *VOLUME_INFORMATION) VolumeFlags() uint16 {
	return u16(self.buffer[0x0A:])
}

func (self *VOLUME_INFORMATION) IsDirty() bool {
	return self.VolumeFlags()&1 != 0
}

// The $OBJECT_ID attribute value. Only the object id itself is
// mandatory.
type OBJECT_ID struct {
	buffer   []byte
	position int64
}

func NewObjectId(buffer []byte, position int64) (*OBJECT_ID, error) {
	if len(buffer) < OBJECT_ID_MIN_SIZE {
		return nil, &AttributeOutOfBoundsError{Position: position}
	}
	return &OBJECT_ID{buffer: buffer, position: position}, nil
}

func (self *OBJECT_ID) ObjectId() *GUID {
	return ParseGUID(self.buffer[0x00:0x10])
}

// Typed readers on the attribute header for the structured values
// above.

func (self *NTFS_ATTRIBUTE) FileName(ntfs *NTFSContext) (
	*FILE_NAME, error) {
	value, err := self.ValueBytes(ntfs, MAX_RECORD_SIZE)
	if err != nil {
		return nil, err
	}
	return NewFileName(value, self.Position())
}

func (self *NTFS_ATTRIBUTE) StandardInformation(ntfs *NTFSContext) (
	*STANDARD_INFORMATION, error) {
	value, err := self.ValueBytes(ntfs, MAX_RECORD_SIZE)
	if err != nil {
		return nil, err
	}
	return NewStandardInformation(value, self.Position())
}

func (self *NTFS_ATTRIBUTE) VolumeName(ntfs *NTFSContext) (
	*VOLUME_NAME, error) {
	value, err := self.ValueBytes(ntfs, MAX_RECORD_SIZE)
	if err != nil {
		return nil, err
	}
	return &VOLUME_NAME{buffer: value}, nil
}

func (self *NTFS_ATTRIBUTE) VolumeInformation(ntfs *NTFSContext) (
	*VOLUME_INFORMATION, error) {
	value, err := self.ValueBytes(ntfs, MAX_RECORD_SIZE)
	if err != nil {
		return nil, err
	}
	return NewVolumeInformation(value, self.Position())
}

func (self *NTFS_ATTRIBUTE) ObjectId(ntfs *NTFSContext) (
	*OBJECT_ID, error) {
	value, err := self.ValueBytes(ntfs, MAX_RECORD_SIZE)
	if err != nil {
		return nil, err
	}
	return NewObjectId(value, self.Position())
}
