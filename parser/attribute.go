package parser

import (
	"fmt"
)

const (
	ATTR_TYPE_STANDARD_INFORMATION = 16
	ATTR_TYPE_ATTRIBUTE_LIST       = 32
	ATTR_TYPE_FILE_NAME            = 48
	ATTR_TYPE_OBJECT_ID            = 64
	ATTR_TYPE_SECURITY_DESCRIPTOR  = 80
	ATTR_TYPE_VOLUME_NAME          = 96
	ATTR_TYPE_VOLUME_INFORMATION   = 112
	ATTR_TYPE_DATA                 = 128
	ATTR_TYPE_INDEX_ROOT           = 144
	ATTR_TYPE_INDEX_ALLOCATION     = 160
	ATTR_TYPE_BITMAP               = 176
	ATTR_TYPE_REPARSE_POINT        = 192
	ATTR_TYPE_EA_INFORMATION       = 208
	ATTR_TYPE_EA                   = 224
	ATTR_TYPE_LOGGED_UTILITY_STREAM = 256
	ATTR_TYPE_END                  = 0xFFFFFFFF

	// Minimum header sizes for the two attribute variants.
	ATTR_RESIDENT_HEADER_SIZE     = 24
	ATTR_NON_RESIDENT_HEADER_SIZE = 64
)

func attrTypeName(value uint32) string {
	switch value {
	case ATTR_TYPE_STANDARD_INFORMATION:
		return "$STANDARD_INFORMATION"
	case ATTR_TYPE_ATTRIBUTE_LIST:
		return "$ATTRIBUTE_LIST"
	case ATTR_TYPE_FILE_NAME:
		return "$FILE_NAME"
	case ATTR_TYPE_OBJECT_ID:
		return "$OBJECT_ID"
	case ATTR_TYPE_SECURITY_DESCRIPTOR:
		return "$SECURITY_DESCRIPTOR"
	case ATTR_TYPE_VOLUME_NAME:
		return "$VOLUME_NAME"
	case ATTR_TYPE_VOLUME_INFORMATION:
		return "$VOLUME_INFORMATION"
	case ATTR_TYPE_DATA:
		return "$DATA"
	case ATTR_TYPE_INDEX_ROOT:
		return "$INDEX_ROOT"
	case ATTR_TYPE_INDEX_ALLOCATION:
		return "$INDEX_ALLOCATION"
	case ATTR_TYPE_BITMAP:
		return "$BITMAP"
	case ATTR_TYPE_REPARSE_POINT:
		return "$REPARSE_POINT"
	case ATTR_TYPE_EA_INFORMATION:
		return "$EA_INFORMATION"
	case ATTR_TYPE_EA:
		return "$EA"
	case ATTR_TYPE_LOGGED_UTILITY_STREAM:
		return "$LOGGED_UTILITY_STREAM"
	}
	return "Unknown"
}

func isKnownAttrType(value uint32) bool {
	return attrTypeName(value) != "Unknown"
}

type EntryFlags uint64

func (self EntryFlags) IsCompressed() bool {
	return self&1 != 0
}

func (self EntryFlags) IsEncrypted() bool {
	return self&(1<<14) != 0
}

func (self EntryFlags) IsSparse() bool {
	return self&(1<<15) != 0
}

func (self EntryFlags) DebugString() string {
	names := ""
	if self.IsCompressed() {
		names += "COMPRESSED "
	}
	if self.IsEncrypted() {
		names += "ENCRYPTED "
	}
	if self.IsSparse() {
		names += "SPARSE "
	}
	return fmt.Sprintf("%d (%v)", uint64(self), names)
}

// An attribute header inside a fixed up file record. The header is a
// window over the owning record's buffer - resident values are
// sliced straight out of it.
type NTFS_ATTRIBUTE struct {
	entry  *MFT_ENTRY
	Offset int64
}

// Byte position of this header, for error reporting. It is relative
// to the same origin as the owning record's DiskOffset.
func (self *NTFS_ATTRIBUTE) Position() int64 {
	return self.entry.DiskOffset + self.Offset
}

func (self *NTFS_ATTRIBUTE) Owner() *MFT_ENTRY {
	return self.entry
}

func (self *NTFS_ATTRIBUTE) field16(rel int64) uint16 {
	return u16(self.entry.buffer[self.Offset+rel:])
}

func (self *NTFS_ATTRIBUTE) field32(rel int64) uint32 {
	return u32(self.entry.buffer[self.Offset+rel:])
}

func (self *NTFS_ATTRIBUTE) field64(rel int64) uint64 {
	return u64(self.entry.buffer[self.Offset+rel:])
}

func (self *NTFS_ATTRIBUTE) Type() *Enumeration {
	value := self.field32(0)
	return &Enumeration{Value: uint64(value), Name: attrTypeName(value)}
}

func (self *NTFS_ATTRIBUTE) TypeValue() uint32 {
	return self.field32(0)
}

func (self *NTFS_ATTRIBUTE) Length() int64 {
	return int64(self.field32(4))
}

func (self *NTFS_ATTRIBUTE) IsResident() bool {
	return self.entry.buffer[self.Offset+8] == 0
}

func (self *NTFS_ATTRIBUTE) name_length() int64 {
	return int64(self.entry.buffer[self.Offset+9])
}

func (self *NTFS_ATTRIBUTE) name_offset() int64 {
	return int64(self.field16(10))
}

func (self *NTFS_ATTRIBUTE) Flags() EntryFlags {
	return EntryFlags(self.field16(12))
}

// The attribute instance, unique within its record.
func (self *NTFS_ATTRIBUTE) Attribute_id() uint16 {
	return self.field16(14)
}

func (self *NTFS_ATTRIBUTE) Name() string {
	length := self.name_length() * 2
	start := self.Offset + self.name_offset()
	if length == 0 ||
		start+length > int64(len(self.entry.buffer)) {
		return ""
	}
	return UTF16ToString(self.entry.buffer[start : start+length])
}

// Resident variant fields.

func (self *NTFS_ATTRIBUTE) Content_size() int64 {
	return int64(self.field32(16))
}

func (self *NTFS_ATTRIBUTE) Content_offset() int64 {
	return int64(self.field16(20))
}

// Non resident variant fields.

func (self *NTFS_ATTRIBUTE) Runlist_vcn_start() int64 {
	return int64(self.field64(16))
}

func (self *NTFS_ATTRIBUTE) Runlist_vcn_end() int64 {
	return int64(self.field64(24))
}

func (self *NTFS_ATTRIBUTE) Runlist_offset() int64 {
	return int64(self.field16(32))
}

func (self *NTFS_ATTRIBUTE) Compression_unit_size() uint16 {
	return self.field16(34)
}

func (self *NTFS_ATTRIBUTE) Allocated_size() int64 {
	return int64(self.field64(40))
}

func (self *NTFS_ATTRIBUTE) Actual_size() int64 {
	return int64(self.field64(48))
}

func (self *NTFS_ATTRIBUTE) Initialized_size() int64 {
	return int64(self.field64(56))
}

func (self *NTFS_ATTRIBUTE) DataSize() int64 {
	if self.IsResident() {
		return self.Content_size()
	}
	return self.Actual_size()
}

// Validate the header against the used region of the owning record.
// The caller has already checked that the 8 byte prefix is in bounds.
func (self *NTFS_ATTRIBUTE) validate(used int64) error {
	length := self.Length()
	position := self.Position()

	if length == 0 || length%8 != 0 {
		return &AttributeOutOfBoundsError{Position: position}
	}

	end, ok := checkedAdd(self.Offset, length)
	if !ok || end > used {
		return &AttributeOutOfBoundsError{Position: position}
	}

	if !isKnownAttrType(self.TypeValue()) {
		return &UnknownAttributeTypeError{
			Value:    self.TypeValue(),
			Position: position,
		}
	}

	if self.name_length() > 0 {
		name_end, ok := checkedAdd(
			self.name_offset(), self.name_length()*2)
		if !ok || name_end > length {
			return &AttributeOutOfBoundsError{Position: position}
		}
	}

	if self.IsResident() {
		if length < ATTR_RESIDENT_HEADER_SIZE {
			return &AttributeOutOfBoundsError{Position: position}
		}

		value_end, ok := checkedAdd(
			self.Content_offset(), self.Content_size())
		if !ok || value_end > length {
			return &AttributeOutOfBoundsError{Position: position}
		}

		abs_end, ok := checkedAdd(self.Offset, value_end)
		if !ok || abs_end > used {
			return &AttributeOutOfBoundsError{Position: position}
		}
	} else {
		if length < ATTR_NON_RESIDENT_HEADER_SIZE {
			return &AttributeOutOfBoundsError{Position: position}
		}

		if self.Runlist_offset() > length {
			return &AttributeOutOfBoundsError{Position: position}
		}

		// An empty attribute has an end VCN below its start VCN.
		if self.Actual_size() > 0 &&
			self.Runlist_vcn_start() > self.Runlist_vcn_end() {
			return &AttributeOutOfBoundsError{Position: position}
		}
	}

	return nil
}

// The raw bytes of a resident attribute value, sliced out of the
// record buffer.
func (self *NTFS_ATTRIBUTE) ResidentBytes() ([]byte, error) {
	if !self.IsResident() {
		return nil, &AttributeOutOfBoundsError{Position: self.Position()}
	}
	start := self.Offset + self.Content_offset()
	end := start + self.Content_size()
	if start < 0 || end > int64(len(self.entry.buffer)) {
		return nil, &AttributeOutOfBoundsError{Position: self.Position()}
	}
	return self.entry.buffer[start:end], nil
}

// The mapping pairs slice of a non resident attribute.
func (self *NTFS_ATTRIBUTE) mappingPairs() ([]byte, error) {
	if self.IsResident() {
		return nil, &AttributeOutOfBoundsError{Position: self.Position()}
	}
	start := self.Offset + self.Runlist_offset()
	end := self.Offset + self.Length()
	if start > end || end > int64(len(self.entry.buffer)) {
		return nil, &AttributeOutOfBoundsError{Position: self.Position()}
	}
	return self.entry.buffer[start:end], nil
}

// Decode the attribute's mapping pairs into runs relative to the
// segment's first VCN.
func (self *NTFS_ATTRIBUTE) RunList(ntfs *NTFSContext) ([]Run, error) {
	pairs, err := self.mappingPairs()
	if err != nil {
		return nil, err
	}
	return ParseRunList(
		pairs,
		self.Position()+self.Runlist_offset(),
		ntfs.TotalClusters)
}

// Read the whole attribute value into memory, capped at max_size.
// Used for small structural values (attribute lists, index roots,
// $UpCase). The data stream path goes through OpenStream instead.
func (self *NTFS_ATTRIBUTE) ValueBytes(
	ntfs *NTFSContext, max_size int64) ([]byte, error) {
	if self.IsResident() {
		buf, err := self.ResidentBytes()
		if err != nil {
			return nil, err
		}
		if int64(len(buf)) > max_size {
			buf = buf[:max_size]
		}
		result := make([]byte, len(buf))
		copy(result, buf)
		return result, nil
	}

	stream, err := self.Data(ntfs)
	if err != nil {
		return nil, err
	}

	size := CapInt64(stream.Size(), max_size)
	result := make([]byte, size)
	err = stream.ReadFullAt(result, 0)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (self *NTFS_ATTRIBUTE) DebugString() string {
	result := fmt.Sprintf("struct NTFS_ATTRIBUTE @ %#x:\n", self.Position())
	result += fmt.Sprintf("  Type: %v\n", self.Type().DebugString())
	result += fmt.Sprintf("  Length: %#0x\n", self.Length())
	result += fmt.Sprintf("  Resident: %v\n", self.IsResident())
	result += fmt.Sprintf("  Name: %v\n", self.Name())
	result += fmt.Sprintf("  Flags: %v\n", self.Flags().DebugString())
	result += fmt.Sprintf("  Attribute_id: %#0x\n", self.Attribute_id())
	if self.IsResident() {
		result += fmt.Sprintf("  Content_size: %#0x\n", self.Content_size())
		result += fmt.Sprintf("  Content_offset: %#0x\n", self.Content_offset())
	} else {
		result += fmt.Sprintf("  Runlist_vcn_start: %#0x\n", self.Runlist_vcn_start())
		result += fmt.Sprintf("  Runlist_vcn_end: %#0x\n", self.Runlist_vcn_end())
		result += fmt.Sprintf("  Runlist_offset: %#0x\n", self.Runlist_offset())
		result += fmt.Sprintf("  Allocated_size: %#0x\n", self.Allocated_size())
		result += fmt.Sprintf("  Actual_size: %#0x\n", self.Actual_size())
		result += fmt.Sprintf("  Initialized_size: %#0x\n", self.Initialized_size())
	}
	return result
}

const (
	// Attribute list entries are fixed at 26 bytes before the name.
	ATTR_LIST_ENTRY_HEADER_SIZE = 26

	// Cap on the size of an attribute list value we will buffer.
	MAX_ATTRIBUTE_LIST_SIZE = 1024 * 1024
)

// One entry of a $ATTRIBUTE_LIST value. The buffer is the whole list
// value read into memory.
type ATTRIBUTE_LIST_ENTRY struct {
	buffer []byte
	Offset int64

	// Position of the list value on the volume for error reporting.
	list_position int64
}

func (self *ATTRIBUTE_LIST_ENTRY) Position() int64 {
	return self.list_position + self.Offset
}

func (self *ATTRIBUTE_LIST_ENTRY) Type() uint32 {
	return u32(self.buffer[self.Offset:])
}

func (self *ATTRIBUTE_LIST_ENTRY) Length() int64 {
	return int64(u16(self.buffer[self.Offset+4:]))
}

func (self *ATTRIBUTE_LIST_ENTRY) name_length() int64 {
	return int64(self.buffer[self.Offset+6])
}

func (self *ATTRIBUTE_LIST_ENTRY) name_offset() int64 {
	return int64(self.buffer[self.Offset+7])
}

func (self *ATTRIBUTE_LIST_ENTRY) StartingVCN() int64 {
	return int64(u64(self.buffer[self.Offset+8:]))
}

func (self *ATTRIBUTE_LIST_ENTRY) Base_reference() FileReference {
	return FileReference(u64(self.buffer[self.Offset+16:]))
}

func (self *ATTRIBUTE_LIST_ENTRY) Attribute_id() uint16 {
	return u16(self.buffer[self.Offset+24:])
}

func (self *ATTRIBUTE_LIST_ENTRY) Name() string {
	length := self.name_length() * 2
	start := self.Offset + self.name_offset()
	if length == 0 || start+length > int64(len(self.buffer)) {
		return ""
	}
	return UTF16ToString(self.buffer[start : start+length])
}

// An entry is well formed only when its declared length keeps it
// wholly inside the list value.
func (self *ATTRIBUTE_LIST_ENTRY) validate() error {
	if self.Offset+ATTR_LIST_ENTRY_HEADER_SIZE > int64(len(self.buffer)) {
		return &InvalidAttributeListError{
			Reason:   "Truncated entry",
			Position: self.Position(),
		}
	}

	length := self.Length()
	if length < ATTR_LIST_ENTRY_HEADER_SIZE ||
		self.Offset+length > int64(len(self.buffer)) {
		return &InvalidAttributeListError{
			Reason:   "Entry length out of bounds",
			Position: self.Position(),
		}
	}

	if self.name_length() > 0 &&
		self.name_offset()+self.name_length()*2 > length {
		return &InvalidAttributeListError{
			Reason:   "Entry name out of bounds",
			Position: self.Position(),
		}
	}

	return nil
}
