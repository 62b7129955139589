package parser

import (
	"fmt"
)

const (
	MFT_RECORD_SIGNATURE = "FILE"

	// Well known MFT records.
	MFT_RECORD      = 0
	ROOT_DIR_RECORD = 5
	UPCASE_RECORD   = 10

	// Safety valve for degenerate attribute lists.
	MAX_ATTRIBUTE_LIST_ENTRIES = 65536

	RECORD_FLAG_IN_USE    = 1 << 0
	RECORD_FLAG_DIRECTORY = 1 << 1
)

// A file record loaded from the MFT and fixed up. Immutable after
// load - attributes are windows over this buffer.
type MFT_ENTRY struct {
	buffer []byte

	// Byte position of the record, for error reporting: within the
	// $MFT stream for records loaded through GetMFT, on the volume for
	// the copy of record 0 read while bootstrapping.
	DiskOffset int64
}

// Instantiate an MFT_ENTRY over an already fixed up buffer.
func NewMFTEntry(buffer []byte, disk_offset int64) (*MFT_ENTRY, error) {
	STATS.Inc_MFT_ENTRY()

	self := &MFT_ENTRY{buffer: buffer, DiskOffset: disk_offset}
	if len(buffer) < 0x30 {
		return nil, &AttributeOutOfBoundsError{Position: disk_offset}
	}

	used := self.Used_size()
	allocated := self.Allocated_size()
	if used > allocated || allocated > int64(len(buffer)) {
		return nil, &AttributeOutOfBoundsError{Position: disk_offset}
	}

	return self, nil
}

func (self *MFT_ENTRY) Sequence_value() uint16 {
	return u16(self.buffer[0x10:])
}

func (self *MFT_ENTRY) Link_count() uint16 {
	return u16(self.buffer[0x12:])
}

func (self *MFT_ENTRY) Attribute_offset() int64 {
	return int64(u16(self.buffer[0x14:]))
}

func (self *MFT_ENTRY) RecordFlags() uint16 {
	return u16(self.buffer[0x16:])
}

func (self *MFT_ENTRY) IsInUse() bool {
	return self.RecordFlags()&RECORD_FLAG_IN_USE != 0
}

func (self *MFT_ENTRY) IsDir() bool {
	return self.RecordFlags()&RECORD_FLAG_DIRECTORY != 0
}

func (self *MFT_ENTRY) Used_size() int64 {
	return int64(u32(self.buffer[0x18:]))
}

func (self *MFT_ENTRY) Allocated_size() int64 {
	return int64(u32(self.buffer[0x1C:]))
}

// Zero when this record is itself a base record.
func (self *MFT_ENTRY) Base_record_reference() FileReference {
	return FileReference(u64(self.buffer[0x20:]))
}

func (self *MFT_ENTRY) Next_attribute_id() uint16 {
	return u16(self.buffer[0x28:])
}

func (self *MFT_ENTRY) Record_number() uint32 {
	return u32(self.buffer[0x2C:])
}

func (self *MFT_ENTRY) Reference() FileReference {
	return NewFileReference(
		uint64(self.Record_number()), self.Sequence_value())
}

// Scan the attributes physically present in this record, in disk
// order. Does not follow attribute lists. The returned list_attr is
// the $ATTRIBUTE_LIST header if one was seen.
func (self *MFT_ENTRY) scanAttributes() (
	result []*NTFS_ATTRIBUTE, list_attr *NTFS_ATTRIBUTE, err error) {

	used := self.Used_size()
	offset := self.Attribute_offset()
	if offset < 0x30 || offset > used {
		return nil, nil, &AttributeOutOfBoundsError{
			Position: self.DiskOffset}
	}

	for {
		// The End sentinel needs only its 4 byte type code.
		if offset+4 > used {
			return nil, nil, &AttributeOutOfBoundsError{
				Position: self.DiskOffset + offset}
		}

		if u32(self.buffer[offset:]) == ATTR_TYPE_END {
			break
		}

		if offset+8 > used {
			return nil, nil, &AttributeOutOfBoundsError{
				Position: self.DiskOffset + offset}
		}

		attribute := &NTFS_ATTRIBUTE{entry: self, Offset: offset}
		err := attribute.validate(used)
		if err != nil {
			return nil, nil, err
		}

		if attribute.TypeValue() == ATTR_TYPE_ATTRIBUTE_LIST {
			list_attr = attribute
		}

		result = append(result, attribute)
		offset += attribute.Length()
	}

	return result, list_attr, nil
}

// Enumerate the attributes of the logical file rooted at this base
// record, in disk order. When the record carries a $ATTRIBUTE_LIST
// the enumeration is driven by the list entries, resolving foreign
// references through the MFT.
func (self *MFT_ENTRY) EnumerateAttributes(ntfs *NTFSContext) (
	[]*NTFS_ATTRIBUTE, error) {
	STATS.Inc_MFT_ENTRY_attributes()

	attrs, list_attr, err := self.scanAttributes()
	if err != nil {
		return nil, err
	}

	if list_attr == nil {
		return attrs, nil
	}

	return self.expandAttributeList(ntfs, list_attr)
}

type attrDedupeKey struct {
	attr_type uint32
	name      string
	vcn       int64
}

// List driven enumeration. Each entry names an attribute by (type,
// name, instance) in a referenced record; the referenced record's
// sequence number must match the reference. See the CCXDigger issue
// for why resolution inside a referenced record must never follow
// nested attribute lists.
func (self *MFT_ENTRY) expandAttributeList(
	ntfs *NTFSContext, list_attr *NTFS_ATTRIBUTE) (
	[]*NTFS_ATTRIBUTE, error) {

	data, err := list_attr.ValueBytes(ntfs, MAX_ATTRIBUTE_LIST_SIZE)
	if err != nil {
		return nil, err
	}

	result := []*NTFS_ATTRIBUTE{list_attr}

	// Index into result of the attribute kept for each key.
	seen := make(map[attrDedupeKey]int)

	// Visited set keyed by (record number, attribute instance). A
	// physical attribute named again for a different VCN range means
	// the list loops back over the same storage.
	visited := make(map[uint64]int64)

	offset := int64(0)
	count := 0

	for offset < int64(len(data)) {
		count++
		if count > MAX_ATTRIBUTE_LIST_ENTRIES {
			return nil, AttributeListCycleError
		}

		entry := &ATTRIBUTE_LIST_ENTRY{
			buffer:        data,
			Offset:        offset,
			list_position: list_attr.Position(),
		}
		err := entry.validate()
		if err != nil {
			return nil, err
		}

		attr, err := self.resolveListEntry(ntfs, entry, visited)
		if err != nil {
			return nil, err
		}

		// Duplicate attributes at identical (type, name,
		// lowest_vcn) resolve to the one in the lowest numbered
		// record; within one record the first entry wins.
		key := attrDedupeKey{
			attr_type: entry.Type(),
			name:      entry.Name(),
			vcn:       entry.StartingVCN(),
		}
		idx, pres := seen[key]
		if !pres {
			seen[key] = len(result)
			result = append(result, attr)
		} else if attr.Owner().Record_number() <
			result[idx].Owner().Record_number() {
			result[idx] = attr
		}

		offset += entry.Length()
	}

	return result, nil
}

func (self *MFT_ENTRY) resolveListEntry(
	ntfs *NTFSContext,
	entry *ATTRIBUTE_LIST_ENTRY,
	visited map[uint64]int64) (*NTFS_ATTRIBUTE, error) {

	ref := entry.Base_reference()

	visit_key := ref.RecordNumber()<<16 | uint64(entry.Attribute_id())
	prev_vcn, pres := visited[visit_key]
	if pres && prev_vcn != entry.StartingVCN() {
		return nil, AttributeListCycleError
	}
	visited[visit_key] = entry.StartingVCN()

	target := self
	if ref.RecordNumber() != uint64(self.Record_number()) {
		extension, err := ntfs.GetRecord(ref)
		if err != nil {
			return nil, err
		}

		// Extension records must point back at our base record.
		base_ref := extension.Base_record_reference()
		if base_ref.RecordNumber() != uint64(self.Record_number()) {
			return nil, &InvalidAttributeListError{
				Reason: fmt.Sprintf(
					"Referenced record %d does not extend this file",
					ref.RecordNumber()),
				Position: entry.Position(),
			}
		}

		target = extension
	}

	attr, err := target.GetDirectAttribute(
		entry.Type(), entry.Attribute_id())
	if err != nil {
		return nil, &InvalidAttributeListError{
			Reason: fmt.Sprintf(
				"Attribute type %d id %d missing from record %d",
				entry.Type(), entry.Attribute_id(),
				ref.RecordNumber()),
			Position: entry.Position(),
		}
	}

	return attr, nil
}

// Search this record for an exact attribute by type and instance -
// does not expand attribute lists. This is the only resolution
// allowed from within an attribute list expansion, which breaks the
// indirect recursion a malicious list could otherwise set up.
func (self *MFT_ENTRY) GetDirectAttribute(
	attr_type uint32, attr_id uint16) (*NTFS_ATTRIBUTE, error) {

	attrs, _, err := self.scanAttributes()
	if err != nil {
		return nil, err
	}

	for _, attr := range attrs {
		if attr.TypeValue() == attr_type &&
			attr.Attribute_id() == attr_id {
			return attr, nil
		}
	}

	return nil, NotFoundError
}

// Retrieve the first attribute of the given type whose name matches
// case insensitively. An empty name selects the unnamed attribute.
func (self *MFT_ENTRY) GetAttribute(
	ntfs *NTFSContext, attr_type uint32, name string) (
	*NTFS_ATTRIBUTE, error) {

	attrs, err := self.EnumerateAttributes(ntfs)
	if err != nil {
		return nil, err
	}

	for _, attr := range attrs {
		if attr.TypeValue() == attr_type &&
			ntfs.NamesEqual(attr.Name(), name) {
			return attr, nil
		}
	}

	return nil, NotFoundError
}

func (self *MFT_ENTRY) DebugString() string {
	result := fmt.Sprintf("struct MFT_ENTRY @ %#x:\n", self.DiskOffset)
	result += fmt.Sprintf("  Sequence_value: %#0x\n", self.Sequence_value())
	result += fmt.Sprintf("  Link_count: %#0x\n", self.Link_count())
	result += fmt.Sprintf("  Attribute_offset: %#0x\n", self.Attribute_offset())
	result += fmt.Sprintf("  Flags: %#0x (InUse %v Dir %v)\n",
		self.RecordFlags(), self.IsInUse(), self.IsDir())
	result += fmt.Sprintf("  Used_size: %#0x\n", self.Used_size())
	result += fmt.Sprintf("  Allocated_size: %#0x\n", self.Allocated_size())
	result += fmt.Sprintf("  Base_record_reference: %#0x\n",
		uint64(self.Base_record_reference()))
	result += fmt.Sprintf("  Record_number: %#0x\n", self.Record_number())
	return result
}
