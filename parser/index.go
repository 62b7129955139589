package parser

import (
	"bytes"
)

const (
	INDEX_RECORD_SIGNATURE = "INDX"

	COLLATION_BINARY              = 0x00
	COLLATION_FILENAME            = 0x01
	COLLATION_UNICODE_STRING      = 0x02
	COLLATION_NTOFS_ULONG         = 0x10
	COLLATION_NTOFS_SID           = 0x11
	COLLATION_NTOFS_SECURITY_HASH = 0x12
	COLLATION_NTOFS_ULONGS        = 0x13

	INDEX_ENTRY_FLAG_NODE = 1
	INDEX_ENTRY_FLAG_LAST = 2

	INDEX_ENTRY_HEADER_SIZE = 16

	// INDEX_ROOT: attr type (4), collation (4), record size (4),
	// clusters per record (1), pad (3), then the node header.
	INDEX_ROOT_HEADER_SIZE = 16

	// INDX record: signature, update sequence, LSN (8), VCN (8),
	// then the node header.
	INDEX_RECORD_HEADER_SIZE = 0x18

	INDEX_NODE_HEADER_SIZE = 16

	// Bound on descent depth - real trees are a few levels deep.
	MAX_INDEX_DEPTH = 32
)

func isKnownCollationRule(rule uint32) bool {
	switch rule {
	case COLLATION_BINARY, COLLATION_FILENAME,
		COLLATION_UNICODE_STRING, COLLATION_NTOFS_ULONG,
		COLLATION_NTOFS_SID, COLLATION_NTOFS_SECURITY_HASH,
		COLLATION_NTOFS_ULONGS:
		return true
	}
	return false
}

// One node of an index B+ tree: either the inline node of an
// $INDEX_ROOT value or a fixed up INDX record from
// $INDEX_ALLOCATION.
type indexNode struct {
	buffer []byte

	// Offset of the INDEX_NODE_HEADER within buffer.
	header_offset int64

	// Volume position for error reporting.
	position int64
}

func (self *indexNode) entriesStart() int64 {
	return self.header_offset + int64(u32(self.buffer[self.header_offset:]))
}

func (self *indexNode) entriesEnd() int64 {
	return self.header_offset +
		int64(u32(self.buffer[self.header_offset+4:]))
}

func (self *indexNode) validate() error {
	start := self.entriesStart()
	end := self.entriesEnd()
	if start < self.header_offset+INDEX_NODE_HEADER_SIZE ||
		start > end || end > int64(len(self.buffer)) {
		return &AttributeOutOfBoundsError{Position: self.position}
	}
	return nil
}

// An entry within an index node. Entries are variable sized: a fixed
// header, the key bytes, and - when the node flag is set - a trailing
// 8 byte child VCN.
type INDEX_ENTRY struct {
	node   *indexNode
	Offset int64
}

func (self *INDEX_ENTRY) Position() int64 {
	return self.node.position + self.Offset
}

func (self *INDEX_ENTRY) FileRef() FileReference {
	return FileReference(u64(self.node.buffer[self.Offset:]))
}

func (self *INDEX_ENTRY) Length() int64 {
	return int64(u16(self.node.buffer[self.Offset+8:]))
}

func (self *INDEX_ENTRY) KeyLength() int64 {
	return int64(u16(self.node.buffer[self.Offset+10:]))
}

func (self *INDEX_ENTRY) EntryFlags() uint32 {
	return u32(self.node.buffer[self.Offset+12:])
}

func (self *INDEX_ENTRY) HasSubnode() bool {
	return self.EntryFlags()&INDEX_ENTRY_FLAG_NODE != 0
}

// The last entry of a node carries no key but may still point at a
// subnode holding keys greater than everything else in the node.
func (self *INDEX_ENTRY) IsLast() bool {
	return self.EntryFlags()&INDEX_ENTRY_FLAG_LAST != 0
}

func (self *INDEX_ENTRY) Key() []byte {
	start := self.Offset + INDEX_ENTRY_HEADER_SIZE
	return self.node.buffer[start : start+self.KeyLength()]
}

// VCN 0 is a perfectly valid subnode pointer.
func (self *INDEX_ENTRY) SubnodeVCN() int64 {
	return int64(u64(self.node.buffer[self.Offset+self.Length()-8:]))
}

func (self *INDEX_ENTRY) validate() error {
	end := self.node.entriesEnd()

	if self.Offset+INDEX_ENTRY_HEADER_SIZE > end {
		return &AttributeOutOfBoundsError{Position: self.Position()}
	}

	length := self.Length()
	min_length := int64(INDEX_ENTRY_HEADER_SIZE)
	if self.HasSubnode() {
		min_length += 8
	}

	if length < min_length || self.Offset+length > end {
		return &AttributeOutOfBoundsError{Position: self.Position()}
	}

	if INDEX_ENTRY_HEADER_SIZE+self.KeyLength() > length {
		return &AttributeOutOfBoundsError{Position: self.Position()}
	}

	return nil
}

// An index rooted in a $INDEX_ROOT attribute with optional overflow
// into $INDEX_ALLOCATION. The allocation stream is resolved through
// the attribute walker, so it may itself live behind an attribute
// list.
type NtfsIndex struct {
	ntfs  *NTFSContext
	owner *MFT_ENTRY

	name          string
	root_value    []byte
	root_position int64
	record_size   int64
	collation     uint32

	allocation *StreamReader
}

// Open the index of the given name ("$I30", "$SDH", "$SII", "$O")
// under this record.
func (self *MFT_ENTRY) Index(ntfs *NTFSContext, name string) (
	*NtfsIndex, error) {

	root_attr, err := self.GetAttribute(ntfs, ATTR_TYPE_INDEX_ROOT, name)
	if err != nil {
		return nil, err
	}

	root_value, err := root_attr.ValueBytes(ntfs, MAX_RECORD_SIZE)
	if err != nil {
		return nil, err
	}

	if len(root_value) <
		INDEX_ROOT_HEADER_SIZE+INDEX_NODE_HEADER_SIZE {
		return nil, &AttributeOutOfBoundsError{
			Position: root_attr.Position()}
	}

	collation := u32(root_value[4:])
	if !isKnownCollationRule(collation) {
		return nil, &UnsupportedCollationRuleError{Rule: collation}
	}

	record_size := int64(u32(root_value[8:]))
	if record_size <= 0 || record_size > MAX_RECORD_SIZE {
		return nil, &UnsupportedRecordSizeError{Size: record_size}
	}

	index := &NtfsIndex{
		ntfs:          ntfs,
		owner:         self,
		name:          name,
		root_value:    root_value,
		root_position: root_attr.Position(),
		record_size:   record_size,
		collation:     collation,
	}

	// Overflow nodes live in a sibling $INDEX_ALLOCATION stream of
	// the same name. Absence is fine - small trees are fully inline.
	allocation, err := OpenStream(
		ntfs, self, ATTR_TYPE_INDEX_ALLOCATION, name)
	if err == nil {
		index.allocation = allocation
	} else if err != NotFoundError {
		return nil, err
	}

	return index, nil
}

func (self *NtfsIndex) CollationRule() uint32 {
	return self.collation
}

// The attribute type this index is keyed on (zero for the view
// indexes).
func (self *NtfsIndex) IndexedAttributeType() uint32 {
	return u32(self.root_value)
}

func (self *NtfsIndex) rootNode() (*indexNode, error) {
	node := &indexNode{
		buffer:        self.root_value,
		header_offset: INDEX_ROOT_HEADER_SIZE,
		position:      self.root_position,
	}
	err := node.validate()
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Subnode VCNs are in clusters, except that indexes with records
// smaller than a cluster address them in 512 byte blocks.
func (self *NtfsIndex) vcnToOffset(vcn int64) (int64, error) {
	unit := self.ntfs.ClusterSize
	if self.record_size < unit {
		unit = 512
	}
	offset, ok := checkedMul(vcn, unit)
	if !ok {
		return 0, &AttributeOutOfBoundsError{Position: self.root_position}
	}
	return offset, nil
}

// Load an INDX record from the allocation stream and fix it up.
func (self *NtfsIndex) subNode(vcn int64) (*indexNode, error) {
	STATS.Inc_INDEX_NODE()

	if self.allocation == nil {
		return nil, &InvalidAttributeListError{
			Reason:   "Subnode pointer without $INDEX_ALLOCATION",
			Position: self.root_position,
		}
	}

	offset, err := self.vcnToOffset(vcn)
	if err != nil {
		return nil, err
	}

	buffer, err := ReadFixedUpRecord(
		self.allocation, offset, self.record_size,
		self.ntfs.SectorSize, INDEX_RECORD_SIGNATURE)
	if err != nil {
		return nil, err
	}

	// The record stores its own VCN - a mismatch means the
	// allocation stream handed us the wrong block.
	stored_vcn := int64(u64(buffer[0x10:]))
	if stored_vcn != vcn {
		return nil, &InvalidAttributeListError{
			Reason:   "INDX record VCN mismatch",
			Position: self.root_position + offset,
		}
	}

	node := &indexNode{
		buffer:        buffer,
		header_offset: INDEX_RECORD_HEADER_SIZE,
		position:      self.root_position + offset,
	}
	err = node.validate()
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (self *NtfsIndex) parseEntry(node *indexNode, offset int64) (
	*INDEX_ENTRY, error) {
	entry := &INDEX_ENTRY{node: node, Offset: offset}
	err := entry.validate()
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Compare two keys under this index's collation rule.
func (self *NtfsIndex) compareKeys(a, b []byte) int {
	switch self.collation {
	case COLLATION_FILENAME:
		return self.compareFileNameKeys(a, b)

	case COLLATION_NTOFS_ULONG:
		return compareU32Keys(a, b)

	case COLLATION_NTOFS_SECURITY_HASH:
		// Hash first, then security id.
		cmp := compareU32Keys(a, b)
		if cmp != 0 {
			return cmp
		}
		if len(a) >= 8 && len(b) >= 8 {
			return compareU32Keys(a[4:], b[4:])
		}
		return 0

	case COLLATION_UNICODE_STRING:
		return self.ntfs.CompareFileNames(
			UTF16Units(a), UTF16Units(b))

	default:
		// Binary, SID and GUID keys collate by raw ordered
		// comparison as stored.
		return bytes.Compare(a, b)
	}
}

func compareU32Keys(a, b []byte) int {
	if len(a) < 4 || len(b) < 4 {
		return bytes.Compare(a, b)
	}
	va := u32(a)
	vb := u32(b)
	if va < vb {
		return -1
	}
	if va > vb {
		return 1
	}
	return 0
}

// Filename keys are FILE_NAME structures; ordering is upcase folded
// with a case sensitive tiebreak so names differing only in case stay
// distinct.
func (self *NtfsIndex) compareFileNameKeys(a, b []byte) int {
	return self.ntfs.CompareFileNames(
		fileNameKeyUnits(a), fileNameKeyUnits(b))
}

func fileNameKeyUnits(key []byte) []uint16 {
	if len(key) < FILE_NAME_HEADER_SIZE {
		return nil
	}
	length := int(key[0x40]) * 2
	end := FILE_NAME_HEADER_SIZE + length
	if end > len(key) {
		end = len(key)
	}
	return UTF16Units(key[FILE_NAME_HEADER_SIZE:end])
}

// Keyed lookup: binary descent under the collation rule. At each
// node, find the first entry whose key is >= the target; equal
// returns it, greater descends.
func (self *NtfsIndex) Lookup(key []byte) (*INDEX_ENTRY, error) {
	node, err := self.rootNode()
	if err != nil {
		return nil, err
	}

	for depth := 0; depth < MAX_INDEX_DEPTH; depth++ {
		offset := node.entriesStart()
		descended := false

		for {
			entry, err := self.parseEntry(node, offset)
			if err != nil {
				return nil, err
			}

			if entry.IsLast() {
				if !entry.HasSubnode() {
					return nil, NotFoundError
				}
				node, err = self.subNode(entry.SubnodeVCN())
				if err != nil {
					return nil, err
				}
				descended = true
				break
			}

			cmp := self.compareKeys(entry.Key(), key)
			if cmp == 0 {
				return entry, nil
			}
			if cmp > 0 {
				if !entry.HasSubnode() {
					return nil, NotFoundError
				}
				node, err = self.subNode(entry.SubnodeVCN())
				if err != nil {
					return nil, err
				}
				descended = true
				break
			}

			offset += entry.Length()
		}

		if !descended {
			return nil, NotFoundError
		}
	}

	return nil, NotFoundError
}

// In order iteration over all keys, each exactly once, in collation
// order. The iterator keeps an explicit stack of (node, cursor)
// frames; descent happens before a key entry is emitted.
type IndexIterator struct {
	index *NtfsIndex
	stack []*indexFrame
}

type indexFrame struct {
	node      *indexNode
	offset    int64
	descended bool
}

func (self *NtfsIndex) Iterate() (*IndexIterator, error) {
	root, err := self.rootNode()
	if err != nil {
		return nil, err
	}

	return &IndexIterator{
		index: self,
		stack: []*indexFrame{
			{node: root, offset: root.entriesStart()},
		},
	}, nil
}

// Next returns the next entry in collation order, or nil when the
// iteration is exhausted.
func (self *IndexIterator) Next() (*INDEX_ENTRY, error) {
	for len(self.stack) > 0 {
		frame := self.stack[len(self.stack)-1]

		entry, err := self.index.parseEntry(frame.node, frame.offset)
		if err != nil {
			return nil, err
		}

		// Subtrees come before their separating entry.
		if entry.HasSubnode() && !frame.descended {
			if len(self.stack) >= MAX_INDEX_DEPTH {
				return nil, &AttributeOutOfBoundsError{
					Position: entry.Position()}
			}

			frame.descended = true
			child, err := self.index.subNode(entry.SubnodeVCN())
			if err != nil {
				return nil, err
			}
			self.stack = append(self.stack, &indexFrame{
				node:   child,
				offset: child.entriesStart(),
			})
			continue
		}

		// The last entry carries no key - the node is exhausted.
		if entry.IsLast() {
			self.stack = self.stack[:len(self.stack)-1]
			continue
		}

		frame.offset += entry.Length()
		frame.descended = false
		return entry, nil
	}

	return nil, nil
}

// A typed view over a filename ($I30) index. Constructing it checks
// the collation rule, so filename keys can not be decoded out of a
// security index.
type FileNameIndex struct {
	index *NtfsIndex
}

func newFileNameIndex(ntfs *NTFSContext, entry *MFT_ENTRY) (
	*FileNameIndex, error) {
	index, err := entry.Index(ntfs, "$I30")
	if err != nil {
		return nil, err
	}

	if index.CollationRule() != COLLATION_FILENAME {
		return nil, &UnsupportedCollationRuleError{
			Rule: index.CollationRule()}
	}

	return &FileNameIndex{index: index}, nil
}

// Find a child by name, case insensitively.
func (self *FileNameIndex) Lookup(name string) (*IndexedFileName, error) {
	target := StringToUTF16(name)

	node, err := self.index.rootNode()
	if err != nil {
		return nil, err
	}

	for depth := 0; depth < MAX_INDEX_DEPTH; depth++ {
		offset := node.entriesStart()
		descended := false

		for {
			entry, err := self.index.parseEntry(node, offset)
			if err != nil {
				return nil, err
			}

			if entry.IsLast() {
				if !entry.HasSubnode() {
					return nil, NotFoundError
				}
				node, err = self.index.subNode(entry.SubnodeVCN())
				if err != nil {
					return nil, err
				}
				descended = true
				break
			}

			entry_units := fileNameKeyUnits(entry.Key())

			// A case folded match is a hit even when the exact
			// comparison differs.
			if self.index.ntfs.CompareFold(entry_units, target) == 0 {
				return newIndexedFileName(entry)
			}

			if self.index.ntfs.CompareFileNames(entry_units, target) > 0 {
				if !entry.HasSubnode() {
					return nil, NotFoundError
				}
				node, err = self.index.subNode(entry.SubnodeVCN())
				if err != nil {
					return nil, err
				}
				descended = true
				break
			}

			offset += entry.Length()
		}

		if !descended {
			return nil, NotFoundError
		}
	}

	return nil, NotFoundError
}

// Iterate the directory in collation order.
func (self *FileNameIndex) Iterate() (*FileNameIterator, error) {
	inner, err := self.index.Iterate()
	if err != nil {
		return nil, err
	}
	return &FileNameIterator{inner: inner}, nil
}

type FileNameIterator struct {
	inner *IndexIterator
}

func (self *FileNameIterator) Next() (*IndexedFileName, error) {
	entry, err := self.inner.Next()
	if err != nil || entry == nil {
		return nil, err
	}
	return newIndexedFileName(entry)
}

// A directory child: the FILE_NAME key plus the reference to its
// record.
type IndexedFileName struct {
	FileName  *FILE_NAME
	Reference FileReference
}

func newIndexedFileName(entry *INDEX_ENTRY) (*IndexedFileName, error) {
	fn, err := NewFileName(entry.Key(), entry.Position())
	if err != nil {
		return nil, err
	}
	return &IndexedFileName{
		FileName:  fn,
		Reference: entry.FileRef(),
	}, nil
}
