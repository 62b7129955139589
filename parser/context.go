package parser

import (
	"errors"
	"io"
	"sync"
)

// The top level handle over one NTFS volume. It owns the geometry
// derived from the boot sector, the reader over the $MFT stream and
// the lazily loaded $UpCase table. The disk reader itself is supplied
// by the caller and never mutated.
type NTFSContext struct {
	// The reader over the raw volume.
	DiskReader io.ReaderAt

	// The reader over the $MFT $DATA stream.
	MFTReader RangeReaderAt

	Boot *NTFS_BOOT_SECTOR

	ClusterSize   int64
	SectorSize    int64
	RecordSize    int64
	TotalClusters int64

	mu sync.Mutex

	options Options
	upcase  *UpcaseTable

	// Map record number to *MFT_ENTRY.
	mft_entry_lru *LRU
}

func newNTFSContext(image io.ReaderAt, name string) *NTFSContext {
	STATS.Inc_NTFSContext()

	mft_cache, _ := NewLRU(1000, nil, name)
	return &NTFSContext{
		DiskReader:    image,
		options:       GetDefaultOptions(),
		mft_entry_lru: mft_cache,
	}
}

func (self *NTFSContext) SetOptions(options Options) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.options = options
}

func (self *NTFSContext) GetOptions() Options {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.options
}

func (self *NTFSContext) Close() {
	if debug {
		DebugPrint("%v", STATS.DebugString())
	}
	self.Purge()
}

func (self *NTFSContext) Purge() {
	self.mft_entry_lru.Purge()

	flusher, ok := self.DiskReader.(Flusher)
	if ok {
		flusher.Flush()
	}
}

// Load the file record with the given number from the $MFT stream,
// apply the fixups and cache the result.
func (self *NTFSContext) GetMFT(id int64) (*MFT_ENTRY, error) {
	cached_any, pres := self.mft_entry_lru.Get(int(id))
	if pres {
		return cached_any.(*MFT_ENTRY), nil
	}

	if self.MFTReader == nil {
		return nil, errors.New("No $MFT stream known")
	}

	offset, ok := checkedMul(id, self.RecordSize)
	if !ok {
		return nil, &AttributeOutOfBoundsError{Position: offset}
	}

	buffer, err := ReadFixedUpRecord(
		self.MFTReader, offset, self.RecordSize, self.SectorSize,
		MFT_RECORD_SIGNATURE)
	if err != nil {
		return nil, err
	}

	// Positions are reported relative to the $MFT stream.
	mft_entry, err := NewMFTEntry(buffer, offset)
	if err != nil {
		return nil, err
	}

	self.mft_entry_lru.Add(int(id), mft_entry)
	return mft_entry, nil
}

// Resolve a file reference: load the record and verify the sequence
// number. A reference with sequence 0 matches any sequence.
func (self *NTFSContext) GetRecord(ref FileReference) (*MFT_ENTRY, error) {
	entry, err := self.GetMFT(int64(ref.RecordNumber()))
	if err != nil {
		return nil, err
	}

	if ref.Sequence() != 0 &&
		entry.Sequence_value() != ref.Sequence() {
		return nil, &SequenceMismatchError{
			Expected:  ref.Sequence(),
			Found:     entry.Sequence_value(),
			Reference: uint64(ref),
		}
	}

	return entry, nil
}

// The root directory is always record 5.
func (self *NTFSContext) RootDirectory() (*MFT_ENTRY, error) {
	return self.GetMFT(ROOT_DIR_RECORD)
}

// Load the $UpCase table from record 10 and retain it for case
// folding. Called explicitly - lookups before this fall back to an
// ASCII fold.
func (self *NTFSContext) ReadUpcase() error {
	table, err := ReadUpcaseTable(self)
	if err != nil {
		return err
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	self.upcase = table
	return nil
}

func (self *NTFSContext) GetUpcase() *UpcaseTable {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.upcase
}

// Case folded comparison of two UTF-16 strings using the volume's
// $UpCase table when loaded.
func (self *NTFSContext) CompareFold(a, b []uint16) int {
	table := self.GetUpcase()
	if table != nil {
		return table.CompareFold(a, b)
	}
	return compareFoldASCII(a, b)
}

// Full filename ordering: case folded first, exact comparison as the
// tiebreak.
func (self *NTFSContext) CompareFileNames(a, b []uint16) int {
	cmp := self.CompareFold(a, b)
	if cmp != 0 {
		return cmp
	}
	return compareExact(a, b)
}

// Case insensitive equality of two names.
func (self *NTFSContext) NamesEqual(a, b string) bool {
	return self.CompareFold(StringToUTF16(a), StringToUTF16(b)) == 0
}

// Find the $MFT $DATA stream. The MFT enumerates all files including
// itself, so the first record must be read straight from the disk
// reader before any stream exists.
func BootstrapMFT(ntfs *NTFSContext) (RangeReaderAt, error) {
	mft_offset, err := ntfs.Boot.MFTOffset()
	if err != nil {
		return nil, err
	}

	buffer, err := ReadFixedUpRecord(
		ntfs.DiskReader, mft_offset, ntfs.RecordSize, ntfs.SectorSize,
		MFT_RECORD_SIGNATURE)
	if err != nil {
		return nil, err
	}

	root_mft, err := NewMFTEntry(buffer, mft_offset)
	if err != nil {
		return nil, err
	}

	// First pass: only the attributes physically inside record 0.
	// If $MFT carries an attribute list, the remaining $DATA
	// segments can only be found once the first segment is readable.
	attrs, list_attr, err := root_mft.scanAttributes()
	if err != nil {
		return nil, err
	}

	var first_reader *StreamReader
	for _, attr := range attrs {
		if attr.TypeValue() == ATTR_TYPE_DATA && attr.Name() == "" {
			first_reader, err = attr.Data(ntfs)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	if first_reader == nil {
		return nil, errors.New("$DATA attribute not found for $MFT")
	}

	if list_attr == nil {
		return first_reader, nil
	}

	// Second pass: with the first segment readable, expand the
	// attribute list and splice all $DATA segments.
	ntfs.MFTReader = first_reader

	full_stream, err := OpenStream(ntfs, root_mft, ATTR_TYPE_DATA, "")
	if err != nil {
		return nil, err
	}

	return full_stream, nil
}
