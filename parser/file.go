package parser

import (
	"fmt"
)

// A 64 bit composite reference to a file record: the low 48 bits are
// the record number, the high 16 bits the expected sequence number.
// Two references are equal only when both halves match.
type FileReference uint64

func NewFileReference(record_number uint64, sequence uint16) FileReference {
	return FileReference(
		record_number&0xFFFFFFFFFFFF | uint64(sequence)<<48)
}

func (self FileReference) RecordNumber() uint64 {
	return uint64(self) & 0xFFFFFFFFFFFF
}

func (self FileReference) Sequence() uint16 {
	return uint16(uint64(self) >> 48)
}

func (self FileReference) String() string {
	return fmt.Sprintf("%d-%d", self.RecordNumber(), self.Sequence())
}

// Summary information about a file, gathered from the standard
// information and file name attributes.
type FileRecordInfo struct {
	Reference     FileReference
	IsDir         bool
	InUse         bool
	LinkCount     uint16
	Size          int64
	AllocatedSize int64

	Times *TimeStamps

	// All names this record is known by, one per $FILE_NAME.
	Names []*FileNameInfo
}

type FileNameInfo struct {
	Name      string
	Namespace string
	Parent    FileReference
	Times     TimeStamps
}

// Standard information, file names, sizes and flags of the logical
// file rooted at this record.
func (self *MFT_ENTRY) Info(ntfs *NTFSContext) (*FileRecordInfo, error) {
	result := &FileRecordInfo{
		Reference: self.Reference(),
		IsDir:     self.IsDir(),
		InUse:     self.IsInUse(),
		LinkCount: self.Link_count(),
	}

	attrs, err := self.EnumerateAttributes(ntfs)
	if err != nil {
		return nil, err
	}

	for _, attr := range attrs {
		switch attr.TypeValue() {
		case ATTR_TYPE_STANDARD_INFORMATION:
			si, err := attr.StandardInformation(ntfs)
			if err != nil {
				continue
			}
			result.Times = &TimeStamps{
				CreateTime:       si.Create_time().Time,
				FileModifiedTime: si.File_altered_time().Time,
				MFTModifiedTime:  si.Mft_altered_time().Time,
				AccessedTime:     si.File_accessed_time().Time,
			}

		case ATTR_TYPE_FILE_NAME:
			fn, err := attr.FileName(ntfs)
			if err != nil {
				continue
			}
			result.Names = append(result.Names, &FileNameInfo{
				Name:      fn.Name(),
				Namespace: fn.NameType().Name,
				Parent:    fn.MftReference(),
				Times: TimeStamps{
					CreateTime:       fn.Created().Time,
					FileModifiedTime: fn.File_modified().Time,
					MFTModifiedTime:  fn.Mft_modified().Time,
					AccessedTime:     fn.File_accessed().Time,
				},
			})

		case ATTR_TYPE_DATA:
			// The unnamed stream's size is the file size.
			if attr.Name() == "" && result.Size == 0 &&
				(attr.IsResident() ||
					attr.Runlist_vcn_start() == 0) {
				result.Size = attr.DataSize()
				if !attr.IsResident() {
					result.AllocatedSize = attr.Allocated_size()
				} else {
					result.AllocatedSize = attr.Content_size()
				}
			}
		}
	}

	return result, nil
}

// The preferred name of this file. Namespaces rank
// Win32 > Win32+DOS > DOS > POSIX; parent disambiguates hard links
// (pass 0 to accept any parent).
func (self *MFT_ENTRY) PreferredName(
	ntfs *NTFSContext, parent FileReference) (string, error) {

	info, err := self.Info(ntfs)
	if err != nil {
		return "", err
	}

	best := ""
	best_rank := -1
	for _, name := range info.Names {
		if parent != 0 &&
			name.Parent.RecordNumber() != parent.RecordNumber() {
			continue
		}

		rank := namespaceRank(name.Namespace)
		if best_rank < 0 || rank < best_rank {
			best = name.Name
			best_rank = rank
		}
	}

	if best_rank < 0 {
		return "", NotFoundError
	}
	return best, nil
}

// The named $DATA stream of this file. The name matches case
// insensitively; an empty name selects the unnamed stream. Streams
// spliced across attribute list segments come back as one logical
// stream.
func (self *MFT_ENTRY) DataStream(
	ntfs *NTFSContext, name string) (*StreamReader, error) {
	return OpenStream(ntfs, self, ATTR_TYPE_DATA, name)
}

// The names of all alternate data streams on this record.
func (self *MFT_ENTRY) AlternateDataStreamNames(
	ntfs *NTFSContext) ([]string, error) {

	attrs, err := self.EnumerateAttributes(ntfs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	result := []string{}
	for _, attr := range attrs {
		if attr.TypeValue() != ATTR_TYPE_DATA {
			continue
		}
		name := attr.Name()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		result = append(result, name)
	}
	return result, nil
}

// The $I30 filename index of this record, if it is a directory.
func (self *MFT_ENTRY) DirectoryIndex(ntfs *NTFSContext) (
	*FileNameIndex, error) {
	if !self.IsDir() {
		return nil, NotFoundError
	}
	return newFileNameIndex(ntfs, self)
}
