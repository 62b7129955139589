// Implement some easy APIs.
package parser

import (
	"io"
	"path"
	"strings"
	"time"
)

type FileInfo struct {
	MFTId         string    `json:"MFTId,omitempty"`
	Mtime         time.Time `json:"Mtime,omitempty"`
	Atime         time.Time `json:"Atime,omitempty"`
	Ctime         time.Time `json:"Ctime,omitempty"`
	Btime         time.Time `json:"Btime,omitempty"`
	Name          string    `json:"Name,omitempty"`
	NameType      string    `json:"NameType,omitempty"`
	IsDir         bool      `json:"IsDir,omitempty"`
	Size          int64
	AllocatedSize int64
}

// Open a volume: validate the boot sector, derive the geometry and
// bootstrap the $MFT stream. The reader is owned by the caller; two
// goroutines walking the same volume should each open their own
// context over their own reader.
func GetNTFSContext(image io.ReaderAt, offset int64) (*NTFSContext, error) {
	ntfs := newNTFSContext(image, "GetNTFSContext")

	boot, err := NewBootSector(image, offset)
	if err != nil {
		return nil, err
	}

	err = boot.IsValid()
	if err != nil {
		return nil, err
	}

	ntfs.Boot = boot
	ntfs.ClusterSize = boot.ClusterSize()
	ntfs.SectorSize = boot.SectorSize()
	ntfs.RecordSize = boot.RecordSize()
	ntfs.TotalClusters = boot.TotalClusters()

	mft_reader, err := BootstrapMFT(ntfs)
	if err != nil {
		return nil, err
	}

	ntfs.MFTReader = mft_reader
	return ntfs, nil
}

// Open the record named by a path relative to this directory. Path
// components match case insensitively. An ADS suffix (":stream") is
// stripped - use DataStream to open named streams.
func (self *MFT_ENTRY) Open(ntfs *NTFSContext, filename string) (
	*MFT_ENTRY, error) {
	filename = strings.Replace(filename, "\\", "/", -1)
	filename = strings.Split(filename, ":")[0]

	directory := self
	for _, component := range strings.Split(path.Clean(filename), "/") {
		if component == "" || component == "." {
			continue
		}

		index, err := directory.DirectoryIndex(ntfs)
		if err != nil {
			return nil, err
		}

		child, err := index.Lookup(component)
		if err != nil {
			return nil, err
		}

		next, err := ntfs.GetRecord(child.Reference)
		if err != nil {
			return nil, err
		}
		directory = next
	}

	return directory, nil
}

// Open the $DATA stream for a path. A single ":" suffix selects an
// alternate data stream.
func GetDataForPath(ntfs *NTFSContext, filename string) (
	*StreamReader, error) {
	parts := strings.Split(filename, ":")
	stream_name := ""
	switch len(parts) {
	case 1:
	case 2:
		stream_name = parts[1]
	default:
		return nil, NotFoundError
	}

	root, err := ntfs.RootDirectory()
	if err != nil {
		return nil, err
	}

	mft_entry, err := root.Open(ntfs, parts[0])
	if err != nil {
		return nil, err
	}

	return mft_entry.DataStream(ntfs, stream_name)
}

// Summarize one record as FileInfo rows - one for the record itself
// and one per alternate data stream.
func Stat(ntfs *NTFSContext, mft_entry *MFT_ENTRY) ([]*FileInfo, error) {
	info, err := mft_entry.Info(ntfs)
	if err != nil {
		return nil, err
	}

	name := ""
	name_type := ""
	name_rank := -1
	for _, fn := range info.Names {
		rank := namespaceRank(fn.Namespace)
		if name_rank < 0 || rank < name_rank {
			name = fn.Name
			name_type = fn.Namespace
			name_rank = rank
		}
	}

	result := []*FileInfo{}

	row := &FileInfo{
		MFTId:         info.Reference.String(),
		Name:          name,
		NameType:      name_type,
		IsDir:         info.IsDir,
		Size:          info.Size,
		AllocatedSize: info.AllocatedSize,
	}
	if info.Times != nil {
		row.Mtime = info.Times.FileModifiedTime
		row.Atime = info.Times.AccessedTime
		row.Ctime = info.Times.MFTModifiedTime
		row.Btime = info.Times.CreateTime
	}
	result = append(result, row)

	ads_names, err := mft_entry.AlternateDataStreamNames(ntfs)
	if err != nil {
		return result, nil
	}

	for _, ads := range ads_names {
		stream, err := mft_entry.DataStream(ntfs, ads)
		if err != nil {
			continue
		}

		ads_row := *row
		ads_row.Name = name + ":" + ads
		ads_row.IsDir = false
		ads_row.Size = stream.Size()
		result = append(result, &ads_row)
	}

	return result, nil
}

// List a directory through its $I30 index, in collation order.
func ListDir(ntfs *NTFSContext, dir *MFT_ENTRY) ([]*FileInfo, error) {
	index, err := dir.DirectoryIndex(ntfs)
	if err != nil {
		return nil, err
	}

	iter, err := index.Iterate()
	if err != nil {
		return nil, err
	}

	// The index stores one entry per $FILE_NAME, so a record with a
	// short name appears twice. De-duplicate on the reference but
	// keep distinct names.
	type seen_key struct {
		record uint64
		name   string
	}
	seen := make(map[seen_key]bool)

	result := []*FileInfo{}
	for {
		child, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}

		fn := child.FileName
		key := seen_key{
			record: child.Reference.RecordNumber(),
			name:   fn.Name(),
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		result = append(result, &FileInfo{
			MFTId:         child.Reference.String(),
			Mtime:         fn.File_modified().Time,
			Atime:         fn.File_accessed().Time,
			Ctime:         fn.Mft_modified().Time,
			Btime:         fn.Created().Time,
			Name:          fn.Name(),
			NameType:      fn.NameType().Name,
			IsDir:         fn.FileFlags()&0x10000000 != 0,
			Size:          fn.RealSize(),
			AllocatedSize: fn.AllocatedSize(),
		})
	}

	return result, nil
}
