package parser_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"www.velocidex.com/golang/ntfslib/parser"
)

func openTestVolume(t *testing.T) *parser.NTFSContext {
	ntfs_ctx, err := parser.GetNTFSContext(
		bytes.NewReader(buildTestImage()), 0)
	assert.NoError(t, err, "Unable to open volume")

	err = ntfs_ctx.ReadUpcase()
	assert.NoError(t, err, "Unable to read $UpCase")

	return ntfs_ctx
}

func TestVolumeGeometry(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	assert.Equal(int64(512), ntfs_ctx.Boot.SectorSize())
	assert.Equal(int64(4096), ntfs_ctx.Boot.ClusterSize())

	// Positive encoding: clusters.
	assert.Equal(int64(4096), ntfs_ctx.Boot.RecordSize())

	// Negative encoding: 2^12 bytes.
	assert.Equal(int64(4096), ntfs_ctx.Boot.IndexRecordSize())

	assert.Equal(int64(256), ntfs_ctx.Boot.TotalClusters())
	assert.Equal(uint64(0x1234567890abcdef),
		ntfs_ctx.Boot.SerialNumber())
}

// Scenario: tiny resident file.
func TestResidentFile(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	root, err := ntfs_ctx.RootDirectory()
	assert.NoError(err)

	mft_entry, err := root.Open(ntfs_ctx, "file-with-12345")
	assert.NoError(err)

	stream, err := mft_entry.DataStream(ntfs_ctx, "")
	assert.NoError(err)
	assert.Equal(int64(5), stream.Size())

	buf := make([]byte, 5)
	n, err := stream.Read(buf)
	assert.NoError(err)
	assert.Equal(5, n)
	assert.Equal([]byte{0x31, 0x32, 0x33, 0x34, 0x35}, buf)
}

// Scenario: non resident stream with a seek near the end.
func TestNonResidentFile(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	stream, err := parser.GetDataForPath(ntfs_ctx, "1000-bytes-file")
	assert.NoError(err)
	assert.Equal(int64(1000), stream.Size())

	pos, err := stream.Seek(995, io.SeekStart)
	assert.NoError(err)
	assert.Equal(int64(995), pos)

	buf := make([]byte, 5)
	n, err := stream.Read(buf)
	assert.NoError(err)
	assert.Equal(5, n)
	assert.Equal([]byte{0x31, 0x32, 0x33, 0x34, 0x35}, buf)

	// Reading on returns EOF.
	_, err = stream.Read(buf)
	assert.Equal(io.EOF, err)
}

// Scenario: sparse regions read as zeros.
func TestSparseFile(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	stream, err := parser.GetDataForPath(ntfs_ctx, "sparse-file")
	assert.NoError(err)
	assert.Equal(int64(500005), stream.Size())

	buf := make([]byte, 5)
	_, err = stream.Seek(1000, io.SeekStart)
	assert.NoError(err)
	n, err := stream.Read(buf)
	assert.NoError(err)
	assert.Equal(5, n)
	assert.Equal([]byte{0, 0, 0, 0, 0}, buf)

	_, err = stream.Seek(500000, io.SeekStart)
	assert.NoError(err)
	n, err = stream.Read(buf)
	assert.NoError(err)
	assert.Equal(5, n)
	assert.Equal([]byte{0x31, 0x31, 0x31, 0x31, 0x31}, buf)

	// The head is real data.
	_, err = stream.Seek(0, io.SeekStart)
	assert.NoError(err)
	n, err = stream.Read(buf)
	assert.NoError(err)
	assert.Equal(5, n)
	assert.Equal([]byte("12345"), buf)

	// Sparse ranges are visible in the run introspection.
	sparse_seen := false
	for _, rng := range stream.Ranges() {
		if rng.IsSparse {
			sparse_seen = true
		}
	}
	assert.True(sparse_seen)
}

// Scenario: a directory large enough to overflow into
// $INDEX_ALLOCATION iterates in collation order, each key exactly
// once.
func TestLargeDirectory(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	root, err := ntfs_ctx.RootDirectory()
	assert.NoError(err)

	dir, err := root.Open(ntfs_ctx, "many_subdirs")
	assert.NoError(err)
	assert.True(dir.IsDir())

	index, err := dir.DirectoryIndex(ntfs_ctx)
	assert.NoError(err)

	iter, err := index.Iterate()
	assert.NoError(err)

	names := []string{}
	for {
		child, err := iter.Next()
		assert.NoError(err)
		if child == nil {
			break
		}
		names = append(names, child.FileName.Name())
	}

	assert.Equal(512, len(names))
	assert.Equal([]string{"1", "10", "100"}, names[:3])

	// Strictly ascending, no duplicates.
	seen := make(map[string]bool)
	for i, name := range names {
		assert.False(seen[name], "Duplicate key %v", name)
		seen[name] = true
		if i > 0 {
			assert.True(names[i-1] < name,
				"Names out of order: %v before %v",
				names[i-1], name)
		}
	}

	// Keyed lookup descends through the allocation records.
	child, err := index.Lookup("317")
	assert.NoError(err)
	assert.Equal("317", child.FileName.Name())

	_, err = index.Lookup("no-such-child")
	assert.Equal(parser.NotFoundError, err)
}

// Scenario: $DATA spread over extension records via $ATTRIBUTE_LIST
// reads as one contiguous stream.
func TestAttributeList(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	stream, err := parser.GetDataForPath(ntfs_ctx, "pagefile.sys")
	assert.NoError(err)
	assert.Equal(int64(32768), stream.Size())

	// One run per segment, in ascending VCN order.
	ranges := stream.Ranges()
	assert.Equal(2, len(ranges))
	assert.Equal(int64(0), ranges[0].Offset)
	assert.Equal(int64(16384), ranges[0].Length)
	assert.Equal(int64(16384), ranges[1].Offset)
	assert.Equal(int64(16384), ranges[1].Length)

	// Bytes straddling the segment boundary are contiguous.
	buf := make([]byte, 8)
	_, err = stream.Seek(16380, io.SeekStart)
	assert.NoError(err)
	n, err := stream.Read(buf)
	assert.NoError(err)
	assert.Equal(8, n)
	for i, b := range buf {
		expected := byte((16380 + i) % 251)
		assert.Equal(expected, b, "Mismatch at %v", 16380+i)
	}
}

// Scenario: a corrupted update sequence surfaces as a typed error,
// not a panic.
func TestUpdateSequenceCorruption(t *testing.T) {
	assert := assert.New(t)

	image := buildTestImage()

	// Clobber the first sector trailer of record 11.
	record_offset := (testMFTCluster + 11) * testClusterSize
	image[record_offset+510] = 0xDE
	image[record_offset+511] = 0xAD

	ntfs_ctx, err := parser.GetNTFSContext(bytes.NewReader(image), 0)
	assert.NoError(err)

	_, err = ntfs_ctx.GetMFT(11)
	assert.Error(err)

	// Positions are relative to the $MFT stream.
	var usn_err *parser.InvalidUpdateSequenceError
	assert.True(errors.As(err, &usn_err))
	assert.Equal(int64(11*testRecordSize+510), usn_err.Position)
}

// A lookup for "FOO" finds the entry stored as "foo", and an upper
// case path opens the record stored under a lower case name.
func TestCaseInsensitiveLookup(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	root, err := ntfs_ctx.RootDirectory()
	assert.NoError(err)

	index, err := root.DirectoryIndex(ntfs_ctx)
	assert.NoError(err)

	child, err := index.Lookup("FOO")
	assert.NoError(err)
	assert.Equal("foo", child.FileName.Name())

	// Opening through the path layer works too.
	mft_entry, err := root.Open(ntfs_ctx, "FILE-WITH-12345")
	assert.NoError(err)
	assert.Equal(uint32(11), mft_entry.Record_number())
}

func TestListDirAndStat(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	root, err := ntfs_ctx.RootDirectory()
	assert.NoError(err)

	infos, err := parser.ListDir(ntfs_ctx, root)
	assert.NoError(err)

	names := []string{}
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal([]string{
		"1000-bytes-file", "file-with-12345", "foo",
		"many_subdirs", "pagefile.sys", "sparse-file",
	}, names)

	mft_entry, err := root.Open(ntfs_ctx, "sparse-file")
	assert.NoError(err)

	stats, err := parser.Stat(ntfs_ctx, mft_entry)
	assert.NoError(err)
	assert.Equal(1, len(stats))
	assert.Equal("sparse-file", stats[0].Name)
	assert.Equal(int64(500005), stats[0].Size)
	assert.False(stats[0].IsDir)
}

func TestFileInfo(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	root, err := ntfs_ctx.RootDirectory()
	assert.NoError(err)

	mft_entry, err := root.Open(ntfs_ctx, "file-with-12345")
	assert.NoError(err)

	info, err := mft_entry.Info(ntfs_ctx)
	assert.NoError(err)
	assert.False(info.IsDir)
	assert.True(info.InUse)
	assert.Equal(int64(5), info.Size)
	assert.Equal(1, len(info.Names))
	assert.Equal("file-with-12345", info.Names[0].Name)
	assert.Equal(uint64(5), info.Names[0].Parent.RecordNumber())
	assert.NotNil(info.Times)
	assert.Equal(2023, info.Times.CreateTime.Year())

	name, err := mft_entry.PreferredName(ntfs_ctx, 0)
	assert.NoError(err)
	assert.Equal("file-with-12345", name)

	full_path, err := parser.GetFullPath(ntfs_ctx, mft_entry)
	assert.NoError(err)
	assert.Equal("file-with-12345", full_path)
}

// A record with both a DOS short name and a Win32 long name prefers
// the Win32 one regardless of attribute order; a record with only a
// POSIX name still resolves to it.
func TestNamespacePriority(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	// The DOS name is stored first in the record.
	mft_entry, err := ntfs_ctx.GetMFT(12)
	assert.NoError(err)

	info, err := mft_entry.Info(ntfs_ctx)
	assert.NoError(err)
	assert.Equal(2, len(info.Names))
	assert.Equal("1000BY~1", info.Names[0].Name)
	assert.Equal("DOS", info.Names[0].Namespace)

	name, err := mft_entry.PreferredName(ntfs_ctx, 0)
	assert.NoError(err)
	assert.Equal("1000-bytes-file", name)

	stats, err := parser.Stat(ntfs_ctx, mft_entry)
	assert.NoError(err)
	assert.Equal("1000-bytes-file", stats[0].Name)
	assert.Equal("Win32", stats[0].NameType)

	// POSIX only.
	mft_entry, err = ntfs_ctx.GetMFT(13)
	assert.NoError(err)

	name, err = mft_entry.PreferredName(ntfs_ctx, 0)
	assert.NoError(err)
	assert.Equal("sparse-file", name)

	stats, err = parser.Stat(ntfs_ctx, mft_entry)
	assert.NoError(err)
	assert.Equal("sparse-file", stats[0].Name)
	assert.Equal("POSIX", stats[0].NameType)
}

func TestVolumeMetadata(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	volume_entry, err := ntfs_ctx.GetMFT(3)
	assert.NoError(err)

	name_attr, err := volume_entry.GetAttribute(
		ntfs_ctx, parser.ATTR_TYPE_VOLUME_NAME, "")
	assert.NoError(err)

	label, err := name_attr.VolumeName(ntfs_ctx)
	assert.NoError(err)
	assert.Equal("TESTVOL", label.Name())

	info_attr, err := volume_entry.GetAttribute(
		ntfs_ctx, parser.ATTR_TYPE_VOLUME_INFORMATION, "")
	assert.NoError(err)

	info, err := info_attr.VolumeInformation(ntfs_ctx)
	assert.NoError(err)
	assert.Equal(uint8(3), info.MajorVersion())
	assert.Equal(uint8(1), info.MinorVersion())
	assert.False(info.IsDirty())
}

// Reloading a record after the cache is purged decodes to the same
// header fields as the first load.
func TestRecordCacheStability(t *testing.T) {
	assert := assert.New(t)
	ntfs_ctx := openTestVolume(t)

	first, err := ntfs_ctx.GetMFT(11)
	assert.NoError(err)

	ntfs_ctx.Purge()

	second, err := ntfs_ctx.GetMFT(11)
	assert.NoError(err)

	assert.Equal(first.DebugString(), second.DebugString())
}
