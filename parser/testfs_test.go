package parser_test

// A synthetic NTFS volume assembled in memory, small but structurally
// faithful: a boot sector, a 16 record MFT with update sequence
// fixups, a $UpCase table, resident and non resident files, a sparse
// file, a file whose $DATA is spread over extension records via a
// $ATTRIBUTE_LIST, and a directory large enough to need
// $INDEX_ALLOCATION.

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unicode/utf16"
)

const (
	testSectorSize  = 512
	testClusterSize = 4096
	testRecordSize  = 4096
	testIndexSize   = 4096

	testTotalClusters = 256
	testTotalSectors  = testTotalClusters * 8

	testMFTCluster = 4
	testMFTRecords = 16

	testUpcaseCluster = 20 // 32 clusters

	testCluster1000Bytes  = 52
	testClusterSparseA    = 53
	testClusterSparseB    = 54
	testClusterPageSeg1   = 55 // 4 clusters
	testClusterPageSeg2   = 59 // 4 clusters
	testClusterIndexBase  = 63 // 16 INDX records
	testIndexLeafCount    = 16

	testSparseDataSize = 500005
	testPageStreamSize = 32768

	// 2023-01-01 00:00:00 UTC as a FILETIME.
	testFiletime = 133170048000000000

	// Update sequence number stamped into every record.
	testUSN = 0x2211
)

func le16(buf []byte, offset int, v uint16) {
	binary.LittleEndian.PutUint16(buf[offset:], v)
}

func le32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], v)
}

func le64(buf []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(buf[offset:], v)
}

func utf16le(name string) []byte {
	units := utf16.Encode([]rune(name))
	buf := make([]byte, len(units)*2)
	for i, unit := range units {
		le16(buf, i*2, unit)
	}
	return buf
}

func align8(v int) int {
	return (v + 7) &^ 7
}

func testRef(record uint64) uint64 {
	return record | 1<<48
}

// ---- attribute encoders ----

func residentAttr(atype uint32, id uint16, name string, value []byte) []byte {
	name_bytes := utf16le(name)
	value_off := 24 + len(name_bytes)
	total := align8(value_off + len(value))

	buf := make([]byte, total)
	le32(buf, 0, atype)
	le32(buf, 4, uint32(total))
	buf[8] = 0
	buf[9] = byte(len(name_bytes) / 2)
	le16(buf, 10, 24)
	le16(buf, 14, id)
	le32(buf, 16, uint32(len(value)))
	le16(buf, 20, uint16(value_off))
	copy(buf[24:], name_bytes)
	copy(buf[value_off:], value)
	return buf
}

type testRun struct {
	lcn    int64 // ignored when sparse
	length int64
	sparse bool
}

// Minimal width mapping pair encoding.
func encodeRunList(runs []testRun) []byte {
	result := []byte{}
	current := int64(0)

	width := func(v int64, signed bool) int {
		for w := 1; w < 8; w++ {
			shift := uint(w * 8)
			if signed {
				min := -(int64(1) << (shift - 1))
				max := int64(1)<<(shift-1) - 1
				if v >= min && v <= max {
					return w
				}
			} else if v < int64(1)<<shift {
				return w
			}
		}
		return 8
	}

	for _, run := range runs {
		lw := width(run.length, false)
		if run.sparse {
			result = append(result, byte(lw))
			for i := 0; i < lw; i++ {
				result = append(result, byte(run.length>>(8*i)))
			}
			continue
		}

		delta := run.lcn - current
		current = run.lcn
		dw := width(delta, true)

		result = append(result, byte(dw<<4|lw))
		for i := 0; i < lw; i++ {
			result = append(result, byte(run.length>>(8*i)))
		}
		for i := 0; i < dw; i++ {
			result = append(result, byte(delta>>(8*i)))
		}
	}

	result = append(result, 0)
	return result
}

func nonResidentAttr(atype uint32, id uint16, name string,
	vcn_start, vcn_end int64, runs []testRun,
	alloc, actual, initialized int64) []byte {

	name_bytes := utf16le(name)
	run_bytes := encodeRunList(runs)
	run_off := 64 + len(name_bytes)
	total := align8(run_off + len(run_bytes))

	buf := make([]byte, total)
	le32(buf, 0, atype)
	le32(buf, 4, uint32(total))
	buf[8] = 1
	buf[9] = byte(len(name_bytes) / 2)
	le16(buf, 10, 64)
	le16(buf, 14, id)
	le64(buf, 16, uint64(vcn_start))
	le64(buf, 24, uint64(vcn_end))
	le16(buf, 32, uint16(run_off))
	le64(buf, 40, uint64(alloc))
	le64(buf, 48, uint64(actual))
	le64(buf, 56, uint64(initialized))
	copy(buf[64:], name_bytes)
	copy(buf[run_off:], run_bytes)
	return buf
}

func standardInformationValue() []byte {
	buf := make([]byte, 0x30)
	le64(buf, 0x00, testFiletime)
	le64(buf, 0x08, testFiletime)
	le64(buf, 0x10, testFiletime)
	le64(buf, 0x18, testFiletime)
	return buf
}

func fileNameValue(parent uint64, name string, namespace byte,
	flags uint32, real_size, alloc_size int64) []byte {

	name_bytes := utf16le(name)
	buf := make([]byte, 0x42+len(name_bytes))
	le64(buf, 0x00, parent)
	le64(buf, 0x08, testFiletime)
	le64(buf, 0x10, testFiletime)
	le64(buf, 0x18, testFiletime)
	le64(buf, 0x20, testFiletime)
	le64(buf, 0x28, uint64(alloc_size))
	le64(buf, 0x30, uint64(real_size))
	le32(buf, 0x38, flags)
	buf[0x40] = byte(len(name_bytes) / 2)
	buf[0x41] = namespace
	copy(buf[0x42:], name_bytes)
	return buf
}

func attrListEntry(atype uint32, vcn int64, ref uint64, id uint16) []byte {
	buf := make([]byte, 32)
	le32(buf, 0, atype)
	le16(buf, 4, 32)
	buf[6] = 0
	buf[7] = 26
	le64(buf, 8, uint64(vcn))
	le64(buf, 16, ref)
	le16(buf, 24, id)
	return buf
}

// ---- index encoders ----

const (
	entryFlagNode = 1
	entryFlagLast = 2
)

func indexEntry(ref uint64, key []byte, flags uint32, vcn int64) []byte {
	length := 16 + len(key)
	if flags&entryFlagNode != 0 {
		length = align8(length) + 8
	} else {
		length = align8(length)
	}

	buf := make([]byte, length)
	le64(buf, 0, ref)
	le16(buf, 8, uint16(length))
	le16(buf, 10, uint16(len(key)))
	le32(buf, 12, flags)
	copy(buf[16:], key)
	if flags&entryFlagNode != 0 {
		le64(buf, length-8, uint64(vcn))
	}
	return buf
}

// INDEX_ROOT value: tree metadata plus the inline root node.
func indexRootValue(indexed_type uint32, node_flags byte,
	entries [][]byte) []byte {

	entries_size := 0
	for _, entry := range entries {
		entries_size += len(entry)
	}

	// Node header is at 16; entries start right after it.
	total := 16 + 16 + entries_size
	buf := make([]byte, total)
	le32(buf, 0, indexed_type)
	le32(buf, 4, 1) // COLLATION_FILENAME
	le32(buf, 8, testIndexSize)
	buf[12] = 1 // clusters per index record

	le32(buf, 16, 16)
	le32(buf, 20, uint32(16+entries_size))
	le32(buf, 24, uint32(16+entries_size))
	buf[28] = node_flags

	offset := 32
	for _, entry := range entries {
		copy(buf[offset:], entry)
		offset += len(entry)
	}
	return buf
}

// A fixed up INDX record.
func indxRecord(vcn int64, entries [][]byte) []byte {
	buf := make([]byte, testIndexSize)
	copy(buf, "INDX")
	le16(buf, 4, 0x28) // usa offset
	le16(buf, 6, 9)    // usa count: 8 sectors + usn
	le64(buf, 0x10, uint64(vcn))

	// Node header at 0x18; entries begin at 0x40.
	entries_size := 0
	for _, entry := range entries {
		entries_size += len(entry)
	}
	le32(buf, 0x18, 0x40-0x18)
	le32(buf, 0x1C, uint32(0x40-0x18+entries_size))
	le32(buf, 0x20, uint32(testIndexSize-0x18))

	offset := 0x40
	for _, entry := range entries {
		copy(buf[offset:], entry)
		offset += len(entry)
	}

	applyTestFixups(buf)
	return buf
}

// Stamp the update sequence: save each sector's last two bytes into
// the array and overwrite them with the USN.
func applyTestFixups(record []byte) {
	usa_offset := int(binary.LittleEndian.Uint16(record[4:]))
	usa_count := int(binary.LittleEndian.Uint16(record[6:]))

	le16(record, usa_offset, testUSN)
	for i := 1; i < usa_count; i++ {
		trailer := i*testSectorSize - 2
		copy(record[usa_offset+2*i:], record[trailer:trailer+2])
		le16(record, trailer, testUSN)
	}
}

// ---- record encoder ----

func fileRecord(record_number uint32, flags uint16, base_ref uint64,
	attrs [][]byte) []byte {

	buf := make([]byte, testRecordSize)
	copy(buf, "FILE")
	le16(buf, 4, 0x30) // usa offset
	le16(buf, 6, 9)    // usa count
	le16(buf, 0x10, 1) // sequence
	le16(buf, 0x12, 1) // link count
	le16(buf, 0x14, 0x48)
	le16(buf, 0x16, flags)
	le32(buf, 0x1C, testRecordSize)
	le64(buf, 0x20, base_ref)
	le16(buf, 0x28, uint16(len(attrs)+1))
	le32(buf, 0x2C, record_number)

	offset := 0x48
	for _, attr := range attrs {
		copy(buf[offset:], attr)
		offset += len(attr)
	}

	// End marker.
	le32(buf, offset, 0xFFFFFFFF)
	offset += 8

	le32(buf, 0x18, uint32(offset)) // used size

	applyTestFixups(buf)
	return buf
}

// ---- the volume ----

type testVolume struct {
	image []byte
}

func (self *testVolume) writeCluster(cluster int64, data []byte) {
	copy(self.image[cluster*testClusterSize:], data)
}

func (self *testVolume) writeRecord(record_number int64, record []byte) {
	offset := (testMFTCluster+record_number)*testClusterSize
	copy(self.image[offset:], record)
}

func testUpcaseData() []byte {
	data := make([]byte, 65536*2)
	for c := 0; c < 65536; c++ {
		v := uint16(c)
		if c >= 'a' && c <= 'z' {
			v = uint16(c - 32)
		}
		le16(data, c*2, v)
	}
	return data
}

func testBootSector() []byte {
	buf := make([]byte, testSectorSize)
	copy(buf[3:], "NTFS    ")
	le16(buf, 0x0B, testSectorSize)
	buf[0x0D] = 8 // sectors per cluster
	le64(buf, 0x28, testTotalSectors)
	le64(buf, 0x30, testMFTCluster)
	buf[0x40] = 1    // record size: 1 cluster
	buf[0x44] = 0xF4 // index record size: 2^12 bytes
	le64(buf, 0x48, 0x1234567890abcdef)
	le16(buf, 510, 0xaa55)
	return buf
}

// The 512 numeric children of many_subdirs in collation order.
func testSubdirNames() []string {
	names := make([]string, 512)
	for i := range names {
		names[i] = fmt.Sprintf("%d", i+1)
	}
	sort.Strings(names)
	return names
}

const (
	dirEntryFlagDirectory = 0x10000000
)

func simpleRecord(number uint32, name string, extra ...[]byte) []byte {
	attrs := [][]byte{
		residentAttr(16, 0, "", standardInformationValue()),
		residentAttr(48, 1, "",
			fileNameValue(testRef(5), name, 3, 0, 0, 0)),
	}
	attrs = append(attrs, extra...)
	return fileRecord(number, 0x01, 0, attrs)
}

func buildTestImage() []byte {
	vol := &testVolume{
		image: make([]byte, testTotalClusters*testClusterSize),
	}

	copy(vol.image, testBootSector())

	// $MFT itself.
	vol.writeRecord(0, simpleRecord(0, "$MFT",
		nonResidentAttr(128, 2, "", 0, testMFTRecords-1,
			[]testRun{{lcn: testMFTCluster, length: testMFTRecords}},
			testMFTRecords*testRecordSize,
			testMFTRecords*testRecordSize,
			testMFTRecords*testRecordSize)))

	vol.writeRecord(1, simpleRecord(1, "$MFTMirr"))
	vol.writeRecord(2, simpleRecord(2, "$LogFile"))

	// $Volume carries the label and version.
	volume_info := make([]byte, 0x0C)
	volume_info[8] = 3
	volume_info[9] = 1
	vol.writeRecord(3, simpleRecord(3, "$Volume",
		residentAttr(96, 2, "", utf16le("TESTVOL")),
		residentAttr(112, 3, "", volume_info)))

	vol.writeRecord(4, simpleRecord(4, "$AttrDef"))

	vol.writeRecord(5, buildRootDirRecord())

	vol.writeRecord(6, simpleRecord(6, "$Bitmap"))
	vol.writeRecord(7, simpleRecord(7, "$Boot"))

	// Records 8 and 9 hold the $DATA segments of pagefile.sys.
	vol.writeRecord(8, fileRecord(8, 0x01, testRef(15), [][]byte{
		nonResidentAttr(128, 0, "", 0, 3,
			[]testRun{{lcn: testClusterPageSeg1, length: 4}},
			testPageStreamSize, testPageStreamSize,
			testPageStreamSize),
	}))
	vol.writeRecord(9, fileRecord(9, 0x01, testRef(15), [][]byte{
		nonResidentAttr(128, 0, "", 4, 7,
			[]testRun{{lcn: testClusterPageSeg2, length: 4}},
			testPageStreamSize, testPageStreamSize,
			testPageStreamSize),
	}))

	// $UpCase.
	vol.writeRecord(10, simpleRecord(10, "$UpCase",
		nonResidentAttr(128, 2, "", 0, 31,
			[]testRun{{lcn: testUpcaseCluster, length: 32}},
			131072, 131072, 131072)))
	vol.writeCluster(testUpcaseCluster, testUpcaseData())

	// A tiny resident file.
	vol.writeRecord(11, simpleRecord(11, "file-with-12345",
		residentAttr(128, 2, "", []byte("12345"))))

	// A non resident 1000 byte file, known by a DOS short name and a
	// Win32 long name. The short name comes first in the record so
	// namespace ranking has to do real work.
	vol.writeRecord(12, fileRecord(12, 0x01, 0, [][]byte{
		residentAttr(16, 0, "", standardInformationValue()),
		residentAttr(48, 1, "",
			fileNameValue(testRef(5), "1000BY~1", 2, 0, 1000, 4096)),
		residentAttr(48, 2, "",
			fileNameValue(testRef(5), "1000-bytes-file", 1, 0,
				1000, 4096)),
		nonResidentAttr(128, 3, "", 0, 0,
			[]testRun{{lcn: testCluster1000Bytes, length: 1}},
			testClusterSize, 1000, 1000),
	}))
	content := []byte{}
	for i := 0; i < 200; i++ {
		content = append(content, "12345"...)
	}
	vol.writeCluster(testCluster1000Bytes, content)

	// A sparse file: "12345" at 0, "11111" at 500000. Its only name
	// is POSIX, the lowest ranked namespace.
	vol.writeRecord(13, fileRecord(13, 0x01, 0, [][]byte{
		residentAttr(16, 0, "", standardInformationValue()),
		residentAttr(48, 1, "",
			fileNameValue(testRef(5), "sparse-file", 0, 0,
				testSparseDataSize, 123*testClusterSize)),
		nonResidentAttr(128, 2, "", 0, 122,
			[]testRun{
				{lcn: testClusterSparseA, length: 1},
				{length: 121, sparse: true},
				{lcn: testClusterSparseB, length: 1},
			},
			123*testClusterSize, testSparseDataSize,
			testSparseDataSize),
	}))
	vol.writeCluster(testClusterSparseA, []byte("12345"))
	sparse_tail := make([]byte, testClusterSize)
	copy(sparse_tail[500000-122*testClusterSize:], "11111")
	vol.writeCluster(testClusterSparseB, sparse_tail)

	// A large directory with overflow index records.
	vol.writeRecord(14, buildManySubdirsRecord(vol))

	// pagefile.sys: attributes spread over records 8 and 9.
	vol.writeRecord(15, fileRecord(15, 0x01, 0, [][]byte{
		residentAttr(16, 0, "", standardInformationValue()),
		residentAttr(48, 1, "",
			fileNameValue(testRef(5), "pagefile.sys", 3, 0,
				testPageStreamSize, testPageStreamSize)),
		residentAttr(32, 2, "", buildPagefileAttrList()),
	}))
	page_content := make([]byte, testPageStreamSize)
	for i := range page_content {
		page_content[i] = byte(i % 251)
	}
	vol.writeCluster(testClusterPageSeg1, page_content[:4*testClusterSize])
	vol.writeCluster(testClusterPageSeg2, page_content[4*testClusterSize:])

	return vol.image
}

func buildPagefileAttrList() []byte {
	list := []byte{}
	list = append(list, attrListEntry(16, 0, testRef(15), 0)...)
	list = append(list, attrListEntry(48, 0, testRef(15), 1)...)
	list = append(list, attrListEntry(128, 0, testRef(8), 0)...)
	list = append(list, attrListEntry(128, 4, testRef(9), 0)...)
	return list
}

func buildRootDirRecord() []byte {
	children := []struct {
		name   string
		record uint64
		is_dir bool
	}{
		{"1000-bytes-file", 12, false},
		{"file-with-12345", 11, false},
		{"foo", 11, false},
		{"many_subdirs", 14, true},
		{"pagefile.sys", 15, false},
		{"sparse-file", 13, false},
	}

	entries := [][]byte{}
	for _, child := range children {
		flags := uint32(0)
		if child.is_dir {
			flags = dirEntryFlagDirectory
		}
		key := fileNameValue(testRef(5), child.name, 1, flags, 0, 0)
		entries = append(entries,
			indexEntry(testRef(child.record), key, 0, 0))
	}
	entries = append(entries, indexEntry(0, nil, entryFlagLast, 0))

	return fileRecord(5, 0x03, 0, [][]byte{
		residentAttr(16, 0, "", standardInformationValue()),
		residentAttr(48, 1, "",
			fileNameValue(testRef(5), ".", 3, dirEntryFlagDirectory,
				0, 0)),
		residentAttr(144, 2, "$I30",
			indexRootValue(48, 0, entries)),
	})
}

// Split 512 names over 16 leaf INDX records with 15 separator keys in
// the root node.
func buildManySubdirsRecord(vol *testVolume) []byte {
	names := testSubdirNames()

	leaf_sizes := make([]int, testIndexLeafCount)
	for i := 0; i < testIndexLeafCount-1; i++ {
		leaf_sizes[i] = 31
	}
	leaf_sizes[testIndexLeafCount-1] =
		len(names) - (testIndexLeafCount - 1) - 31*(testIndexLeafCount-1)

	root_entries := [][]byte{}
	cursor := 0
	for leaf := 0; leaf < testIndexLeafCount; leaf++ {
		leaf_entries := [][]byte{}
		for i := 0; i < leaf_sizes[leaf]; i++ {
			name := names[cursor]
			cursor++
			key := fileNameValue(testRef(14), name, 1,
				dirEntryFlagDirectory, 0, 0)
			leaf_entries = append(leaf_entries,
				indexEntry(testRef(100+uint64(cursor)), key, 0, 0))
		}
		leaf_entries = append(leaf_entries,
			indexEntry(0, nil, entryFlagLast, 0))

		vol.writeCluster(testClusterIndexBase+int64(leaf),
			indxRecord(int64(leaf), leaf_entries))

		// A separator key follows every leaf but the last.
		if leaf < testIndexLeafCount-1 {
			name := names[cursor]
			cursor++
			key := fileNameValue(testRef(14), name, 1,
				dirEntryFlagDirectory, 0, 0)
			root_entries = append(root_entries,
				indexEntry(testRef(100+uint64(cursor)), key,
					entryFlagNode, int64(leaf)))
		}
	}
	root_entries = append(root_entries,
		indexEntry(0, nil, entryFlagNode|entryFlagLast,
			int64(testIndexLeafCount-1)))

	bitmap := make([]byte, 8)
	for i := range bitmap {
		bitmap[i] = 0xFF
	}

	return fileRecord(14, 0x03, 0, [][]byte{
		residentAttr(16, 0, "", standardInformationValue()),
		residentAttr(48, 1, "",
			fileNameValue(testRef(5), "many_subdirs", 1,
				dirEntryFlagDirectory, 0, 0)),
		residentAttr(144, 2, "$I30",
			indexRootValue(48, 1, root_entries)),
		nonResidentAttr(160, 3, "$I30", 0, 15,
			[]testRun{{lcn: testClusterIndexBase,
				length: testIndexLeafCount}},
			testIndexLeafCount*testIndexSize,
			testIndexLeafCount*testIndexSize,
			testIndexLeafCount*testIndexSize),
		residentAttr(176, 4, "$I30", bitmap),
	})
}
