package parser

import (
	"io"
)

const (
	NTFS_OEM_NAME = "NTFS    "

	MAX_SECTOR_SIZE  = 4 * 1024
	MAX_CLUSTER_SIZE = 2 * 1024 * 1024
	MAX_RECORD_SIZE  = 64 * 1024
)

// The boot sector is the first 512 bytes of the volume. All geometry
// is derived from it.
type NTFS_BOOT_SECTOR struct {
	b      [512]byte
	Offset int64
}

func NewBootSector(reader io.ReaderAt, offset int64) (
	*NTFS_BOOT_SECTOR, error) {
	self := &NTFS_BOOT_SECTOR{Offset: offset}
	n, err := reader.ReadAt(self.b[:], offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n < len(self.b) {
		return nil, &InvalidBootSectorError{Reason: "Short read"}
	}
	return self, nil
}

func (self *NTFS_BOOT_SECTOR) OemName() string {
	return string(self.b[3:11])
}

func (self *NTFS_BOOT_SECTOR) SectorSize() int64 {
	return int64(u16(self.b[0x0B:]))
}

// The sectors per cluster field uses a dual encoding: a positive
// value is a sector count, a negative value n means 2^(-n) sectors.
// The byte must be sign extended before widening.
func (self *NTFS_BOOT_SECTOR) SectorsPerCluster() int64 {
	v := int8(self.b[0x0D])
	if v > 0 {
		return int64(v)
	}
	shift := -int64(v)
	if shift > 31 {
		return 0
	}
	return int64(1) << uint(shift)
}

func (self *NTFS_BOOT_SECTOR) ClusterSize() int64 {
	size, ok := checkedMul(self.SectorsPerCluster(), self.SectorSize())
	if !ok {
		return 0
	}
	return size
}

func (self *NTFS_BOOT_SECTOR) TotalSectors() int64 {
	return int64(u64(self.b[0x28:]))
}

func (self *NTFS_BOOT_SECTOR) VolumeSize() int64 {
	size, ok := checkedMul(self.TotalSectors(), self.SectorSize())
	if !ok {
		return 0
	}
	return size
}

func (self *NTFS_BOOT_SECTOR) TotalClusters() int64 {
	cluster_size := self.ClusterSize()
	if cluster_size == 0 {
		return 0
	}
	return self.VolumeSize() / cluster_size
}

func (self *NTFS_BOOT_SECTOR) MFTCluster() int64 {
	return int64(u64(self.b[0x30:]))
}

func (self *NTFS_BOOT_SECTOR) MFTOffset() (int64, error) {
	offset, ok := checkedMul(self.MFTCluster(), self.ClusterSize())
	if !ok {
		return 0, &InvalidBootSectorError{Reason: "MFT offset overflow"}
	}
	return offset, nil
}

// Record and index record sizes share a signed 8 bit dual encoding: a
// positive value counts clusters, a negative value n means 2^(-n)
// bytes. Widening through unsigned before sign extension would read
// 0xF6 as 246 clusters instead of 1024 bytes - the sign must be taken
// from the raw byte.
func (self *NTFS_BOOT_SECTOR) decodeRecordSize(raw byte) int64 {
	v := int8(raw)
	if v > 0 {
		size, ok := checkedMul(int64(v), self.ClusterSize())
		if !ok {
			return 0
		}
		return size
	}
	shift := -int64(v)
	if shift > 31 {
		return 0
	}
	return int64(1) << uint(shift)
}

func (self *NTFS_BOOT_SECTOR) RecordSize() int64 {
	return self.decodeRecordSize(self.b[0x40])
}

func (self *NTFS_BOOT_SECTOR) IndexRecordSize() int64 {
	return self.decodeRecordSize(self.b[0x44])
}

func (self *NTFS_BOOT_SECTOR) SerialNumber() uint64 {
	return u64(self.b[0x48:])
}

func (self *NTFS_BOOT_SECTOR) Magic() uint16 {
	return u16(self.b[510:])
}

func (self *NTFS_BOOT_SECTOR) IsValid() error {
	if self.Magic() != 0xaa55 {
		return &InvalidBootSectorError{Reason: "Invalid magic"}
	}

	if self.OemName() != NTFS_OEM_NAME {
		return &InvalidBootSectorError{Reason: "Invalid OEM name"}
	}

	sector_size := self.SectorSize()
	if !isPowerOfTwo(sector_size) ||
		sector_size < 256 || sector_size > MAX_SECTOR_SIZE {
		return &UnsupportedSectorSizeError{Size: sector_size}
	}

	cluster_size := self.ClusterSize()
	if !isPowerOfTwo(cluster_size) ||
		cluster_size < sector_size ||
		cluster_size > MAX_CLUSTER_SIZE {
		return &UnsupportedClusterSizeError{Size: cluster_size}
	}

	record_size := self.RecordSize()
	if !isPowerOfTwo(record_size) ||
		record_size < sector_size || record_size > MAX_RECORD_SIZE {
		return &UnsupportedRecordSizeError{Size: record_size}
	}

	index_record_size := self.IndexRecordSize()
	if !isPowerOfTwo(index_record_size) ||
		index_record_size < sector_size ||
		index_record_size > MAX_RECORD_SIZE {
		return &UnsupportedRecordSizeError{Size: index_record_size}
	}

	if self.VolumeSize() == 0 || self.TotalClusters() == 0 {
		return &InvalidBootSectorError{Reason: "Volume size is 0"}
	}

	if self.MFTCluster() >= self.TotalClusters() {
		return &InvalidBootSectorError{
			Reason: "MFT cluster outside the volume"}
	}

	return nil
}
