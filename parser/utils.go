package parser

import (
	"path"
)

// Traverse the parent references of an entry up to the root and
// return its full path. Stops at loops or when the configured depth
// is exceeded.
func GetFullPath(ntfs *NTFSContext, mft_entry *MFT_ENTRY) (string, error) {
	max_depth := ntfs.GetOptions().MaxDirectoryDepth

	components := []string{}
	seen := make(map[uint32]bool)

	for depth := 0; depth < max_depth; depth++ {
		id := mft_entry.Record_number()
		if seen[id] || id == ROOT_DIR_RECORD {
			break
		}
		seen[id] = true

		info, err := mft_entry.Info(ntfs)
		if err != nil {
			return path.Join(components...), err
		}
		if len(info.Names) == 0 {
			return path.Join(components...), NotFoundError
		}

		name, err := mft_entry.PreferredName(ntfs, 0)
		if err != nil {
			return path.Join(components...), err
		}
		components = append([]string{name}, components...)

		parent, err := ntfs.GetRecord(info.Names[0].Parent)
		if err != nil {
			return path.Join(components...), err
		}
		mft_entry = parent
	}

	return path.Join(components...), nil
}

func CapUint64(v uint64, max uint64) uint64 {
	if v > max {
		return max
	}
	return v
}

func CapUint32(v uint32, max uint32) uint32 {
	if v > max {
		return max
	}
	return v
}

func CapUint16(v uint16, max uint16) uint16 {
	if v > max {
		return max
	}
	return v
}

func CapInt64(v int64, max int64) int64 {
	if v > max {
		return max
	}
	return v
}
