package main

import (
	"os"
	"strconv"
	"strings"

	"www.velocidex.com/golang/ntfslib/parser"
)

func getNTFSContext(image *os.File, image_offset int64) (
	*parser.NTFSContext, error) {
	reader, err := parser.NewPagedReader(&parser.OffsetReader{
		Offset: image_offset,
		Reader: image,
	}, 1024, 10000)
	if err != nil {
		return nil, err
	}

	ntfs_ctx, err := parser.GetNTFSContext(reader, 0)
	if err != nil {
		return nil, err
	}

	// Case folding should follow the volume, not ASCII.
	err = ntfs_ctx.ReadUpcase()
	if err != nil {
		return nil, err
	}

	return ntfs_ctx, nil
}

// A path component of the form /<record-number> addresses a record
// directly. The number is decimal, or hex with a 0x prefix.
func parseRecordNumber(component string) (int64, bool) {
	if strings.HasPrefix(component, "0x") {
		number, err := strconv.ParseInt(component[2:], 16, 64)
		return number, err == nil
	}

	number, err := strconv.ParseInt(component, 10, 64)
	return number, err == nil
}

// Resolve a path or a /<record-number> reference to an MFT entry,
// relative to the given directory.
func getMFTEntry(ntfs_ctx *parser.NTFSContext, cwd *parser.MFT_ENTRY,
	target string) (*parser.MFT_ENTRY, error) {

	absolute := strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "\\")
	if cwd == nil || absolute {
		root, err := ntfs_ctx.RootDirectory()
		if err != nil {
			return nil, err
		}
		cwd = root
	}

	trimmed := strings.Trim(target, "/\\")
	if trimmed == "" {
		return cwd, nil
	}

	if absolute {
		number, ok := parseRecordNumber(trimmed)
		if ok {
			return ntfs_ctx.GetMFT(number)
		}
	}

	return cwd.Open(ntfs_ctx, trimmed)
}
