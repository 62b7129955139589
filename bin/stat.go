package main

import (
	"fmt"
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/ntfslib/parser"
)

var (
	fileinfo_command = app.Command(
		"fileinfo", "Show information about a file.")

	fileinfo_command_file_arg = fileinfo_command.Arg(
		"file", "The image file to inspect",
	).Required().OpenFile(os.O_RDONLY, os.FileMode(0666))

	fileinfo_command_arg = fileinfo_command.Arg(
		"path", "The path or /<record-number> to describe.",
	).Required().String()

	fileinfo_command_image_offset = fileinfo_command.Flag(
		"image_offset", "An offset into the file.",
	).Default("0").Int64()
)

func doFILEINFO() {
	ntfs_ctx, err := getNTFSContext(
		*fileinfo_command_file_arg, *fileinfo_command_image_offset)
	kingpin.FatalIfError(err, "Can not open filesystem")

	mft_entry, err := getMFTEntry(ntfs_ctx, nil, *fileinfo_command_arg)
	kingpin.FatalIfError(err, "Can not open path")

	printFileInfo(os.Stdout, ntfs_ctx, mft_entry)
}

func printFileInfo(out *os.File, ntfs_ctx *parser.NTFSContext,
	mft_entry *parser.MFT_ENTRY) {

	full_path, _ := parser.GetFullPath(ntfs_ctx, mft_entry)
	fmt.Fprintf(out, "Record:    %v\n", mft_entry.Reference())
	fmt.Fprintf(out, "FullPath:  /%v\n", full_path)

	infos, err := parser.Stat(ntfs_ctx, mft_entry)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	for _, info := range infos {
		fmt.Fprintf(out, "Name:      %v (%v)\n", info.Name, info.NameType)
		fmt.Fprintf(out, "  IsDir %v Size %v Allocated %v\n",
			info.IsDir, info.Size, info.AllocatedSize)
		fmt.Fprintf(out, "  Btime %v Mtime %v Atime %v Ctime %v\n",
			info.Btime, info.Mtime, info.Atime, info.Ctime)
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "fileinfo":
			doFILEINFO()
		default:
			return false
		}
		return true
	})
}
