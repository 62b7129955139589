package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/ntfslib/parser"
)

var (
	dir_command = app.Command(
		"dir", "List a directory.")

	dir_command_file_arg = dir_command.Arg(
		"file", "The image file to inspect",
	).Required().OpenFile(os.O_RDONLY, os.FileMode(0666))

	dir_command_arg = dir_command.Arg(
		"path", "The path to list or a /<record-number>.",
	).Default("/").String()

	dir_command_image_offset = dir_command.Flag(
		"image_offset", "An offset into the file.",
	).Default("0").Int64()
)

func doDIR() {
	ntfs_ctx, err := getNTFSContext(
		*dir_command_file_arg, *dir_command_image_offset)
	kingpin.FatalIfError(err, "Can not open filesystem")

	dir, err := getMFTEntry(ntfs_ctx, nil, *dir_command_arg)
	kingpin.FatalIfError(err, "Can not open path")

	infos, err := parser.ListDir(ntfs_ctx, dir)
	kingpin.FatalIfError(err, "Can not list directory")

	printDirListing(os.Stdout, *dir_command_arg, infos)
}

func printDirListing(out *os.File, path string, infos []*parser.FileInfo) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{
		"MFT Id",
		"Size",
		"Mtime",
		"IsDir",
		"Filename",
	})
	table.SetCaption(true, fmt.Sprintf("Directory listing for %v", path))
	defer table.Render()

	for _, info := range infos {
		table.Append([]string{
			info.MFTId,
			fmt.Sprintf("%v", info.Size),
			fmt.Sprintf("%v", info.Mtime.In(time.UTC)),
			fmt.Sprintf("%v", info.IsDir),
			info.Name,
		})
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "dir":
			doDIR()
		default:
			return false
		}
		return true
	})
}
