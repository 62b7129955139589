package main

import (
	"fmt"
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/ntfslib/parser"
)

var (
	fsinfo_command = app.Command(
		"fsinfo", "Show information about the filesystem.")

	fsinfo_command_file_arg = fsinfo_command.Arg(
		"file", "The image file to inspect",
	).Required().OpenFile(os.O_RDONLY, os.FileMode(0666))

	fsinfo_command_image_offset = fsinfo_command.Flag(
		"image_offset", "An offset into the file.",
	).Default("0").Int64()
)

func doFSINFO() {
	ntfs_ctx, err := getNTFSContext(
		*fsinfo_command_file_arg, *fsinfo_command_image_offset)
	kingpin.FatalIfError(err, "Can not open filesystem")

	printFSInfo(os.Stdout, ntfs_ctx)
}

func printFSInfo(out *os.File, ntfs_ctx *parser.NTFSContext) {
	boot := ntfs_ctx.Boot
	fmt.Fprintf(out, "Sector size:       %v\n", boot.SectorSize())
	fmt.Fprintf(out, "Cluster size:      %v\n", boot.ClusterSize())
	fmt.Fprintf(out, "Record size:       %v\n", boot.RecordSize())
	fmt.Fprintf(out, "Index record size: %v\n", boot.IndexRecordSize())
	fmt.Fprintf(out, "Volume size:       %v\n", boot.VolumeSize())
	fmt.Fprintf(out, "Serial number:     %#x\n", boot.SerialNumber())

	// The $Volume record carries the label and the NTFS version.
	volume_entry, err := ntfs_ctx.GetMFT(3)
	if err != nil {
		return
	}

	name_attr, err := volume_entry.GetAttribute(
		ntfs_ctx, parser.ATTR_TYPE_VOLUME_NAME, "")
	if err == nil {
		label, err := name_attr.VolumeName(ntfs_ctx)
		if err == nil {
			fmt.Fprintf(out, "Volume label:      %v\n", label.Name())
		}
	}

	info_attr, err := volume_entry.GetAttribute(
		ntfs_ctx, parser.ATTR_TYPE_VOLUME_INFORMATION, "")
	if err == nil {
		info, err := info_attr.VolumeInformation(ntfs_ctx)
		if err == nil {
			fmt.Fprintf(out, "NTFS version:      %d.%d\n",
				info.MajorVersion(), info.MinorVersion())
			fmt.Fprintf(out, "Dirty:             %v\n", info.IsDirty())
		}
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "fsinfo":
			doFSINFO()
		default:
			return false
		}
		return true
	})
}
