package main

import (
	"fmt"
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/ntfslib/parser"
)

var (
	attr_command = app.Command(
		"attr", "List the attributes of a file.")

	attr_command_file_arg = attr_command.Arg(
		"file", "The image file to inspect",
	).Required().OpenFile(os.O_RDONLY, os.FileMode(0666))

	attr_command_arg = attr_command.Arg(
		"path", "The path or /<record-number> to inspect.",
	).Required().String()

	attr_command_image_offset = attr_command.Flag(
		"image_offset", "An offset into the file.",
	).Default("0").Int64()

	attr_runs_command = app.Command(
		"attr_runs", "Show the data runs of a file's attributes.")

	attr_runs_command_file_arg = attr_runs_command.Arg(
		"file", "The image file to inspect",
	).Required().OpenFile(os.O_RDONLY, os.FileMode(0666))

	attr_runs_command_arg = attr_runs_command.Arg(
		"path", "The path or /<record-number> to inspect.",
	).Required().String()

	attr_runs_command_image_offset = attr_runs_command.Flag(
		"image_offset", "An offset into the file.",
	).Default("0").Int64()
)

func doATTR() {
	ntfs_ctx, err := getNTFSContext(
		*attr_command_file_arg, *attr_command_image_offset)
	kingpin.FatalIfError(err, "Can not open filesystem")

	mft_entry, err := getMFTEntry(ntfs_ctx, nil, *attr_command_arg)
	kingpin.FatalIfError(err, "Can not open path")

	printAttrListing(os.Stdout, ntfs_ctx, mft_entry)
}

func printAttrListing(out *os.File, ntfs_ctx *parser.NTFSContext,
	mft_entry *parser.MFT_ENTRY) {

	attrs, err := mft_entry.EnumerateAttributes(ntfs_ctx)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	for _, attr := range attrs {
		name := attr.Name()
		if name != "" {
			name = " " + name
		}
		fmt.Fprintf(out, "%v%v id %v resident %v size %v\n",
			attr.Type().Name, name, attr.Attribute_id(),
			attr.IsResident(), attr.DataSize())
	}
}

func doATTRRUNS() {
	ntfs_ctx, err := getNTFSContext(
		*attr_runs_command_file_arg, *attr_runs_command_image_offset)
	kingpin.FatalIfError(err, "Can not open filesystem")

	mft_entry, err := getMFTEntry(ntfs_ctx, nil, *attr_runs_command_arg)
	kingpin.FatalIfError(err, "Can not open path")

	printAttrRuns(os.Stdout, ntfs_ctx, mft_entry)
}

func printAttrRuns(out *os.File, ntfs_ctx *parser.NTFSContext,
	mft_entry *parser.MFT_ENTRY) {

	attrs, err := mft_entry.EnumerateAttributes(ntfs_ctx)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	for _, attr := range attrs {
		if attr.IsResident() {
			continue
		}

		runs, err := attr.RunList(ntfs_ctx)
		if err != nil {
			fmt.Fprintf(out, "%v: Error: %v\n", attr.Type().Name, err)
			continue
		}

		fmt.Fprintf(out, "%v VCN %v-%v:\n", attr.Type().Name,
			attr.Runlist_vcn_start(), attr.Runlist_vcn_end())
		for _, run := range runs {
			fmt.Fprintf(out, "  %v\n", run)
		}
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "attr":
			doATTR()
		case "attr_runs":
			doATTRRUNS()
		default:
			return false
		}
		return true
	})
}
