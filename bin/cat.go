package main

import (
	"io"
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/ntfslib/parser"
)

var (
	get_command = app.Command(
		"get", "Extract a file's data stream.")

	get_command_file_arg = get_command.Arg(
		"file", "The image file to inspect",
	).Required().OpenFile(os.O_RDONLY, os.FileMode(0666))

	get_command_arg = get_command.Arg(
		"path", "The path to extract (path:stream selects an ADS).",
	).Required().String()

	get_command_output = get_command.Arg(
		"output", "Write the stream to this file instead of stdout.",
	).String()

	get_command_image_offset = get_command.Flag(
		"image_offset", "An offset into the file.",
	).Default("0").Int64()
)

func doGET() {
	ntfs_ctx, err := getNTFSContext(
		*get_command_file_arg, *get_command_image_offset)
	kingpin.FatalIfError(err, "Can not open filesystem")

	stream, err := parser.GetDataForPath(ntfs_ctx, *get_command_arg)
	kingpin.FatalIfError(err, "Can not open stream")

	var out io.Writer = os.Stdout
	if *get_command_output != "" {
		fd, err := os.Create(*get_command_output)
		kingpin.FatalIfError(err, "Can not create output")
		defer fd.Close()
		out = fd
	}

	err = copyStream(out, stream)
	kingpin.FatalIfError(err, "Can not copy stream")
}

func copyStream(out io.Writer, stream *parser.StreamReader) error {
	buf := make([]byte, 64*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			_, werr := out.Write(buf[:n])
			if werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "get":
			doGET()
		default:
			return false
		}
		return true
	})
}
