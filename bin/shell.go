package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/ntfslib/parser"
)

var (
	shell_command = app.Command(
		"shell", "Explore a volume interactively.")

	shell_command_file_arg = shell_command.Arg(
		"file", "The image file to inspect",
	).Required().OpenFile(os.O_RDONLY, os.FileMode(0666))

	shell_command_image_offset = shell_command.Flag(
		"image_offset", "An offset into the file.",
	).Default("0").Int64()
)

const shell_help = `Commands:
  attr <path>       List the attributes of a file.
  attr_runs <path>  Show the data runs of a file.
  cd <path>         Change the current directory.
  dir [<path>]      List a directory.
  fileinfo <path>   Show information about a file.
  fsinfo            Show information about the filesystem.
  get <path> [out]  Extract a data stream.
  help              Show this help.
  exit, quit        Leave the shell.

A path component of /<record-number> (decimal or 0x hex) addresses a
record directly.`

func doSHELL() {
	ntfs_ctx, err := getNTFSContext(
		*shell_command_file_arg, *shell_command_image_offset)
	kingpin.FatalIfError(err, "Can not open filesystem")

	cwd, err := ntfs_ctx.RootDirectory()
	kingpin.FatalIfError(err, "Can not open root directory")
	cwd_path := "/"

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%v> ", cwd_path)
		if !scanner.Scan() {
			break
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		command := fields[0]
		args := fields[1:]

		switch command {
		case "exit", "quit":
			return

		case "help":
			fmt.Println(shell_help)

		case "fsinfo":
			printFSInfo(os.Stdout, ntfs_ctx)

		case "cd":
			if len(args) != 1 {
				fmt.Println("Usage: cd <path>")
				continue
			}
			next, err := getMFTEntry(ntfs_ctx, cwd, args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			if !next.IsDir() {
				fmt.Printf("Not a directory: %v\n", args[0])
				continue
			}
			cwd = next
			full_path, _ := parser.GetFullPath(ntfs_ctx, cwd)
			cwd_path = "/" + full_path

		case "dir":
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			entry, err := getMFTEntry(ntfs_ctx, cwd, target)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			infos, err := parser.ListDir(ntfs_ctx, entry)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printDirListing(os.Stdout, target, infos)

		case "fileinfo":
			if len(args) != 1 {
				fmt.Println("Usage: fileinfo <path>")
				continue
			}
			entry, err := getMFTEntry(ntfs_ctx, cwd, args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printFileInfo(os.Stdout, ntfs_ctx, entry)

		case "attr":
			if len(args) != 1 {
				fmt.Println("Usage: attr <path>")
				continue
			}
			entry, err := getMFTEntry(ntfs_ctx, cwd, args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printAttrListing(os.Stdout, ntfs_ctx, entry)

		case "attr_runs":
			if len(args) != 1 {
				fmt.Println("Usage: attr_runs <path>")
				continue
			}
			entry, err := getMFTEntry(ntfs_ctx, cwd, args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printAttrRuns(os.Stdout, ntfs_ctx, entry)

		case "get":
			if len(args) < 1 || len(args) > 2 {
				fmt.Println("Usage: get <path> [output]")
				continue
			}
			doShellGet(ntfs_ctx, cwd, args)

		default:
			fmt.Printf("Unknown command %q - try help.\n", command)
		}
	}
}

func doShellGet(ntfs_ctx *parser.NTFSContext, cwd *parser.MFT_ENTRY,
	args []string) {

	path := args[0]
	stream_name := ""
	parts := strings.SplitN(path, ":", 2)
	if len(parts) == 2 {
		path = parts[0]
		stream_name = parts[1]
	}

	entry, err := getMFTEntry(ntfs_ctx, cwd, path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	stream, err := entry.DataStream(ntfs_ctx, stream_name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	out := os.Stdout
	if len(args) == 2 {
		fd, err := os.Create(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer fd.Close()
		out = fd
	}

	err = copyStream(out, stream)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "shell":
			doSHELL()
		default:
			return false
		}
		return true
	})
}
