// Package main provides the interactive quince client.
//
// Usage:
//
//	quincectl -addr 127.0.0.1:9401
//
// Commands: uploadf <file> <dest>, downlf <path>, removef <path>,
// downltar <.ext>, dispfnames <dir>, quit.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fruitsalade/quince/internal/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9401", "Gateway address")
	flag.Parse()

	cl, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cl.Close()

	fmt.Printf("Connected to %s\n", *addr)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("quince> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		cmd, args := args[0], args[1:]
		switch cmd {
		case "quit", "exit":
			return
		case "uploadf":
			cmdUpload(cl, args)
		case "downlf":
			cmdDownload(cl, args)
		case "removef":
			cmdRemove(cl, args)
		case "downltar":
			cmdTarball(cl, args)
		case "dispfnames":
			cmdListNames(cl, args)
		case "help":
			printUsage()
		default:
			fmt.Printf("Unknown command: %s\n", cmd)
			printUsage()
		}
	}
}

func printUsage() {
	fmt.Println("Commands:")
	fmt.Println("  uploadf <file> <dest>   upload a local file to a destination directory")
	fmt.Println("  downlf <path>           download a file to the current directory")
	fmt.Println("  removef <path>          remove a stored file")
	fmt.Println("  downltar <.ext>         download an archive of all files of one type")
	fmt.Println("  dispfnames <dir>        list stored file names under a directory")
	fmt.Println("  quit                    disconnect and exit")
}

// cmdUpload validates the local file before any bytes hit the wire; a missing
// file never starts a transfer.
func cmdUpload(cl *client.Client, args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: uploadf <file> <dest>")
		return
	}
	verdict, err := cl.Upload(args[0], args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(verdict)
}

// cmdDownload writes the fetched file to its basename in the working
// directory.
func cmdDownload(cl *client.Client, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: downlf <path>")
		return
	}
	local := filepath.Base(args[0])
	f, err := os.Create(local)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	n, err := cl.Download(args[0], f)
	f.Close()
	if err != nil {
		os.Remove(local)
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Downloaded %s (%d bytes)\n", local, n)
}

func cmdRemove(cl *client.Client, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: removef <path>")
		return
	}
	verdict, err := cl.Remove(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(verdict)
}

// cmdTarball saves the archive as "<type>.tar" in the working directory,
// e.g. pdf.tar for downltar .pdf.
func cmdTarball(cl *client.Client, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: downltar <.ext>")
		return
	}
	local := strings.TrimPrefix(args[0], ".") + ".tar"
	f, err := os.Create(local)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	n, err := cl.Tarball(args[0], f)
	f.Close()
	if err != nil {
		os.Remove(local)
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Downloaded %s (%d bytes)\n", local, n)
}

func cmdListNames(cl *client.Client, args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: dispfnames <dir>")
		return
	}
	names, err := cl.ListNames(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("No files found")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}
