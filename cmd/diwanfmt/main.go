package main

import (
	"fmt"
	"os"
	"strings"

	"godiwan/internal/codec"
	"godiwan/internal/storage"
	"godiwan/internal/version"
)

// diwanfmt normalizes every ```diwan block in the given markdown files,
// the way gofmt does for Go source. With -l it only lists files that
// would change.
func main() {
	args := os.Args[1:]
	listOnly := false
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Println(version.String())
			return
		case "-l":
			listOnly = true
			args = args[1:]
		}
	}
	if len(args) == 0 {
		fmt.Println("usage: diwanfmt [-l] <doc.md> ...")
		os.Exit(2)
	}

	exit := 0
	for _, path := range args {
		b, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exit = 1
			continue
		}
		text := string(b)
		changed := false
		for _, blk := range storage.FindBlocks(text) {
			norm := codec.Serialize(codec.Parse(blk.Content))
			if strings.TrimRight(norm, "\n") == strings.TrimRight(blk.Content, "\n") {
				continue
			}
			next, err := storage.ReplaceBlock(text, blk.Content, norm)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				exit = 1
				continue
			}
			text = next
			changed = true
		}
		if !changed {
			continue
		}
		if listOnly {
			fmt.Println(path)
			continue
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exit = 1
		}
	}
	os.Exit(exit)
}
