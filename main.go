package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leech/torrent"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// listenPort is the port advertised to trackers; the core never accepts
// incoming connections (spec.md §6).
const listenPort = 6881

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: ./leech <path-to-torrent-file> [output-dir]\n")
		os.Exit(1)
	}

	path := os.Args[1]
	outputDir := "."
	if len(os.Args) > 2 {
		outputDir = os.Args[2]
	}

	colorEnabled := term.IsTerminal(int(os.Stdout.Fd()))

	status("[green]Parsing torrent file[reset] %s", colorEnabled, path)

	meta, peers, err := torrent.LoadTorrent(path, outputDir, listenPort)
	if err != nil {
		fatal("[red]failed to load torrent:[reset] %v", colorEnabled, err)
	}

	status("[green]Parsed:[reset] %s", colorEnabled, meta.DebugString())
	status("[green]Found %d peer(s)[reset]", colorEnabled, len(peers))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bar := progressbar.DefaultBytes(meta.TotalSize, meta.Name)

	progress := func(downloaded, total int64) {
		bar.Set64(downloaded)
	}

	if err := torrent.Leech(ctx, meta, peers, torrent.DefaultConfig(), progress); err != nil {
		fatal("[red]download failed:[reset] %v", colorEnabled, err)
	}

	bar.Finish()

	status("[green]Download complete:[reset] %s", colorEnabled, meta.OutputPath)
}

func status(format string, colorEnabled bool, args ...interface{}) {
	colorizer := &colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !colorEnabled,
		Reset:   true,
	}
	fmt.Println(colorizer.Color(fmt.Sprintf(format, args...)))
}

func fatal(format string, colorEnabled bool, args ...interface{}) {
	status(format, colorEnabled, args...)
	os.Exit(1)
}
