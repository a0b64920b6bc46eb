// framestool inspects character frame folders.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arcadeearth/launchsite/internal/assets"
	"github.com/arcadeearth/launchsite/internal/character"
	"github.com/arcadeearth/launchsite/internal/preload"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "list", "ls":
		cmdList(args)
	case "states":
		cmdStates(args)
	case "check":
		cmdCheck(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`framestool - character frame folder utility

Usage:
  framestool <command> [options] <dir>...

Commands:
  info <dir>...                  Show folders, frame counts and formats
  list [-n N] <dir> [pattern]    List frame ids (optional substring filter)
  states [-mobile] <dir>...      Print the resolved state to sequence table
  check [-workers N] <dir>...    Decode every frame and report failures

Later directories take priority over earlier ones.

Examples:
  framestool info ./frames
  framestool states -mobile ./frames ./frames-winter
  framestool check ./frames`)
}

// open builds a manager over dirs, each later dir one priority higher.
func open(dirs []string) *assets.Manager {
	m := assets.NewManager()
	for i, dir := range dirs {
		name := filepath.Base(filepath.Clean(dir))
		if name == "." || name == string(filepath.Separator) {
			name = fmt.Sprintf("source%d", i)
		}
		for _, s := range m.Sources() {
			if s.Name == name {
				name = fmt.Sprintf("%s%d", name, i)
			}
		}
		m.AddSource(assets.DirSource(name, dir, i))
	}
	return m
}

func frames(m *assets.Manager) []assets.Frame {
	list, err := m.Frames()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return list
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: framestool info <dir>...")
		os.Exit(1)
	}

	m := open(args)
	list := frames(m)

	type folderStat struct {
		folder string
		state  string
		first  string
		count  int
	}
	byFolder := make(map[string]*folderStat)
	extCount := make(map[string]int)
	for _, f := range list {
		key := f.Source + "/" + f.Folder
		st, ok := byFolder[key]
		if !ok {
			state := "(unmapped)"
			if s, ok := character.FolderState(f.Folder, nil); ok {
				state = s.String()
			}
			st = &folderStat{folder: key, state: state, first: f.ID}
			byFolder[key] = st
		}
		st.count++
		extCount[strings.ToLower(filepath.Ext(f.Path))]++
	}

	fmt.Printf("Sources: %d\n", len(m.Sources()))
	fmt.Printf("Frames:  %d\n", len(list))
	fmt.Println()
	fmt.Println("Folders:")

	var stats []*folderStat
	for _, st := range byFolder {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].folder < stats[j].folder })
	for _, st := range stats {
		size := "?"
		if data, err := m.Load(st.first); err == nil {
			if cfg, _, err := assets.DecodeConfig(data); err == nil {
				size = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
			}
		}
		fmt.Printf("  %-32s %-12s %5d  %s\n", st.folder, st.state, st.count, size)
	}

	fmt.Println()
	fmt.Println("Formats:")
	for ext, count := range extCount {
		fmt.Printf("  %-6s %d\n", ext, count)
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N frames (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: framestool list <dir> [pattern]")
		os.Exit(1)
	}

	list := frames(open([]string{fs.Arg(0)}))

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, f := range list {
		if pattern != "" && !strings.Contains(strings.ToLower(f.ID), pattern) {
			continue
		}
		fmt.Println(f.ID)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Printf("\n%d frames matching %q\n", count, pattern)
	}
}

func cmdStates(args []string) {
	fs := flag.NewFlagSet("states", flag.ExitOnError)
	mobile := fs.Bool("mobile", false, "Resolve the mobile frame set")
	strict := fs.Bool("strict", false, "Fail on folders that map to no state")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: framestool states [-mobile] <dir>...")
		os.Exit(1)
	}

	opts := character.LoadOptions{Strict: *strict}
	if *mobile {
		opts.Mode = character.Mobile
	}
	seqs, err := character.LoadFrom(open(fs.Args()), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	meta := character.DefaultMeta()
	fmt.Printf("%-12s %6s %6s %5s %-10s %s\n", "STATE", "FRAMES", "FPS", "LOOP", "FALLBACK", "FIRST")
	for _, s := range seqs.States() {
		seq := seqs[s]
		m := meta.Get(s)
		fallback := "-"
		if m.Fallback != character.None {
			fallback = m.Fallback.String()
		}
		first := ""
		if len(seq.Frames) > 0 {
			first = seq.Frames[0]
		}
		fmt.Printf("%-12s %6d %6.1f %5v %-10s %s\n", s, seq.Len(), seq.FPS, m.Loop, fallback, first)
	}

	var missing []string
	for _, s := range character.AllStates() {
		if !seqs.Has(s) {
			missing = append(missing, s.String())
		}
	}
	if len(missing) > 0 {
		fmt.Printf("\nMissing: %s\n", strings.Join(missing, ", "))
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	workers := fs.Int("workers", 4, "Parallel decoders")
	timeout := fs.Duration("timeout", 2*time.Minute, "Give up after this long")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: framestool check <dir>...")
		os.Exit(1)
	}

	m := open(fs.Args())
	list := frames(m)
	cache := preload.New(m, preload.WithWorkers(*workers))
	defer cache.Close()

	start := time.Now()
	recs := make([]*preload.Record, len(list))
	for i, f := range list {
		recs[i] = cache.Ensure(f.ID, preload.Options{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := preload.Wait(ctx, recs...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, r := range recs {
		if r.Failed() {
			failed++
			err := r.Err()
			if errors.Is(err, assets.ErrNotFound) {
				fmt.Printf("MISSING %s\n", r.ID())
			} else {
				fmt.Printf("FAILED  %s: %v\n", r.ID(), err)
			}
		}
	}

	st := cache.Stats()
	fmt.Printf("\nChecked %d frames in %s (%d fetches, %d failures)\n",
		len(recs), time.Since(start).Round(time.Millisecond), st.Fetches, st.Failures)
	if failed > 0 {
		os.Exit(1)
	}
}
