// Package cli is an interactive shell over a single in-memory index.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/silenteh/GeoSpatialIndex/dataset"
	"github.com/silenteh/GeoSpatialIndex/rtree"

	"github.com/fatih/color"
)

var (
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	infoColor  = color.New(color.FgCyan)
	titleColor = color.New(color.FgYellow, color.Bold)
)

type Cli struct {
	scanner *bufio.Scanner
	out     io.Writer
	tree    *rtree.Tree[dataset.Record]
	nextID  uint32
	timeout time.Duration
}

func NewCli(s *bufio.Scanner, out io.Writer, t *rtree.Tree[dataset.Record]) *Cli {
	return &Cli{scanner: s, out: out, tree: t, nextID: 1, timeout: 10 * time.Second}
}

// Start reads commands until EXIT or the end of input.
func (c *Cli) Start() {
	c.printHelp()
	c.printPrompt()
	for c.scanner.Scan() {
		if !c.processInput(c.scanner.Text()) {
			return
		}
		c.printPrompt()
	}
}

func (c *Cli) printHelp() {
	titleColor.Fprintln(c.out, "\nGeoSpatialIndex CLI")
	fmt.Fprint(c.out, `
Available Commands:
  INSERT <x> <y> [name]     Store a record at the given coordinates
  SEARCH <x> <y>            List the records stored at the given coordinates
  GENERATE <n> [us|prague]  Insert n random records
  LOAD <file>               Insert the records of a record file (.zst, .sz, raw)
  SAVE <file>               Write the records inserted so far to a record file
  DUMP                      Print the tree structure
  RENDER <file.bmp> [size]  Draw the tree to a bitmap
  STATS                     Print size, height and capacity, and verify the tree
  HELP                      Show this message
  EXIT                      Terminate this session
`)
}

func (c *Cli) printPrompt() {
	fmt.Fprint(c.out, "> ")
}

// processInput runs one command line and reports whether to keep going.
func (c *Cli) processInput(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return true
	}
	command := strings.ToLower(fields[0])
	switch command {
	default:
		errColor.Fprintf(c.out, "Unknown command \"%s\"\n", command)
	case "insert":
		c.processInsertCommand(fields[1:])
	case "search":
		c.processSearchCommand(fields[1:])
	case "generate":
		c.processGenerateCommand(fields[1:])
	case "load":
		c.processLoadCommand(fields[1:])
	case "save":
		c.processSaveCommand(fields[1:])
	case "dump":
		if err := c.tree.Dump(c.out); err != nil {
			errColor.Fprintf(c.out, "Dump failed: %v\n", err)
		}
	case "render":
		c.processRenderCommand(fields[1:])
	case "stats":
		c.processStatsCommand()
	case "help":
		c.printHelp()
	case "exit", "quit":
		return false
	}
	return true
}

func parseCoords(args []string) (float64, float64, error) {
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x %q", args[0])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y %q", args[1])
	}
	return x, y, nil
}

func (c *Cli) processInsertCommand(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: INSERT <x> <y> [name]")
		return
	}
	x, y, err := parseCoords(args)
	if err != nil {
		errColor.Fprintln(c.out, err)
		return
	}
	rec := dataset.Record{ID: c.nextID, Name: strings.Join(args[2:], " "), X: x, Y: y}
	c.nextID++
	c.tree.Insert(rec, x, y)
	okColor.Fprintf(c.out, "Inserted %s\n", rec)
}

func (c *Cli) processSearchCommand(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: SEARCH <x> <y>")
		return
	}
	x, y, err := parseCoords(args)
	if err != nil {
		errColor.Fprintln(c.out, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	start := time.Now()
	found, err := c.tree.Search(ctx, x, y)
	if err != nil {
		errColor.Fprintf(c.out, "Search failed: %v\n", err)
	}
	if len(found) == 0 {
		fmt.Fprintln(c.out, "No records found.")
		return
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	for _, rec := range found {
		fmt.Fprintln(c.out, rec)
	}
	infoColor.Fprintf(c.out, "%d record(s) in %v\n", len(found), time.Since(start))
}

func (c *Cli) processGenerateCommand(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "Usage: GENERATE <n> [us|prague]")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		errColor.Fprintf(c.out, "invalid count %q\n", args[0])
		return
	}
	bounds := dataset.USBounds
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "us":
		case "prague":
			bounds = dataset.PragueBounds
		default:
			errColor.Fprintf(c.out, "unknown region %q\n", args[1])
			return
		}
	}

	records := dataset.Generate(n, bounds, time.Now().UnixNano())
	c.load(records)
	okColor.Fprintf(c.out, "Inserted %d random records\n", n)
}

func (c *Cli) load(records []dataset.Record) {
	items := make([]rtree.Item[dataset.Record], len(records))
	for i, rec := range records {
		rec.ID = c.nextID
		c.nextID++
		items[i] = rtree.Item[dataset.Record]{Value: rec, X: rec.X, Y: rec.Y}
	}
	c.tree.Load(items)
}

func (c *Cli) processLoadCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: LOAD <file>")
		return
	}
	records, err := dataset.Load(args[0])
	if err != nil {
		errColor.Fprintf(c.out, "Load failed: %v\n", err)
		return
	}
	c.load(records)
	okColor.Fprintf(c.out, "Inserted %d records from %s\n", len(records), args[0])
}

func (c *Cli) processSaveCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: SAVE <file>")
		return
	}
	records := c.records()
	if err := dataset.Save(args[0], records); err != nil {
		errColor.Fprintf(c.out, "Save failed: %v\n", err)
		return
	}
	okColor.Fprintf(c.out, "Saved %d records to %s (%s)\n", len(records), args[0], dataset.CodecFor(args[0]))
}

// records returns every stored record, ordered by id.
func (c *Cli) records() []dataset.Record {
	var all []dataset.Record
	c.tree.Scan(func(rec dataset.Record) bool {
		all = append(all, rec)
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (c *Cli) processRenderCommand(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "Usage: RENDER <file.bmp> [size]")
		return
	}
	size := 512
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			errColor.Fprintf(c.out, "invalid size %q\n", args[1])
			return
		}
		size = n
	}

	file, err := os.Create(args[0])
	if err != nil {
		errColor.Fprintf(c.out, "Render failed: %v\n", err)
		return
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err := c.tree.RenderBMP(w, size); err != nil {
		errColor.Fprintf(c.out, "Render failed: %v\n", err)
		return
	}
	if err := w.Flush(); err != nil {
		errColor.Fprintf(c.out, "Render failed: %v\n", err)
		return
	}
	okColor.Fprintf(c.out, "Wrote %dx%d bitmap to %s\n", size, size, args[0])
}

func (c *Cli) processStatsCommand() {
	fmt.Fprintf(c.out, "records:  %d\n", c.tree.Len())
	fmt.Fprintf(c.out, "height:   %d\n", c.tree.Height())
	fmt.Fprintf(c.out, "capacity: %d-%d entries per node\n", c.tree.MinEntries(), c.tree.MaxEntries())
	if err := c.tree.Check(); err != nil {
		errColor.Fprintf(c.out, "check:    FAILED\n%v\n", err)
		return
	}
	okColor.Fprintln(c.out, "check:    ok")
}
