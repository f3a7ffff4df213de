// Package report renders read-only views of allocator state.
//
// The allocators expose their state as Stats and Block snapshots; everything in
// this package only reads those snapshots and never touches an arena.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	glyphAllocated = "+++"
	glyphFree      = "---"
)

// Stats is a snapshot of allocator counters.
type Stats struct {
	Allocs     uint64 // Successful allocations since Init.
	Frees      uint64 // Releases since Init.
	Capacity   int    // Payload bytes available when nothing is allocated.
	UsedBytes  int    // Payload bytes held by allocated blocks.
	FreeBytes  int    // Payload bytes held by free blocks.
	UsedBlocks int
	FreeBlocks int

	// Coalescing heap only.
	Splits           uint64
	CoalesceForward  uint64
	CoalesceBackward uint64
}

// Live returns the number of allocations that have not been released.
func (s Stats) Live() uint64 {
	return s.Allocs - s.Frees
}

// Block describes one block of an arena.
type Block struct {
	Offset    int    // Arena offset of the block (header for the coalescing heap).
	Size      int    // Payload size in bytes.
	Allocated bool   // Whether the block is handed out.
	ID        uint64 // Allocation id; only meaningful for allocated heap blocks.
}

// Options controls how tables are rendered.
type Options struct {
	Color  bool // Colour state glyphs with ANSI escapes.
	ShowID bool // Add the allocation id column.
}

var printer = message.NewPrinter(language.English)

// Number formats n with English digit grouping.
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Header writes the dump title line followed by the running counters.
func Header(w io.Writer, title string, s Stats) {
	fmt.Fprintf(w, "%s after %s alloc, %s free\n", title, printer.Sprintf("%d", s.Allocs), printer.Sprintf("%d", s.Frees))
}

// Summary writes the occupancy figures of s.
func Summary(w io.Writer, s Stats) {
	fmt.Fprintf(w, "capacity: %s bytes, used: %s bytes in %s blocks, free: %s bytes in %s blocks\n",
		Number(s.Capacity),
		Number(s.UsedBytes), Number(s.UsedBlocks),
		Number(s.FreeBytes), Number(s.FreeBlocks),
	)
}

// Table writes blocks as a table, one row per block in the given order.
func Table(w io.Writer, blocks []Block, opts Options) {
	if len(blocks) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}

	header := []string{"State", "Offset", "Size"}
	if opts.ShowID {
		header = append(header, "ID")
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	allocated := paint(color.FgRed, opts.Color)
	free := paint(color.FgGreen, opts.Color)
	for _, b := range blocks {
		state := free(glyphFree)
		id := ""
		if b.Allocated {
			state = allocated(glyphAllocated)
			id = strconv.FormatUint(b.ID, 10)
		}
		row := []string{state, Number(b.Offset), Number(b.Size)}
		if opts.ShowID {
			row = append(row, id)
		}
		table.Append(row)
	}
	table.Render()
}

func paint(attr color.Attribute, enabled bool) func(a ...any) string {
	c := color.New(attr)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}
