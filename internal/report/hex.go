package report

import (
	"fmt"
	"io"
	"strconv"
)

// Hex writes data as rows of width space-separated hexadecimal bytes,
// each row prefixed with its offset.
func Hex(w io.Writer, data []byte, width int) {
	if width <= 0 {
		width = 16
	}
	if len(data) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}

	// Align all row offsets to the width of the highest one.
	paddingWidth := len(strconv.Itoa(len(data) - 1))
	for off := 0; off < len(data); off += width {
		end := min(off+width, len(data))
		fmt.Fprintf(w, "%*d: [% x]\n", paddingWidth, off, data[off:end])
	}
}
