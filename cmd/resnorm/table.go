package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/umilab/resnorm/internal/batch"
	"github.com/umilab/resnorm/internal/remap"
)

// writeTable prints rows under header as left-aligned columns. Widths are
// measured in terminal cells, so wide runes in file names line up.
func writeTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	rule := make([]string, len(header))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}

	writeRow(w, widths, header)
	writeRow(w, widths, rule)
	for _, row := range rows {
		writeRow(w, widths, row)
	}
}

func writeRow(w io.Writer, widths []int, cells []string) {
	var b strings.Builder
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		if i > 0 {
			b.WriteString("  ")
		}
		if i == len(cells)-1 || i == len(widths)-1 {
			b.WriteString(cell)
		} else {
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
	}
	fmt.Fprintln(w, b.String()) //nolint:errcheck
}

func printBatchSummary(w io.Writer, res batch.Result) {
	rows := make([][]string, 0, len(res.PerFile)+1)
	var markers, data int
	for _, f := range res.PerFile {
		rows = append(rows, []string{f.Name, strconv.Itoa(f.Markers), strconv.Itoa(f.Data), strconv.Itoa(f.Records() + 1)})
		markers += f.Markers
		data += f.Data
	}
	rows = append(rows, []string{"TOTAL", strconv.Itoa(markers), strconv.Itoa(data), strconv.Itoa(res.Lines)})

	fmt.Fprintln(w) //nolint:errcheck
	writeTable(w, []string{"FILE", "MARKERS", "DATA", "LINES"}, rows)
}

func printRemapSummary(w io.Writer, input string, res remap.Result) {
	fmt.Fprintln(w) //nolint:errcheck
	writeTable(w, []string{"FILE", "ROWS", "LINES"}, [][]string{
		{input, strconv.Itoa(res.Rows), strconv.Itoa(res.Lines)},
	})
}
