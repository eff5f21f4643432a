package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const cellGap = "  "

type column struct {
	title string
	right bool
}

func left(title string) column  { return column{title: title} }
func right(title string) column { return column{title: title, right: true} }

// textTable lays out rows in display-width aligned columns.
type textTable struct {
	cols []column
	rows [][]string
}

func newTable(cols ...column) *textTable {
	return &textTable{cols: cols}
}

func (t *textTable) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// lines returns the header followed by every row. Trailing padding is
// dropped on a left-aligned last column.
func (t *textTable) lines() []string {
	if len(t.cols) == 0 {
		return nil
	}
	widths := make([]int, len(t.cols))
	for i, c := range t.cols {
		widths[i] = runewidth.StringWidth(c.title)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	render := func(cell func(i int) string) string {
		parts := make([]string, len(t.cols))
		last := len(t.cols) - 1
		for i, c := range t.cols {
			switch {
			case c.right:
				parts[i] = runewidth.FillLeft(cell(i), widths[i])
			case i == last:
				parts[i] = cell(i)
			default:
				parts[i] = runewidth.FillRight(cell(i), widths[i])
			}
		}
		return strings.Join(parts, cellGap)
	}

	out := []string{render(func(i int) string { return t.cols[i].title })}
	for _, row := range t.rows {
		out = append(out, render(func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}))
	}
	return out
}

// write prints the table and a trailing blank line.
func (t *textTable) write(w io.Writer) error {
	_, err := fmt.Fprintln(w, strings.Join(t.lines(), "\n")+"\n")
	return err
}
