package util

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// TableColumn describes one column of RenderTable output.
type TableColumn struct {
	Header string
	Key    string
	// AlignRight pads on the left, for numeric columns.
	AlignRight bool
	width      int
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// RenderTable writes rows as space separated columns sized to their widest cell.
// Cells may carry color codes; they do not count toward the width.
func RenderTable(w io.Writer, columns []TableColumn, rows []map[string]interface{}) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No data to display")
		return
	}

	cells := make([][]string, len(rows))
	for i := range columns {
		columns[i].width = displayWidth(columns[i].Header)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col.Key]; ok {
				cells[r][i] = fmt.Sprint(v)
			}
			columns[i].width = max(columns[i].width, displayWidth(cells[r][i]))
		}
	}

	header := make([]string, len(columns))
	rule := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.pad(col.Header)
		rule[i] = strings.Repeat("-", col.width)
	}
	writeRow(w, header)
	writeRow(w, rule)
	for _, row := range cells {
		line := make([]string, len(columns))
		for i, col := range columns {
			line[i] = col.pad(row[i])
		}
		writeRow(w, line)
	}
}

func writeRow(w io.Writer, parts []string) {
	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " "), " "))
}

func (c TableColumn) pad(s string) string {
	gap := c.width - displayWidth(s)
	if gap <= 0 {
		return s
	}
	if c.AlignRight {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func displayWidth(s string) int {
	return len([]rune(ansiEscape.ReplaceAllString(s, "")))
}
