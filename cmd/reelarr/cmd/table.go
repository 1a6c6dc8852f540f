package cmd

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/observability"
)

// renderTable writes rows as a rounded table on a terminal and as plain
// aligned columns otherwise. Columns listed in rightAligned (0-based) are
// right aligned.
func renderTable(w io.Writer, headers []string, rows [][]string, rightAligned ...int) {
	columns := len(headers)
	if columns == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if observability.IsTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		style := table.StyleLight
		style.Options = table.Options{}
		style.Format.Header = text.FormatDefault
		tw.SetStyle(style)
	}

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{
			Number:      col + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	tw.Render()
}

func itoa[T ~int | ~int64](n T) string {
	return strconv.FormatInt(int64(n), 10)
}

var passHeaders = []string{"Pass", "Fetched", "Inserted", "Duplicates", "Skipped", "Deleted", "Errors"}

func passRow(name string, s ingestor.IngestStats) []string {
	return []string{
		name,
		itoa(s.Fetched),
		itoa(s.Inserted),
		itoa(s.Duplicates),
		itoa(s.Skipped),
		itoa(s.Deleted),
		itoa(s.ErrorCount),
	}
}
