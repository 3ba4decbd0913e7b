package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/fpang/gallery-sweep/internal/filehandler"
	"github.com/fpang/gallery-sweep/internal/triage"
)

const dateLayout = "2006-01-02 15:04"

// renderSnapshot formats the current asset with its position and counters.
func renderSnapshot(snap triage.Snapshot) string {
	var b strings.Builder
	b.WriteString("\n")

	cur, ok := snap.Current()
	if !ok {
		if snap.IsLoading {
			b.WriteString("Loading...\n")
		} else {
			b.WriteString("No photos or videos found.\n")
		}
		fmt.Fprintf(&b, "Kept: %d  Discarded: %d\n", snap.Kept, snap.Discarded)
		return b.String()
	}

	fmt.Fprintf(&b, "[%d/%s] %s  %s\n", snap.CurrentIndex+1, totalLabel(snap), cur.Kind, cur.Filename)
	if !cur.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "  Taken:  %s\n", cur.CreatedAt.Local().Format(dateLayout))
	}
	if cur.Size > 0 {
		fmt.Fprintf(&b, "  Size:   %s\n", filehandler.FormatSize(cur.Size))
	}
	fmt.Fprintf(&b, "  URI:    %s\n", cur.DisplayURI())
	fmt.Fprintf(&b, "  Status: %s\n", cur.Status)
	fmt.Fprintf(&b, "Kept: %d  Discarded: %d\n", snap.Kept, snap.Discarded)
	return b.String()
}

// totalLabel marks the total with "+" while more pages remain.
func totalLabel(snap triage.Snapshot) string {
	label := strconv.Itoa(snap.Total)
	if snap.HasNextPage {
		label += "+"
	}
	return label
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// summaryTable lists every loaded asset with its mark.
func summaryTable(snap triage.Snapshot) string {
	rows := make([][]string, 0, len(snap.Assets))
	for i, a := range snap.Assets {
		marker := ""
		if i == snap.CurrentIndex {
			marker = ">"
		}
		rows = append(rows, []string{
			marker,
			strconv.Itoa(i + 1),
			a.Filename,
			string(a.Kind),
			filehandler.FormatSize(a.Size),
			string(a.Status),
		})
	}
	out := renderTable(
		[]string{"", "#", "Name", "Kind", "Size", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	)
	return fmt.Sprintf("%s\nTotal: %s  Kept: %d  Discarded: %d", out, totalLabel(snap), snap.Kept, snap.Discarded)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
