package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/semcube/semcube/executor"
)

// renderResult prints a QueryResult as a markdown table, the same
// rendering style the teacher's own CLI uses for Relations
// (datalog/executor/table_formatter.go), column order taken from the
// result's own annotation rather than re-sorted.
func renderResult(w *strings.Builder, result executor.QueryResult) {
	cols := resultColumns(result)
	if len(cols) == 0 {
		w.WriteString("_Empty result_\n")
		return
	}

	alignment := make([]tw.Align, len(cols))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(cols)
	for _, row := range result.Data {
		rendered := make([]string, len(cols))
		for i, c := range cols {
			rendered[i] = formatValue(row[c])
		}
		table.Append(rendered)
	}
	table.Render()
	fmt.Fprintf(w, "\n_%d rows_\n", len(result.Data))
}

func resultColumns(result executor.QueryResult) []string {
	var cols []string
	for _, m := range result.Annotation.TimeDimensions {
		cols = append(cols, m.Name)
	}
	for _, m := range result.Annotation.Dimensions {
		cols = append(cols, m.Name)
	}
	for _, m := range result.Annotation.Measures {
		cols = append(cols, m.Name)
	}
	if len(cols) == 0 && len(result.Data) > 0 {
		for k := range result.Data[0] {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}
	return cols
}

func formatValue(v any) string {
	if v == nil {
		return color.New(color.Faint).Sprint("nil")
	}
	return fmt.Sprintf("%v", v)
}
