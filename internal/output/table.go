package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/routelens/routelens/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatLookup renders a summary table followed by the source evidence.
func (f *TableFormatter) FormatLookup(result *core.LookupResult) (string, error) {
	if result == nil {
		return "", nil
	}

	summary := summaryTable(result)
	summary.SetStyle(table.StyleRounded)
	rendered := summary.Render()

	if len(result.Sources) > 0 {
		sources := sourcesTable(result)
		sources.SetStyle(table.StyleRounded)
		rendered += "\n" + sources.Render()
	}

	rendered += renderDetailSections(detailSections(result), false)
	return rendered, nil
}

func summaryTable(result *core.LookupResult) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, row := range summaryRows(result) {
		t.AppendRow(table.Row{row.Field, row.Value})
	}
	return t
}

func sourcesTable(result *core.LookupResult) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Source", "Status", "OK", "Cached", "URL / Error"})
	for _, src := range result.Sources {
		t.AppendRow(table.Row{
			src.Name,
			sourceStatus(src),
			yesNo(src.OK),
			yesNo(src.Cached),
			sourceOutcome(src),
		})
	}
	t.AppendFooter(table.Row{
		"",
		"",
		"",
		"",
		fmt.Sprintf("%d upstream errors, %d cache hits, %dms", result.Meta.UpstreamErrors, result.Meta.CacheHits, result.Meta.DurationMs),
	})
	return t
}

func classifiedTable(rows []classifiedRow) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Input", "Kind", "Value"})
	for _, row := range rows {
		t.AppendRow(table.Row{row.Input, string(row.Kind), row.Value})
	}
	return t
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
