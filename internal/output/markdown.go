package output

import (
	"fmt"
	"strings"

	"github.com/routelens/routelens/internal/core"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatLookup renders a lookup result as Markdown.
func (f *MarkdownFormatter) FormatLookup(result *core.LookupResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s (%s)\n\n", escapeMarkdownCell(result.Query), result.Kind))
	sb.WriteString(summaryTable(result).RenderMarkdown())
	sb.WriteString("\n")

	if len(result.Sources) > 0 {
		sb.WriteString("\n### Sources\n\n")
		sb.WriteString(sourcesTable(result).RenderMarkdown())
		sb.WriteString("\n")
	}

	sb.WriteString(renderDetailSections(detailSections(result), true))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
