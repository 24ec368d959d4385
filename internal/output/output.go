package output

import (
	"fmt"
	"strings"

	"github.com/routelens/routelens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// Formatter renders lookup results.
type Formatter interface {
	FormatLookup(result *core.LookupResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// FormatLookupList renders several lookups. JSON output is a single array so
// it stays machine readable.
func FormatLookupList(format Format, results []*core.LookupResult) (string, error) {
	if format == FormatJSON {
		return marshalJSON(nonNil(results), true)
	}

	formatter := NewFormatter(format)
	separator := "\n\n"
	if format == FormatYAML {
		separator = "\n---\n"
	}

	rendered := make([]string, 0, len(results))
	for _, result := range results {
		if result == nil {
			continue
		}
		value, err := formatter.FormatLookup(result)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		rendered = append(rendered, strings.TrimRight(value, "\n"))
	}

	return strings.Join(rendered, separator), nil
}

// FormatClassified renders query classifications, one row per input.
func FormatClassified(format Format, inputs []string, classified []core.ClassifiedQuery) (string, error) {
	rows := make([]classifiedRow, 0, len(classified))
	for i, q := range classified {
		row := classifiedRow{Kind: q.Kind, Value: q.Value}
		if i < len(inputs) {
			row.Input = inputs[i]
		}
		rows = append(rows, row)
	}

	switch format {
	case FormatJSON:
		return marshalJSON(rows, true)
	case FormatYAML:
		return marshalYAML(rows)
	case FormatMarkdown:
		return classifiedTable(rows).RenderMarkdown(), nil
	default:
		return classifiedTable(rows).Render(), nil
	}
}

type classifiedRow struct {
	Input string         `json:"input"`
	Kind  core.QueryKind `json:"kind"`
	Value string         `json:"value,omitempty"`
}

func nonNil(results []*core.LookupResult) []*core.LookupResult {
	out := make([]*core.LookupResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
