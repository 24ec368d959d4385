package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/routelens/routelens/internal/core"
)

type summaryRow struct {
	Field string
	Value string
}

func statusLabel(result *core.LookupResult) string {
	if result == nil {
		return ""
	}
	switch {
	case result.Failed():
		return "error"
	case result.Kind == core.ResultKindSearch:
		return "search"
	case result.Partial:
		return "partial"
	default:
		return "ok"
	}
}

// summaryRows flattens the top-level fields of a result into Field/Value
// pairs shared by the table and markdown renderers.
func summaryRows(result *core.LookupResult) []summaryRow {
	if result == nil {
		return nil
	}

	rows := []summaryRow{
		{"Query", result.Query},
		{"Kind", string(result.Kind)},
		{"Status", statusLabel(result)},
	}
	if result.Failed() {
		rows = append(rows, summaryRow{"Error", result.Error})
		if result.ErrorKind != "" {
			rows = append(rows, summaryRow{"Error kind", string(result.ErrorKind)})
		}
	}

	rows = append(rows, dataRows(result.Data)...)

	if rl := result.RateLimit; rl != nil {
		rows = append(rows, summaryRow{"Rate limit", rateLimitLabel(rl)})
	}
	rows = append(rows, summaryRow{"Trust", string(result.Trust)})
	return rows
}

func dataRows(data any) []summaryRow {
	var rows []summaryRow
	switch d := data.(type) {
	case *core.IPData:
		if d == nil {
			return nil
		}
		covering := "none"
		if d.CoveringPrefix != nil {
			covering = *d.CoveringPrefix
		}
		rows = append(rows,
			summaryRow{"IP", d.IP},
			summaryRow{"Covering prefix", covering},
			summaryRow{"ASNs", joinOrNone(d.ASNs)},
		)
		if d.Routing != nil {
			rows = append(rows, routingRows(*d.Routing)...)
		}
		if d.LocalASN != nil {
			local := fmt.Sprintf("AS%d", d.LocalASN.Number)
			if d.LocalASN.Organization != "" {
				local += " " + d.LocalASN.Organization
			}
			rows = append(rows, summaryRow{"Local ASN", local})
		}
	case *core.PrefixData:
		if d == nil {
			return nil
		}
		rows = append(rows, summaryRow{"Prefix", d.Prefix})
		rows = append(rows, routingRows(d.PrefixSummary)...)
	case *core.ASNData:
		if d == nil {
			return nil
		}
		rows = append(rows,
			summaryRow{"ASN", "AS" + d.ASN},
			summaryRow{"Prefixes", strconv.Itoa(d.PrefixCount)},
		)
		if len(d.PrefixSample) > 0 {
			sample := strings.Join(d.PrefixSample, ", ")
			if d.PrefixCount > len(d.PrefixSample) {
				sample += ", ..."
			}
			rows = append(rows, summaryRow{"Sample", sample})
		}
	case *core.SearchData:
		if d == nil {
			return nil
		}
		rows = append(rows, summaryRow{"Suggestions", strconv.Itoa(len(d.Suggestions))})
	}
	return rows
}

func routingRows(s core.PrefixSummary) []summaryRow {
	var rows []summaryRow
	if s.OriginASN != "" {
		rows = append(rows, summaryRow{"Origin", "AS" + s.OriginASN})
	}
	if s.RPKIState != "" {
		rows = append(rows, summaryRow{"RPKI", s.RPKIState})
	}
	if s.ReportingPeers != nil {
		rows = append(rows, summaryRow{"Reporting peers", strconv.Itoa(*s.ReportingPeers)})
	}
	if s.LatestPeerTimestamp != "" {
		rows = append(rows, summaryRow{"Last seen", s.LatestPeerTimestamp})
	}
	return rows
}

func rateLimitLabel(rl *core.RateLimitDecision) string {
	label := fmt.Sprintf("%d/%d remaining", rl.Remaining, rl.Limit)
	if !rl.Allowed && rl.RetryAfterSec != nil {
		label += fmt.Sprintf(", retry after %ds", *rl.RetryAfterSec)
	}
	return label
}

func sourceOutcome(src core.SourceEvidence) string {
	if src.Error != "" {
		return src.Error
	}
	return src.URL
}

func sourceStatus(src core.SourceEvidence) string {
	if src.Status == 0 {
		return "-"
	}
	return strconv.Itoa(src.Status)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
