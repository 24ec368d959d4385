package upstream

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/routelens/routelens/internal/core"
)

// NetworkInfo is the subset of a RIPEstat network-info payload used for IP lookups.
type NetworkInfo struct {
	Time   string
	Prefix string
	ASNs   []string
}

// SearchCategory groups search completion suggestions.
type SearchCategory struct {
	Category    string
	Suggestions []core.SearchSuggestion
}

// SearchSummary is the subset of a RIPEstat searchcomplete payload.
type SearchSummary struct {
	Time       string
	Categories []SearchCategory
}

// Suggestions flattens every category into one list.
func (s SearchSummary) Suggestions() []core.SearchSuggestion {
	var out []core.SearchSuggestion
	for _, category := range s.Categories {
		out = append(out, category.Suggestions...)
	}
	return out
}

// ParseNetworkInfo extracts the covering prefix and origin ASNs. Missing or
// mistyped fields read as empty; ASNs may be numbers or strings.
func ParseNetworkInfo(raw json.RawMessage) NetworkInfo {
	root := object(raw)
	data := object(root["data"])

	info := NetworkInfo{
		Time:   scalar(root["time"]),
		Prefix: scalar(data["prefix"]),
	}
	info.ASNs = scalars(array(data["asns"]))
	return info
}

// ParsePrefixInfo summarizes a RouteViews prefix payload, an array whose
// first element describes the prefix.
func ParsePrefixInfo(raw json.RawMessage) core.PrefixSummary {
	entries := array(raw)
	if len(entries) == 0 {
		return core.PrefixSummary{}
	}
	first := object(entries[0])
	if first == nil {
		return core.PrefixSummary{}
	}

	summary := core.PrefixSummary{
		OriginASN: scalar(first["origin_asn"]),
	}
	if state, ok := stringValue(first["rpki_state"]); ok {
		summary.RPKIState = state
	}

	if peersRaw, ok := first["reporting_peers"]; ok && isArray(peersRaw) {
		peers := array(peersRaw)
		count := len(peers)
		summary.ReportingPeers = &count
		summary.LatestPeerTimestamp = latestTimestamp(peers)
	}
	return summary
}

// LatestPeerTimestamp returns the greatest reporting peer timestamp in a
// RouteViews prefix payload, compared as strings.
func LatestPeerTimestamp(raw json.RawMessage) string {
	return ParsePrefixInfo(raw).LatestPeerTimestamp
}

// ParseASNPrefixes reads a RouteViews ASN payload. Anything but an array
// yields no prefixes.
func ParseASNPrefixes(raw json.RawMessage) []string {
	prefixes := scalars(array(raw))
	if prefixes == nil {
		return []string{}
	}
	return prefixes
}

// ParseSearch reads a RIPEstat searchcomplete payload.
func ParseSearch(raw json.RawMessage) SearchSummary {
	root := object(raw)
	data := object(root["data"])

	summary := SearchSummary{Time: scalar(root["time"])}
	for _, item := range array(data["categories"]) {
		category := object(item)
		if category == nil {
			continue
		}
		name := scalar(category["category"])
		group := SearchCategory{Category: name}
		for _, s := range array(category["suggestions"]) {
			suggestion := object(s)
			value := scalar(suggestion["value"])
			if value == "" {
				continue
			}
			label := scalar(suggestion["label"])
			if label == "" {
				label = scalar(suggestion["description"])
			}
			group.Suggestions = append(group.Suggestions, core.SearchSuggestion{
				Category: name,
				Value:    value,
				Label:    label,
			})
		}
		summary.Categories = append(summary.Categories, group)
	}
	return summary
}

func latestTimestamp(peers []json.RawMessage) string {
	best := ""
	for _, p := range peers {
		ts := scalar(object(p)["timestamp"])
		if ts > best {
			best = ts
		}
	}
	return best
}

func object(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func array(raw json.RawMessage) []json.RawMessage {
	if !isArray(raw) {
		return nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func stringValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

// scalar renders a JSON string, number or boolean as text; anything else is "".
func scalar(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		s, _ := stringValue(trimmed)
		return s
	case '{', '[', 'n':
		return ""
	default:
		return strings.TrimSpace(string(trimmed))
	}
}

func scalars(items []json.RawMessage) []string {
	var out []string
	for _, item := range items {
		if value := scalar(item); value != "" {
			out = append(out, value)
		}
	}
	return out
}
