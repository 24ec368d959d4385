package output

import (
	"encoding/json"

	"github.com/routelens/routelens/internal/core"
)

// JSONFormatter renders the lookup envelope exactly as the HTTP API returns
// it. Compact output is one line per result.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatLookup(result *core.LookupResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return marshalJSON(result, f.Indent)
}

func marshalJSON(v any, indent bool) (string, error) {
	marshal := json.Marshal
	if indent {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}
	data, err := marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
