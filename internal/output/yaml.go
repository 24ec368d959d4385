package output

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/routelens/routelens/internal/core"
)

// YAMLFormatter renders results as YAML using the JSON field names.
type YAMLFormatter struct{}

// FormatLookup renders a lookup result as YAML.
func (f *YAMLFormatter) FormatLookup(result *core.LookupResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return marshalYAML(result)
}

// marshalYAML goes through JSON so that json tags, omitempty and raw
// upstream payloads are honoured, then re-encodes the tree as block YAML.
func marshalYAML(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return "", err
	}
	resetStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// JSON is valid flow-style YAML; clearing the style flags switches the
// encoder back to block style.
func resetStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		resetStyle(child)
	}
}
