package filter

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/testgen/internal/config"
)

// SanitizeConfig is an alias of config.SanitizeConfig.
type SanitizeConfig = config.SanitizeConfig

// SanitizeSpec redacts the scalar values of sensitive keys in an OpenAPI
// document before it is sent to the model. Keys are matched
// case-insensitively; mappings under a sensitive key (schema properties named
// "password", for example) are walked, not replaced. Embedded JSON examples
// are redacted the same way. Text that is not a YAML or JSON document, or
// that has nothing to redact, is returned unchanged.
func SanitizeSpec(text string, cfg SanitizeConfig) string {
	fields := toLowerSet(cfg.Fields)
	if len(fields) == 0 || strings.TrimSpace(text) == "" {
		return text
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return text
	}
	if len(doc.Content) == 0 {
		return text
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode && root.Kind != yaml.SequenceNode {
		return text
	}
	if !sanitizeNode(root, fields, cfg.Replacement) {
		return text
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return text
	}
	return string(out)
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// sanitizeNode reports whether anything under n was redacted.
func sanitizeNode(n *yaml.Node, set map[string]struct{}, replacement string) bool {
	changed := false
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if _, ok := set[strings.ToLower(key.Value)]; ok && val.Kind == yaml.ScalarNode {
				if val.Value != replacement {
					val.Value = replacement
					val.Tag = "!!str"
					val.Style = yaml.DoubleQuotedStyle
					changed = true
				}
				continue
			}
			if sanitizeNode(val, set, replacement) {
				changed = true
			}
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, c := range n.Content {
			if sanitizeNode(c, set, replacement) {
				changed = true
			}
		}
	case yaml.ScalarNode:
		if body, ok := sanitizeBody(n.Value, set, replacement); ok {
			n.Value = body
			changed = true
		}
	}
	return changed
}

// sanitizeBody redacts a scalar holding a JSON object or array. ok is false
// when the value is not JSON or nothing was redacted.
func sanitizeBody(body string, set map[string]struct{}, replacement string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return body, false
	}
	var v interface{}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return body, false
	}
	if !sanitizeJSONValue(v, set, replacement) {
		return body, false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return body, false
	}
	return string(out), true
}

func sanitizeJSONValue(v interface{}, set map[string]struct{}, replacement string) bool {
	changed := false
	switch val := v.(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			if _, ok := set[strings.ToLower(k)]; ok {
				switch v2.(type) {
				case map[string]interface{}, []interface{}:
				default:
					val[k] = replacement
					changed = true
					continue
				}
			}
			if sanitizeJSONValue(v2, set, replacement) {
				changed = true
			}
		}
	case []interface{}:
		for i := range val {
			if sanitizeJSONValue(val[i], set, replacement) {
				changed = true
			}
		}
	}
	return changed
}
