package bib

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeRecordsYAML reads a CSL-YAML reference file. The document may be a
// mapping of id to item, a sequence of items carrying their own id, or a
// mapping with a top-level "references" sequence. JSON input is accepted
// in the same shapes. Key order is preserved.
func DecodeRecordsYAML(data []byte) (*Records, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	recs := &Records{Raw: map[string]json.RawMessage{}}
	if len(doc.Content) == 0 {
		return recs, nil
	}

	root := doc.Content[0]
	if refs := mappingValue(root, "references"); refs != nil && refs.Kind == yaml.SequenceNode {
		root = refs
	}

	switch root.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			if err := recs.addNode(root.Content[i].Value, root.Content[i+1]); err != nil {
				return nil, err
			}
		}
	case yaml.SequenceNode:
		for i, n := range root.Content {
			id := mappingValue(n, "id")
			if id == nil || id.Value == "" {
				return nil, fmt.Errorf("records: item %d has no id", i)
			}
			if err := recs.addNode(id.Value, n); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("records: expected a mapping or sequence at line %d", root.Line)
	}
	return recs, nil
}

func (r *Records) addNode(key string, n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return fmt.Errorf("records: %q: %w", key, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("records: %q: %w", key, err)
	}
	if _, seen := r.Raw[key]; !seen {
		r.Keys = append(r.Keys, key)
	}
	r.Raw[key] = raw
	return nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
