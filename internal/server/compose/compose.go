// Package compose deep-merges partial docker-compose documents into one
// combined file.
package compose

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Merger combines descriptor fragments. Mappings merge key-wise, sequences
// concatenate in order, and a conflicting scalar from a later fragment
// overwrites the earlier one.
type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// Merge parses each fragment and folds it into one document. Blank
// fragments are skipped entirely. The result is a single serialized YAML
// document; merging no non-blank fragments yields an empty mapping.
func (m *Merger) Merge(fragments []string) (string, error) {
	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for i, fragment := range fragments {
		if strings.TrimSpace(fragment) == "" {
			continue
		}

		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(fragment), &doc); err != nil {
			return "", fmt.Errorf("parsing fragment %d: %w", i, err)
		}
		if len(doc.Content) == 0 {
			continue
		}

		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return "", fmt.Errorf("fragment %d: root node is not a mapping", i)
		}

		mergeMappings(merged, root)
	}

	out, err := yaml.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("serializing merged document: %w", err)
	}
	return string(out), nil
}

// mergeMappings folds source into target. Keys absent from target are
// appended in traversal order.
func mergeMappings(target, source *yaml.Node) {
	for i := 0; i+1 < len(source.Content); i += 2 {
		key := source.Content[i]
		value := source.Content[i+1]

		existing := findValue(target, key.Value)
		if existing == nil {
			target.Content = append(target.Content, key, value)
			continue
		}

		switch {
		case existing.Kind == yaml.MappingNode && value.Kind == yaml.MappingNode:
			mergeMappings(existing, value)
		case existing.Kind == yaml.SequenceNode && value.Kind == yaml.SequenceNode:
			existing.Content = append(existing.Content, value.Content...)
		default:
			// last fragment wins for conflicting scalars
			*existing = *value
		}
	}
}

func findValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
