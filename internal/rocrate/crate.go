package rocrate

import (
	"encoding/json"
	"fmt"
)

const (
	// MetadataFileName is the descriptor id and the file name metadata is written under.
	MetadataFileName = "ro-crate-metadata.json"

	graphKey   = "@graph"
	idKey      = "@id"
	aboutKey   = "about"
	hasPartKey = "hasPart"
)

// Crate is a JSON-LD provenance document. Unknown fields pass through untouched.
type Crate map[string]any

// Parse decodes a provenance document.
func Parse(data []byte) (Crate, error) {
	var c Crate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode ro-crate: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("decode ro-crate: document is null")
	}
	return c, nil
}

// Marshal renders c the way it is stored inside an archive.
func (c Crate) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Graph returns the node list, skipping entries that are not objects.
func (c Crate) Graph() []map[string]any {
	raw, _ := c[graphKey].([]any)
	nodes := make([]map[string]any, 0, len(raw))
	for _, n := range raw {
		if node, ok := n.(map[string]any); ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// Node returns the graph node with the given id.
func (c Crate) Node(id string) (map[string]any, bool) {
	for _, node := range c.Graph() {
		if nodeID(node) == id {
			return node, true
		}
	}
	return nil, false
}

// RootID follows the descriptor's about reference.
func (c Crate) RootID() (string, bool) {
	descriptor, ok := c.Node(MetadataFileName)
	if !ok {
		return "", false
	}
	id := refID(descriptor[aboutKey])
	return id, id != ""
}

// HasPart returns the child ids referenced by node.
func HasPart(node map[string]any) ([]string, bool) {
	raw, ok := node[hasPartKey]
	if !ok || raw == nil {
		return nil, false
	}
	var ids []string
	switch parts := raw.(type) {
	case []any:
		for _, p := range parts {
			if id := refID(p); id != "" {
				ids = append(ids, id)
			}
		}
	default:
		id := refID(parts)
		if id == "" {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func nodeID(node map[string]any) string {
	id, _ := node[idKey].(string)
	return id
}

// refID accepts {"@id": "..."} or a bare id string.
func refID(v any) string {
	switch ref := v.(type) {
	case string:
		return ref
	case map[string]any:
		return nodeID(ref)
	}
	return ""
}
