package rocrate

import (
	"log/slog"
)

// Filter returns a copy of crate whose root dataset only references children in kept.
// Nodes for dropped children are removed from the graph; all other nodes are shared
// with the input, which is never modified. A document without a descriptor, root
// node or hasPart is returned as is.
func Filter(crate Crate, kept map[string]struct{}) Crate {
	rootID, ok := crate.RootID()
	if !ok {
		slog.Error("rocrate.filter.descriptor_not_found")
		return crate
	}
	root, ok := crate.Node(rootID)
	if !ok {
		slog.Error("rocrate.filter.root_not_found", slog.String("root_id", rootID))
		return crate
	}
	parts, ok := HasPart(root)
	if !ok {
		slog.Error("rocrate.filter.has_part_missing", slog.String("root_id", rootID))
		return crate
	}

	remove := make(map[string]struct{})
	for _, id := range parts {
		if _, keep := kept[id]; !keep {
			remove[id] = struct{}{}
		}
	}
	if len(remove) == 0 {
		return crate
	}

	raw, _ := crate[graphKey].([]any)
	graph := make([]any, 0, len(raw))
	for _, n := range raw {
		node, isNode := n.(map[string]any)
		if !isNode {
			graph = append(graph, n)
			continue
		}
		id := nodeID(node)
		if _, drop := remove[id]; drop {
			continue
		}
		if id == rootID {
			node = withoutParts(node, remove)
		}
		graph = append(graph, node)
	}

	out := make(Crate, len(crate))
	for k, v := range crate {
		out[k] = v
	}
	out[graphKey] = graph
	return out
}

func withoutParts(node map[string]any, remove map[string]struct{}) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		out[k] = v
	}
	switch parts := node[hasPartKey].(type) {
	case []any:
		filtered := make([]any, 0, len(parts))
		for _, p := range parts {
			if _, drop := remove[refID(p)]; !drop {
				filtered = append(filtered, p)
			}
		}
		out[hasPartKey] = filtered
	default:
		if _, drop := remove[refID(parts)]; drop {
			out[hasPartKey] = []any{}
		}
	}
	return out
}

// KeepSet builds a kept-id set.
func KeepSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
