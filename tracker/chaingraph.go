package tracker

import (
	"fmt"
	"time"
)

// ChainGraph is a serializable rendering of one codebase's ingestion
// chain: the codebase node, one node per run, and the HAS_INGESTION and
// SUPERSEDED_BY links between them.
type ChainGraph struct {
	Nodes []ChainNode `json:"nodes"`
	Links []ChainLink `json:"links"`
	Meta  ChainMeta   `json:"meta"`
}

// ChainNode is an entity in the chain graph.
type ChainNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`  // "codebase" or "ingestion"
	Label    string         `json:"label"` // Display label
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChainLink is a directed relationship between chain nodes.
type ChainLink struct {
	Source string `json:"source"` // Node ID
	Target string `json:"target"` // Node ID
	Type   string `json:"type"`   // Relationship name (HAS_INGESTION, SUPERSEDED_BY)
}

// ChainMeta carries generation metadata alongside the graph.
type ChainMeta struct {
	GeneratedAt time.Time         `json:"generated_at"`
	UniqueKey   string            `json:"unique_key"`
	Ingestions  int               `json:"ingestions"`
	Config      map[string]string `json:"config,omitempty"`
}

// BuildChainGraph converts a codebase summary and its run history into a
// chain graph. Entries are expected ascending by counter, as History
// returns them; each run is linked from the codebase and from its
// predecessor.
func BuildChainGraph(info *CodebaseInfo, entries []HistoryEntry) *ChainGraph {
	g := &ChainGraph{
		Nodes: []ChainNode{},
		Links: []ChainLink{},
		Meta: ChainMeta{
			GeneratedAt: time.Now(),
			Ingestions:  len(entries),
		},
	}
	if info == nil {
		return g
	}

	g.Meta.UniqueKey = info.UniqueKey
	g.Meta.Config = map[string]string{
		"remote_url": info.RemoteURL,
		"branch":     info.Branch,
	}

	g.Nodes = append(g.Nodes, ChainNode{
		ID:    info.UniqueKey,
		Type:  "codebase",
		Label: fmt.Sprintf("%s@%s", info.RemoteURL, info.Branch),
		Metadata: map[string]any{
			"commit_sha": info.CommitSHA,
			"count":      info.Count,
		},
	})

	for i, entry := range entries {
		g.Nodes = append(g.Nodes, ChainNode{
			ID:    entry.IngestionID,
			Type:  "ingestion",
			Label: fmt.Sprintf("#%d", entry.Counter),
			Metadata: map[string]any{
				"ingestion_counter": entry.Counter,
				"commit_sha":        entry.CommitSHA,
				"timestamp":         entry.Timestamp,
			},
		})
		g.Links = append(g.Links, ChainLink{
			Source: info.UniqueKey,
			Target: entry.IngestionID,
			Type:   RelHasIngestion,
		})
		if i > 0 {
			g.Links = append(g.Links, ChainLink{
				Source: entries[i-1].IngestionID,
				Target: entry.IngestionID,
				Type:   RelSupersededBy,
			})
		}
	}

	return g
}
