package activity

import (
	"sort"

	"github.com/revuehq/revue-api/internal/models"
)

// GroupedEntry is a display-only projection nesting the per-item
// entries of a bulk operation under the entry that produced them.
type GroupedEntry struct {
	models.AuditEntry
	Children []models.AuditEntry `json:"children,omitempty"`
}

// GroupLogs clusters entries sharing a group id under their bulk parent
// and returns the flat result sorted by creation time descending.
// Entries without a group id pass through unchanged, as does any
// cluster lacking a bulk-action parent. Input entries are not mutated.
func GroupLogs(entries []models.AuditEntry) []GroupedEntry {
	clusters := make(map[string][]models.AuditEntry)
	var order []models.AuditEntry

	for _, e := range entries {
		if e.GroupID == nil {
			order = append(order, e)
			continue
		}
		clusters[*e.GroupID] = append(clusters[*e.GroupID], e)
	}

	result := make([]GroupedEntry, 0, len(entries))
	for _, e := range order {
		result = append(result, GroupedEntry{AuditEntry: e})
	}

	for _, cluster := range clusters {
		parentIdx := -1
		for i, e := range cluster {
			if e.Action.IsBulk() {
				parentIdx = i
				break
			}
		}
		if parentIdx < 0 {
			// No bulk parent in the cluster: fall back to ungrouped.
			for _, e := range cluster {
				result = append(result, GroupedEntry{AuditEntry: e})
			}
			continue
		}

		parent := GroupedEntry{AuditEntry: cluster[parentIdx]}
		for i, e := range cluster {
			if i != parentIdx {
				parent.Children = append(parent.Children, e)
			}
		}
		result = append(result, parent)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}
