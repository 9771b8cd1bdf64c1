package pipeline

import (
	"slices"

	"batchwatch/internal/model"
)

// LatestFilesEvents keeps only the most recent event of every path. The result
// is ordered by each path's last occurrence in events. Kinds are never merged:
// a create followed by a delete still reports the delete.
func LatestFilesEvents(events []model.ChangeEvent) []model.ChangeEvent {
	latest := make([]model.ChangeEvent, 0, len(events))
	seen := make(map[string]struct{}, len(events))

	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if _, ok := seen[ev.Path]; ok {
			continue
		}

		seen[ev.Path] = struct{}{}
		latest = append(latest, ev)
	}

	slices.Reverse(latest)
	return latest
}
