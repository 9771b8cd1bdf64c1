package pipeline

import (
	"path/filepath"
	"strings"

	"batchwatch/internal/model"
)

// Filter returns the events whose path matches none of the ignore patterns.
func Filter(events []model.ChangeEvent, ignoreList []string) []model.ChangeEvent {
	if len(ignoreList) == 0 {
		return events
	}

	out := make([]model.ChangeEvent, 0, len(events))
	for _, ev := range events {
		if ShouldIgnore(ev.Path, ignoreList) {
			continue
		}
		out = append(out, ev)
	}

	return out
}

// ShouldIgnore reports whether any path segment matches one of the patterns.
func ShouldIgnore(path string, ignoreList []string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")

	for _, part := range parts {
		if part == "" {
			continue
		}
		for _, pattern := range ignoreList {
			matched, err := filepath.Match(pattern, part)
			if err == nil && matched {
				return true
			}
		}
	}

	return false
}
