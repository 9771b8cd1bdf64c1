package subscriber

import (
	"fmt"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/model"
	"batchwatch/internal/pipeline"
)

// withoutIgnored drops the events matched by the "ignore" param, which holds
// glob patterns tested against every path segment.
func withoutIgnored(events []model.ChangeEvent, params aggregator.Params) []model.ChangeEvent {
	return pipeline.Filter(events, stringList(params["ignore"]))
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case string:
		return []string{list}
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}
