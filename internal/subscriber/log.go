package subscriber

import (
	"context"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/logger"
	"batchwatch/internal/model"
	"batchwatch/internal/pipeline"

	"go.uber.org/zap"
)

// Log writes a summary of each batch and, at debug level, the final event
// of every path in it. Paths matching the "ignore" param are left out.
func Log() aggregator.Callback {
	return func(_ context.Context, events []model.ChangeEvent, params aggregator.Params) error {
		events = withoutIgnored(events, params)
		if len(events) == 0 {
			return nil
		}

		latest := pipeline.LatestFilesEvents(events)

		fields := []zap.Field{
			zap.Int("events", len(events)),
			zap.Int("paths", len(latest)),
		}
		if label, ok := params["label"].(string); ok {
			fields = append(fields, zap.String("label", label))
		}
		logger.Log.Info("batch received", fields...)

		for _, ev := range latest {
			logger.Log.Debug("change",
				zap.String("kind", string(ev.Kind)),
				zap.String("path", ev.Path))
		}

		return nil
	}
}
