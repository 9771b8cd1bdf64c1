package subscriber

import (
	"context"
	"fmt"
	"time"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/logger"
	"batchwatch/internal/model"
	"batchwatch/internal/repository"

	"go.uber.org/zap"
)

// History stores every batch through repo, minus the paths matching the
// "ignore" param. A batch left empty is not stored.
func History(repo *repository.BatchRepository) aggregator.Callback {
	return func(_ context.Context, events []model.ChangeEvent, params aggregator.Params) error {
		events = withoutIgnored(events, params)
		if len(events) == 0 {
			return nil
		}

		batch, err := repo.Save(events, time.Now())
		if err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}

		logger.Log.Debug("batch saved",
			zap.Uint("id", batch.ID),
			zap.Int("events", batch.Size))
		return nil
	}
}
