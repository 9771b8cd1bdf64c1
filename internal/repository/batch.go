package repository

import (
	"time"

	"batchwatch/internal/db"
	"batchwatch/internal/model"

	"gorm.io/gorm"
)

type BatchRepository struct{}

func NewBatchRepository() *BatchRepository {
	return &BatchRepository{}
}

func (r *BatchRepository) Save(events []model.ChangeEvent, flushedAt time.Time) (model.Batch, error) {
	batch := model.NewBatch(events, flushedAt)
	return batch, db.DB.Create(&batch).Error
}

func (r *BatchRepository) GetRecent(limit int) ([]model.Batch, error) {
	var batches []model.Batch
	result := db.DB.
		Preload("Events", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("seq asc")
		}).
		Order("flushed_at desc").
		Order("id desc").
		Limit(limit).
		Find(&batches)

	return batches, result.Error
}

type Stats struct {
	Batches int64 `json:"batches"`
	Events  int64 `json:"events"`
}

func (r *BatchRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.Batch{}).Count(&stats.Batches).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.BatchEvent{}).Count(&stats.Events).Error; err != nil {
		return stats, err
	}

	return stats, nil
}

// GetByPath returns the most recent recorded events for path.
func (r *BatchRepository) GetByPath(path string, limit int) ([]model.BatchEvent, error) {
	var events []model.BatchEvent
	result := db.DB.
		Where("path = ?", path).
		Order("id desc").
		Limit(limit).
		Find(&events)

	return events, result.Error
}
