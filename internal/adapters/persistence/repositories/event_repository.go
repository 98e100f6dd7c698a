package repositories

import (
	"context"

	"microcredit/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// EventRepository handles the ledger event log
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create appends an event to the log
func (r *EventRepository) Create(ctx context.Context, event *models.LedgerEvent) error {
	return conn(ctx, r.db).Create(event).Error
}

// List lists events newest first, optionally filtered by name
func (r *EventRepository) List(ctx context.Context, name string, offset, limit int) ([]*models.LedgerEvent, int64, error) {
	var events []*models.LedgerEvent
	var total int64

	query := conn(ctx, r.db).Model(&models.LedgerEvent{})
	if name != "" {
		query = query.Where("name = ?", name)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
