package repositories

import (
	"context"
	"errors"

	"microcredit/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository handles runtime ledger settings
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the value of a key, or "" when unset
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var row models.Setting
	err := conn(ctx, r.db).Where(&models.Setting{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return row.Value, err
}

// Set stores a value
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
}
