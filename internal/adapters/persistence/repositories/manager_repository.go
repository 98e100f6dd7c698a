package repositories

import (
	"context"
	"errors"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ManagerRepository handles managers and their per-token limits
type ManagerRepository struct {
	db *gorm.DB
}

// NewManagerRepository creates a new manager repository
func NewManagerRepository(db *gorm.DB) *ManagerRepository {
	return &ManagerRepository{db: db}
}

// Get gets a manager by address
func (r *ManagerRepository) Get(ctx context.Context, manager common.Address) (*domain.Manager, error) {
	var row models.Manager
	err := conn(ctx, r.db).Where("address = ?", addressKey(manager)).First(&row).Error
	if err != nil {
		return nil, err
	}
	return toDomainManager(&row), nil
}

// Save inserts or updates a manager
func (r *ManagerRepository) Save(ctx context.Context, manager *domain.Manager) error {
	row := models.Manager{Address: addressKey(manager.Address), Active: manager.Active}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "updated_at"}),
	}).Create(&row).Error
}

// List lists managers in insertion order
func (r *ManagerRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Manager, error) {
	var rows []*models.Manager
	query := conn(ctx, r.db).Order("id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	managers := make([]*domain.Manager, 0, len(rows))
	for _, row := range rows {
		managers = append(managers, toDomainManager(row))
	}
	return managers, nil
}

// GetLimit gets the limit of a manager in a token. A pair never configured
// reads as a zero limit with zero utilization.
func (r *ManagerRepository) GetLimit(ctx context.Context, manager, token common.Address) (*domain.ManagerTokenLimit, error) {
	var row models.ManagerTokenLimit
	err := conn(ctx, r.db).
		Where("manager_address = ? AND token_address = ?", addressKey(manager), addressKey(token)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ManagerTokenLimit{
			Manager:                manager,
			Token:                  token,
			CurrentLentAmountLimit: amount.Zero(),
			CurrentLentAmount:      amount.Zero(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainLimit(&row)
}

// SaveLimit inserts or updates a manager token limit
func (r *ManagerRepository) SaveLimit(ctx context.Context, limit *domain.ManagerTokenLimit) error {
	row := models.ManagerTokenLimit{
		ManagerAddress: addressKey(limit.Manager),
		TokenAddress:   addressKey(limit.Token),
		LimitAmount:    amount.String(limit.CurrentLentAmountLimit),
		LentAmount:     amount.String(limit.CurrentLentAmount),
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "manager_address"}, {Name: "token_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"limit_amount", "lent_amount", "updated_at"}),
	}).Create(&row).Error
}

// ListLimits lists the limits of one manager
func (r *ManagerRepository) ListLimits(ctx context.Context, manager common.Address) ([]*domain.ManagerTokenLimit, error) {
	var rows []*models.ManagerTokenLimit
	err := conn(ctx, r.db).
		Where("manager_address = ?", addressKey(manager)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return limitsFromRows(rows)
}

// ListAllLimits lists every configured limit
func (r *ManagerRepository) ListAllLimits(ctx context.Context) ([]*domain.ManagerTokenLimit, error) {
	var rows []*models.ManagerTokenLimit
	if err := conn(ctx, r.db).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return limitsFromRows(rows)
}

func limitsFromRows(rows []*models.ManagerTokenLimit) ([]*domain.ManagerTokenLimit, error) {
	limits := make([]*domain.ManagerTokenLimit, 0, len(rows))
	for _, row := range rows {
		limit, err := toDomainLimit(row)
		if err != nil {
			return nil, err
		}
		limits = append(limits, limit)
	}
	return limits, nil
}
