package repositories

import (
	"context"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/core/domain"

	"gorm.io/gorm"
)

// operatorRepository implements OperatorRepository interface
type operatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepository{db: db}
}

// Create creates a new operator
func (r *operatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	row := models.Operator{
		Username: operator.Username,
		Address:  addressKey(operator.Address),
		Password: operator.Password,
		Role:     string(operator.Role),
		IsActive: operator.IsActive,
	}
	if err := conn(ctx, r.db).Create(&row).Error; err != nil {
		return err
	}
	operator.ID = row.ID
	operator.CreatedAt = row.CreatedAt
	return nil
}

// GetByID gets an operator by ID
func (r *operatorRepository) GetByID(ctx context.Context, id uint) (*domain.Operator, error) {
	var row models.Operator
	if err := conn(ctx, r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return toDomainOperator(&row), nil
}

// GetByUsername gets an operator by username
func (r *operatorRepository) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	var row models.Operator
	if err := conn(ctx, r.db).Where("username = ?", username).First(&row).Error; err != nil {
		return nil, err
	}
	return toDomainOperator(&row), nil
}

// ExistsByUsername checks if username exists
func (r *operatorRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Operator{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// List lists operators with pagination
func (r *operatorRepository) List(ctx context.Context, offset, limit int) ([]*domain.Operator, int64, error) {
	var rows []*models.Operator
	var total int64

	// Count total
	if err := conn(ctx, r.db).Model(&models.Operator{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get operators with pagination
	if err := conn(ctx, r.db).Order("id ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	operators := make([]*domain.Operator, 0, len(rows))
	for _, row := range rows {
		operators = append(operators, toDomainOperator(row))
	}
	return operators, total, nil
}
