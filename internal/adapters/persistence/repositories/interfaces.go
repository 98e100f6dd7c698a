package repositories

import (
	"context"

	"microcredit/internal/core/domain"
)

// OperatorRepository defines operator repository interface
type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	GetByID(ctx context.Context, id uint) (*domain.Operator, error)
	GetByUsername(ctx context.Context, username string) (*domain.Operator, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context, offset, limit int) ([]*domain.Operator, int64, error)
}
