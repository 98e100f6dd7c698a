package services

import (
	"context"
	"fmt"

	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ManagerLimitTracker keeps the lending ceiling and utilization of every
// (manager, token) pair
type ManagerLimitTracker struct {
	managerRepo *repositories.ManagerRepository
}

// NewManagerLimitTracker creates a new manager limit tracker
func NewManagerLimitTracker(managerRepo *repositories.ManagerRepository) *ManagerLimitTracker {
	return &ManagerLimitTracker{managerRepo: managerRepo}
}

// Admit reserves amt of the manager's headroom in token
func (t *ManagerLimitTracker) Admit(ctx context.Context, manager, token common.Address, amt *uint256.Int) error {
	limit, err := t.managerRepo.GetLimit(ctx, manager, token)
	if err != nil {
		return err
	}
	lent, overflow := amount.Add(limit.CurrentLentAmount, amt)
	if overflow || lent.Gt(limit.CurrentLentAmountLimit) {
		return fmt.Errorf("%w: %s available, %s requested",
			domain.ErrLimitExceeded, limit.Available().Dec(), amt.Dec())
	}
	limit.CurrentLentAmount = lent
	return t.managerRepo.SaveLimit(ctx, limit)
}

// Release restores up to amt of utilization. It never goes below zero and is
// a no-op for loans without a manager.
func (t *ManagerLimitTracker) Release(ctx context.Context, manager, token common.Address, amt *uint256.Int) error {
	if manager == (common.Address{}) || amt.IsZero() {
		return nil
	}
	limit, err := t.managerRepo.GetLimit(ctx, manager, token)
	if err != nil {
		return err
	}
	if limit.CurrentLentAmount.IsZero() {
		return nil
	}
	limit.CurrentLentAmount = amount.Sub(limit.CurrentLentAmount, amount.Min(amt, limit.CurrentLentAmount))
	return t.managerRepo.SaveLimit(ctx, limit)
}

// SetLimit replaces the ceiling, leaving utilization untouched
func (t *ManagerLimitTracker) SetLimit(ctx context.Context, manager, token common.Address, newLimit *uint256.Int) error {
	limit, err := t.managerRepo.GetLimit(ctx, manager, token)
	if err != nil {
		return err
	}
	limit.CurrentLentAmountLimit = newLimit.Clone()
	return t.managerRepo.SaveLimit(ctx, limit)
}

// Get returns the limit of a manager in a token
func (t *ManagerLimitTracker) Get(ctx context.Context, manager, token common.Address) (*domain.ManagerTokenLimit, error) {
	return t.managerRepo.GetLimit(ctx, manager, token)
}

// List returns every token limit of a manager
func (t *ManagerLimitTracker) List(ctx context.Context, manager common.Address) ([]*domain.ManagerTokenLimit, error) {
	return t.managerRepo.ListLimits(ctx, manager)
}

// ListAll returns every configured limit
func (t *ManagerLimitTracker) ListAll(ctx context.Context) ([]*domain.ManagerTokenLimit, error) {
	return t.managerRepo.ListAllLimits(ctx)
}
