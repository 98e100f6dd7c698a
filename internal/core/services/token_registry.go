package services

import (
	"context"
	"errors"

	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// TokenRegistry is the whitelist of settlement assets
type TokenRegistry struct {
	tokenRepo *repositories.TokenRepository
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry(tokenRepo *repositories.TokenRepository) *TokenRegistry {
	return &TokenRegistry{tokenRepo: tokenRepo}
}

// Add marks a token active, registering it on first use
func (r *TokenRegistry) Add(ctx context.Context, token common.Address) error {
	if token == (common.Address{}) {
		return domain.ErrInvalidAddress
	}
	existing, err := r.tokenRepo.Get(ctx, token)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil && existing.Active {
		return domain.ErrTokenAlreadyActive
	}
	return r.tokenRepo.Save(ctx, &domain.Token{Address: token, Active: true})
}

// Remove deactivates a token. Loans already issued in it are unaffected.
func (r *TokenRegistry) Remove(ctx context.Context, token common.Address) error {
	active, err := r.IsActive(ctx, token)
	if err != nil {
		return err
	}
	if !active {
		return domain.ErrTokenNotActive
	}
	return r.tokenRepo.Save(ctx, &domain.Token{Address: token, Active: false})
}

// IsActive reports whether loans may be originated in token
func (r *TokenRegistry) IsActive(ctx context.Context, token common.Address) (bool, error) {
	existing, err := r.tokenRepo.Get(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.Active, nil
}

// List returns every token ever registered, in insertion order
func (r *TokenRegistry) List(ctx context.Context) ([]*domain.Token, error) {
	return r.tokenRepo.List(ctx)
}
