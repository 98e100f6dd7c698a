package services

import (
	"context"

	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
)

// WalletRegistry maps wallets to stable user ids
type WalletRegistry struct {
	walletRepo *repositories.WalletRepository
}

// NewWalletRegistry creates a new wallet registry
func NewWalletRegistry(walletRepo *repositories.WalletRepository) *WalletRegistry {
	return &WalletRegistry{walletRepo: walletRepo}
}

// Resolve looks up a wallet. Unknown wallets resolve to user id 0.
func (r *WalletRegistry) Resolve(ctx context.Context, wallet common.Address) (*domain.WalletMetadata, error) {
	return r.walletRepo.Get(ctx, wallet)
}

// Migrate moves the identity of oldWallet to newWallet and freezes oldWallet.
// The target must not be bound to any user, so no user ever has two live wallets.
func (r *WalletRegistry) Migrate(ctx context.Context, oldWallet, newWallet common.Address) error {
	if oldWallet == (common.Address{}) || newWallet == (common.Address{}) {
		return domain.ErrInvalidAddress
	}

	source, err := r.walletRepo.Get(ctx, oldWallet)
	if err != nil {
		return err
	}
	if source.UserID == 0 || source.Moved() {
		return domain.ErrSourceNotMigratable
	}

	target, err := r.walletRepo.Get(ctx, newWallet)
	if err != nil {
		return err
	}
	if target.UserID != 0 {
		return domain.ErrTargetAlreadyBound
	}

	target.UserID = source.UserID
	if err := r.walletRepo.Save(ctx, target); err != nil {
		return err
	}
	source.MovedTo = newWallet
	return r.walletRepo.Save(ctx, source)
}

// EnsureUser returns the wallet's user id, allocating the next one if unassigned
func (r *WalletRegistry) EnsureUser(ctx context.Context, wallet common.Address) (uint64, error) {
	meta, err := r.walletRepo.Get(ctx, wallet)
	if err != nil {
		return 0, err
	}
	if meta.UserID != 0 {
		return meta.UserID, nil
	}

	id, err := r.walletRepo.CreateUser(ctx)
	if err != nil {
		return 0, err
	}
	meta.UserID = id
	if err := r.walletRepo.Save(ctx, meta); err != nil {
		return 0, err
	}
	return id, nil
}

// List lists known wallets in insertion order
func (r *WalletRegistry) List(ctx context.Context, offset, limit int) ([]*domain.WalletMetadata, int64, error) {
	return r.walletRepo.List(ctx, offset, limit)
}

// ActiveWallet returns the wallet a user currently operates from
func (r *WalletRegistry) ActiveWallet(ctx context.Context, userID uint64) (common.Address, error) {
	return r.walletRepo.ActiveWallet(ctx, userID)
}
