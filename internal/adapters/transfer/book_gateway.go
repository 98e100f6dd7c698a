// Package transfer moves token balances held as book entries in the ledger database.
package transfer

import (
	"context"
	"fmt"

	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BookGateway transfers tokens between accounts of the token_balances table.
// A transfer runs in the caller's transaction when there is one.
type BookGateway struct {
	txManager   *repositories.TxManager
	balanceRepo *repositories.BalanceRepository
}

// NewBookGateway creates a new book-entry gateway
func NewBookGateway(txManager *repositories.TxManager, balanceRepo *repositories.BalanceRepository) *BookGateway {
	return &BookGateway{txManager: txManager, balanceRepo: balanceRepo}
}

// Transfer moves amt of token from one account to another, all or nothing
func (g *BookGateway) Transfer(ctx context.Context, token, from, to common.Address, amt *uint256.Int) error {
	if amt.IsZero() || from == to {
		return nil
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer to the zero address", domain.ErrTransferFailed)
	}

	return g.txManager.Transaction(ctx, func(ctx context.Context) error {
		fromBalance, err := g.balanceRepo.Get(ctx, token, from)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
		if fromBalance.Lt(amt) {
			return fmt.Errorf("%w: %s holds %s of %s, needs %s",
				domain.ErrInsufficientBalance, from.Hex(), fromBalance.Dec(), token.Hex(), amt.Dec())
		}
		toBalance, err := g.balanceRepo.Get(ctx, token, to)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
		credited, overflow := amount.Add(toBalance, amt)
		if overflow {
			return fmt.Errorf("%w: balance overflow", domain.ErrTransferFailed)
		}

		if err := g.balanceRepo.Set(ctx, token, from, new(uint256.Int).Sub(fromBalance, amt)); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
		if err := g.balanceRepo.Set(ctx, token, to, credited); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
		return nil
	})
}

// Mint credits new units to an account
func (g *BookGateway) Mint(ctx context.Context, token, to common.Address, amt *uint256.Int) error {
	if amt.IsZero() {
		return domain.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return domain.ErrInvalidAddress
	}
	return g.txManager.Transaction(ctx, func(ctx context.Context) error {
		balance, err := g.balanceRepo.Get(ctx, token, to)
		if err != nil {
			return err
		}
		credited, overflow := amount.Add(balance, amt)
		if overflow {
			return fmt.Errorf("%w: balance overflow", domain.ErrInvalidAmount)
		}
		return g.balanceRepo.Set(ctx, token, to, credited)
	})
}

// BalanceOf returns the balance of an account
func (g *BookGateway) BalanceOf(ctx context.Context, token, account common.Address) (*uint256.Int, error) {
	return g.balanceRepo.Get(ctx, token, account)
}
