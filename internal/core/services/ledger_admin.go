package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
)

// ManagerGrant sets the limit of a manager in one token
type ManagerGrant struct {
	Manager common.Address
	Token   common.Address
	Limit   *uint256.Int
}

// AddToken whitelists a token for new loans
func (l *LoanLedger) AddToken(ctx context.Context, caller domain.Caller, token common.Address) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		if err := l.tokens.Add(ctx, token); err != nil {
			return err
		}
		o.emit(domain.TokenAdded{Token: token})
		o.afterCommit(func() { log.Printf("✅ Token %s added", token.Hex()) })
		return nil
	})
}

// RemoveToken stops new loans in a token
func (l *LoanLedger) RemoveToken(ctx context.Context, caller domain.Caller, token common.Address) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		if err := l.tokens.Remove(ctx, token); err != nil {
			return err
		}
		o.emit(domain.TokenRemoved{Token: token})
		o.afterCommit(func() { log.Printf("✅ Token %s removed", token.Hex()) })
		return nil
	})
}

// AddManagers grants limits, creating managers on their first grant
func (l *LoanLedger) AddManagers(ctx context.Context, caller domain.Caller, grants []ManagerGrant) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		for _, g := range grants {
			if g.Manager == (common.Address{}) {
				return domain.ErrInvalidAddress
			}
			if g.Limit == nil {
				return domain.ErrInvalidAmount
			}
			active, err := l.tokens.IsActive(ctx, g.Token)
			if err != nil {
				return err
			}
			if !active {
				return domain.ErrTokenNotActive
			}
			if err := l.managerRepo.Save(ctx, &domain.Manager{Address: g.Manager, Active: true}); err != nil {
				return err
			}
			if err := l.limits.SetLimit(ctx, g.Manager, g.Token, g.Limit); err != nil {
				return err
			}
			o.emit(domain.ManagerAdded{Manager: g.Manager, Token: g.Token, Limit: g.Limit.Dec()})
		}
		o.afterCommit(func() { log.Printf("✅ %d manager limits granted", len(grants)) })
		return nil
	})
}

// RemoveManagers zeroes every limit of the given managers. Their open loans
// keep accruing and can still be repaid.
func (l *LoanLedger) RemoveManagers(ctx context.Context, caller domain.Caller, managers []common.Address) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		for _, addr := range managers {
			manager, err := l.managerRepo.Get(ctx, addr)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrManagerNotFound, addr.Hex())
			}
			if err != nil {
				return err
			}
			manager.Active = false
			if err := l.managerRepo.Save(ctx, manager); err != nil {
				return err
			}

			limits, err := l.limits.List(ctx, addr)
			if err != nil {
				return err
			}
			for _, limit := range limits {
				if err := l.limits.SetLimit(ctx, addr, limit.Token, amount.Zero()); err != nil {
					return err
				}
			}
			o.emit(domain.ManagerRemoved{Manager: addr})
		}
		o.afterCommit(func() { log.Printf("✅ %d managers removed", len(managers)) })
		return nil
	})
}

// UpdateRevenueAddress sets where interest is paid; the zero address unsets it
func (l *LoanLedger) UpdateRevenueAddress(ctx context.Context, caller domain.Caller, revenue common.Address) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		old, err := l.RevenueAddress(ctx)
		if err != nil {
			return err
		}
		if err := l.setRevenueAddress(ctx, revenue); err != nil {
			return err
		}
		o.emit(domain.RevenueAddressUpdated{Old: old, New: revenue})
		return nil
	})
}

// TransferERC20 moves funds out of custody
func (l *LoanLedger) TransferERC20(ctx context.Context, caller domain.Caller, token, to common.Address, amt *uint256.Int) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	if amt == nil || amt.IsZero() {
		return domain.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return domain.ErrInvalidAddress
	}
	if l.custody == (common.Address{}) {
		return domain.ErrCustodyNotConfigured
	}
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		if err := l.gateway.Transfer(ctx, token, l.custody, to, amt); err != nil {
			return transferFailed(err)
		}
		o.emit(domain.FundsTransferred{Token: token, To: to, Amount: amt.Dec()})
		o.afterCommit(func() { log.Printf("✅ Transferred %s of %s to %s", amt.Dec(), token.Hex(), to.Hex()) })
		return nil
	})
}
