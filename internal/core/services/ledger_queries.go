package services

import (
	"context"
	"encoding/json"
	"errors"

	"microcredit/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// Queries read committed state without taking the entry lock.

// WalletMetadata returns the identity record of a wallet
func (l *LoanLedger) WalletMetadata(ctx context.Context, wallet common.Address) (*domain.WalletMetadata, error) {
	return l.wallets.Resolve(ctx, wallet)
}

// UserLoan returns a loan with its live debt and derived status
func (l *LoanLedger) UserLoan(ctx context.Context, wallet common.Address, loanID uint64) (*domain.LoanView, error) {
	loan, err := l.loanOf(ctx, wallet, loanID)
	if err != nil {
		return nil, err
	}
	now := l.Now()
	return &domain.LoanView{
		Loan:        loan,
		CurrentDebt: CurrentDebt(loan, now).Debt,
		Status:      loan.Status(now),
	}, nil
}

// UserLoanRepayment returns one repayment of a loan
func (l *LoanLedger) UserLoanRepayment(ctx context.Context, wallet common.Address, loanID, repaymentID uint64) (*domain.Repayment, error) {
	loan, err := l.loanOf(ctx, wallet, loanID)
	if err != nil {
		return nil, err
	}
	if repaymentID >= uint64(len(loan.Repayments)) {
		return nil, domain.ErrRepaymentNotFound
	}
	repayment := loan.Repayments[repaymentID]
	return &repayment, nil
}

// Tokens lists every registered token
func (l *LoanLedger) Tokens(ctx context.Context) ([]*domain.Token, error) {
	return l.tokens.List(ctx)
}

// Managers lists managers in insertion order
func (l *LoanLedger) Managers(ctx context.Context, activeOnly bool) ([]*domain.Manager, error) {
	return l.managerRepo.List(ctx, activeOnly)
}

// ManagerLimits lists the token limits of a manager
func (l *LoanLedger) ManagerLimits(ctx context.Context, manager common.Address) ([]*domain.ManagerTokenLimit, error) {
	if _, err := l.managerRepo.Get(ctx, manager); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrManagerNotFound
		}
		return nil, err
	}
	return l.limits.List(ctx, manager)
}

// ManagerLimit returns the limit of a manager in one token
func (l *LoanLedger) ManagerLimit(ctx context.Context, manager, token common.Address) (*domain.ManagerTokenLimit, error) {
	return l.limits.Get(ctx, manager, token)
}

// Wallets lists known wallets with pagination
func (l *LoanLedger) Wallets(ctx context.Context, offset, limit int) ([]*domain.WalletMetadata, int64, error) {
	return l.wallets.List(ctx, offset, limit)
}

// Events lists journaled events newest first, optionally filtered by name
func (l *LoanLedger) Events(ctx context.Context, name string, offset, limit int) ([]domain.EventEnvelope, int64, error) {
	rows, total, err := l.eventRepo.List(ctx, name, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	events := make([]domain.EventEnvelope, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.EventEnvelope{
			ID:        row.EventID,
			Name:      row.Name,
			Payload:   json.RawMessage(row.Payload),
			EmittedAt: row.CreatedAt,
		})
	}
	return events, total, nil
}
