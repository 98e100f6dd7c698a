package services

import (
	"context"
	"time"

	"microcredit/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransferGateway moves fungible tokens. A transfer either fully succeeds or
// returns an error and moves nothing.
//
// Transfer runs while the ledger holds its entry lock. Implementations that
// call back into the ledger must pass ctx along: re-entry is recognized from
// ctx and fails with domain.ErrReentrant, while a call on a fresh context
// waits for the lock and never returns.
type TransferGateway interface {
	Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error
}

// SettlementNotice is handed to the settlement hook once a loan's debt reaches zero.
type SettlementNotice struct {
	Payer        common.Address `json:"payer"`
	Token        common.Address `json:"token"`
	UserID       uint64         `json:"userId"`
	LoanID       uint64         `json:"loanId"`
	InterestPaid string         `json:"interestPaid"`
}

// SettlementHook is the rewards collaborator notified on full settlement.
// LoanSettled runs under the ledger's entry lock; the ctx rule of
// TransferGateway applies.
type SettlementHook interface {
	LoanSettled(ctx context.Context, notice SettlementNotice) error
}

// EventPublisher forwards committed events to off-ledger consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.EventEnvelope) error
}

// Clock supplies the current time.
type Clock func() time.Time

// TxRunner runs fn as one atomic unit of work.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopHook struct{}

func (noopHook) LoanSettled(context.Context, SettlementNotice) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, []domain.EventEnvelope) error { return nil }
