package domain

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a structured record emitted by a successful ledger entry point.
// Amounts are carried as base-10 strings.
type Event interface {
	EventName() string
}

type TokenAdded struct {
	Token common.Address `json:"token"`
}

type TokenRemoved struct {
	Token common.Address `json:"token"`
}

type ManagerAdded struct {
	Manager common.Address `json:"manager"`
	Token   common.Address `json:"token"`
	Limit   string         `json:"limit"`
}

type ManagerRemoved struct {
	Manager common.Address `json:"manager"`
}

type LoanAdded struct {
	User          common.Address `json:"user"`
	Token         common.Address `json:"token"`
	LoanID        uint64         `json:"loanId"`
	Amount        string         `json:"amount"`
	Period        uint64         `json:"period"`
	DailyInterest uint64         `json:"dailyInterest"`
	ClaimDeadline int64          `json:"claimDeadline"`
}

type LoanCanceled struct {
	User   common.Address `json:"user"`
	LoanID uint64         `json:"loanId"`
}

type LoanClaimed struct {
	User   common.Address `json:"user"`
	LoanID uint64         `json:"loanId"`
}

type RepaymentAdded struct {
	User          common.Address `json:"user"`
	LoanID        uint64         `json:"loanId"`
	RepaidAmount  string         `json:"repaidAmount"`
	RemainingDebt string         `json:"remainingDebt"`
}

type UserAddressChanged struct {
	OldWallet common.Address `json:"oldWalletAddress"`
	NewWallet common.Address `json:"newWalletAddress"`
}

type ManagerChanged struct {
	Borrower common.Address `json:"borrower"`
	Manager  common.Address `json:"manager"`
}

type RevenueAddressUpdated struct {
	Old common.Address `json:"oldRevenueAddress"`
	New common.Address `json:"newRevenueAddress"`
}

type FundsTransferred struct {
	Token  common.Address `json:"token"`
	To     common.Address `json:"to"`
	Amount string         `json:"amount"`
}

// LoanExpired is informational; expiry is never stored on the loan itself.
type LoanExpired struct {
	User          common.Address `json:"user"`
	UserID        uint64         `json:"userId"`
	LoanID        uint64         `json:"loanId"`
	ClaimDeadline int64          `json:"claimDeadline"`
}

func (TokenAdded) EventName() string            { return "TokenAdded" }
func (TokenRemoved) EventName() string          { return "TokenRemoved" }
func (ManagerAdded) EventName() string          { return "ManagerAdded" }
func (ManagerRemoved) EventName() string        { return "ManagerRemoved" }
func (LoanAdded) EventName() string             { return "LoanAdded" }
func (LoanCanceled) EventName() string          { return "LoanCanceled" }
func (LoanClaimed) EventName() string           { return "LoanClaimed" }
func (RepaymentAdded) EventName() string        { return "RepaymentAdded" }
func (UserAddressChanged) EventName() string    { return "UserAddressChanged" }
func (ManagerChanged) EventName() string        { return "ManagerChanged" }
func (RevenueAddressUpdated) EventName() string { return "RevenueAddressUpdated" }
func (FundsTransferred) EventName() string      { return "FundsTransferred" }
func (LoanExpired) EventName() string           { return "LoanExpired" }

// EventEnvelope is an event as journaled and published.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emittedAt"`
}
