package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SecondsPerDay is the accrual period.
const SecondsPerDay int64 = 86400

// Role represents an operator role in the system
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// Caller identifies who invokes a ledger entry point. Owner is set when the
// access-control layer granted the owner capability.
type Caller struct {
	Address common.Address
	Owner   bool
}

// Token is a settlement asset accepted by the ledger
type Token struct {
	Address   common.Address
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manager is an operator allowed to originate loans
type Manager struct {
	Address   common.Address
	Active    bool
	CreatedAt time.Time
}

// ManagerTokenLimit is the lending ceiling of one manager in one token.
type ManagerTokenLimit struct {
	Manager                common.Address
	Token                  common.Address
	CurrentLentAmountLimit *uint256.Int
	CurrentLentAmount      *uint256.Int
}

// Available returns the headroom left under the ceiling, zero when over limit.
func (l *ManagerTokenLimit) Available() *uint256.Int {
	if l.CurrentLentAmount.Cmp(l.CurrentLentAmountLimit) >= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(l.CurrentLentAmountLimit, l.CurrentLentAmount)
}

// OverLimit reports whether utilization exceeds the ceiling, which happens
// when an admin lowers a limit below what is already lent.
func (l *ManagerTokenLimit) OverLimit() bool {
	return l.CurrentLentAmount.Gt(l.CurrentLentAmountLimit)
}

// WalletMetadata maps a wallet to its user identity
type WalletMetadata struct {
	Address     common.Address
	UserID      uint64
	MovedTo     common.Address
	LoansLength uint64
}

// Moved reports whether the wallet was migrated away and is frozen.
func (w *WalletMetadata) Moved() bool {
	return w.MovedTo != (common.Address{})
}

// LoanStatus is derived from the loan fields, never stored
type LoanStatus string

const (
	LoanStatusProposed LoanStatus = "PROPOSED"
	LoanStatusClaimed  LoanStatus = "CLAIMED"
	LoanStatusSettled  LoanStatus = "SETTLED"
	LoanStatusCanceled LoanStatus = "CANCELED"
	LoanStatusExpired  LoanStatus = "EXPIRED"
)

// Loan is one entry in a user's append-only loan sequence.
type Loan struct {
	UserID               uint64
	Index                uint64
	TokenAddress         common.Address
	AmountBorrowed       *uint256.Int
	Period               uint64 // seconds
	DailyInterestRateBps uint64
	ClaimDeadline        int64 // 0 = canceled
	StartDate            int64 // 0 = unclaimed
	LastComputedDebt     *uint256.Int
	LastComputedDate     int64
	AmountRepaid         *uint256.Int
	ManagerAddress       common.Address
	Repayments           []Repayment
	ExpiryNotifiedAt     *time.Time
	CreatedAt            time.Time
}

// Status derives the lifecycle state at the given unix time.
func (l *Loan) Status(now int64) LoanStatus {
	switch {
	case l.StartDate == 0 && l.ClaimDeadline == 0:
		return LoanStatusCanceled
	case l.StartDate == 0 && l.ClaimDeadline < now:
		return LoanStatusExpired
	case l.StartDate == 0:
		return LoanStatusProposed
	case l.LastComputedDebt == nil || l.LastComputedDebt.IsZero():
		return LoanStatusSettled
	default:
		return LoanStatusClaimed
	}
}

// Terminal reports whether the loan no longer blocks a new loan for its user.
func (l *Loan) Terminal(now int64) bool {
	switch l.Status(now) {
	case LoanStatusSettled, LoanStatusCanceled, LoanStatusExpired:
		return true
	}
	return false
}

// Repayment is an immutable record of one payment against a loan
type Repayment struct {
	Date   int64
	Amount *uint256.Int
}

// LoanView is a loan with its live-computed debt.
type LoanView struct {
	*Loan
	CurrentDebt *uint256.Int
	Status      LoanStatus
}

// Operator is a dashboard account (owner or manager) that logs in with a password
type Operator struct {
	ID        uint           `json:"id"`
	Username  string         `json:"username"`
	Address   common.Address `json:"address"`
	Password  string         `json:"-"` // Hashed
	Role      Role           `json:"role"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
}

// TokenStats aggregates the loan book of one token
type TokenStats struct {
	Token           common.Address
	Proposed        int64
	Claimed         int64
	Settled         int64
	Canceled        int64
	Expired         int64
	TotalBorrowed   *uint256.Int
	TotalRepaid     *uint256.Int
	OutstandingDebt *uint256.Int
}
