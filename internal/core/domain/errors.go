package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every specific ledger error wraps exactly one of them.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrAuthorization  = errors.New("not authorized")
	ErrInvalidState   = errors.New("invalid state")
	ErrLimitExceeded  = errors.New("manager limit exceeded")
	ErrArityMismatch  = errors.New("batched inputs have different lengths")
	ErrReentrant      = errors.New("reentrant call")
	ErrTransferFailed = errors.New("transfer failed")
)

func categorized(category error, msg string) error {
	return fmt.Errorf("%w: %s", category, msg)
}

// Token errors
var (
	ErrTokenAlreadyActive = categorized(ErrInvalidState, "token already active")
	ErrTokenNotActive     = categorized(ErrInvalidState, "token not active")
)

// Wallet errors
var (
	ErrSourceNotMigratable = categorized(ErrInvalidState, "source wallet cannot be migrated")
	ErrTargetAlreadyBound  = categorized(ErrInvalidState, "target wallet already bound to a user")
	ErrWalletMoved         = categorized(ErrInvalidState, "wallet has been moved")
	ErrUserNotFound        = categorized(ErrNotFound, "user not found")
)

// Manager errors
var (
	ErrNotManager      = categorized(ErrAuthorization, "caller is not an active manager")
	ErrNotLoanManager  = categorized(ErrAuthorization, "caller did not originate this loan")
	ErrManagerNotFound = categorized(ErrNotFound, "manager not found")
)

// Loan errors
var (
	ErrLoanNotFound         = categorized(ErrNotFound, "loan not found")
	ErrRepaymentNotFound    = categorized(ErrNotFound, "repayment not found")
	ErrActiveLoanExists     = categorized(ErrInvalidState, "user has an active loan")
	ErrLoanAlreadyClaimed   = categorized(ErrInvalidState, "loan already claimed")
	ErrLoanCanceled         = categorized(ErrInvalidState, "loan canceled")
	ErrLoanExpired          = categorized(ErrInvalidState, "loan expired")
	ErrLoanNotClaimed       = categorized(ErrInvalidState, "loan not claimed")
	ErrLoanSettled          = categorized(ErrInvalidState, "loan already settled")
	ErrInvalidClaimDeadline = categorized(ErrInvalidInput, "claim deadline must be in the future")
	ErrInvalidAmount        = categorized(ErrInvalidInput, "amount must be greater than 0")
	ErrInvalidAddress       = categorized(ErrInvalidInput, "invalid address")
	ErrInsufficientBalance  = categorized(ErrTransferFailed, "insufficient balance")
	ErrCustodyNotConfigured = categorized(ErrInvalidState, "custody address not configured")
)

// Auth errors
var (
	ErrInvalidCredentials = categorized(ErrAuthorization, "invalid credentials")
	ErrInvalidSignature   = categorized(ErrAuthorization, "invalid signature")
	ErrNonceNotFound      = categorized(ErrAuthorization, "nonce expired or not issued")
)
