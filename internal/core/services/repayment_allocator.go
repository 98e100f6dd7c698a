package services

import (
	"context"

	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/holiman/uint256"
)

// Allocation says where one repayment goes.
type Allocation struct {
	Amount    *uint256.Int // repayment after clamping to the current debt
	ToCustody *uint256.Int // principal recovery, back to the ledger's custody
	ToRevenue *uint256.Int // interest, to the revenue destination
	Release   *uint256.Int // manager limit restored
}

// Allocate runs the repayment waterfall against amountRepaid as it stood before
// this repayment. Overpayment is clamped to the current debt.
func Allocate(currentDebt, borrowed, repaid, requested *uint256.Int, revenueConfigured bool) Allocation {
	pay := amount.Min(requested, currentDebt)
	alloc := Allocation{
		Amount:    pay,
		ToCustody: amount.Zero(),
		ToRevenue: amount.Zero(),
		Release:   amount.Zero(),
	}

	after, overflow := amount.Add(repaid, pay)
	switch {
	case !overflow && after.Cmp(borrowed) <= 0:
		alloc.ToCustody = pay.Clone()
		alloc.Release = pay.Clone()
	case repaid.Cmp(borrowed) >= 0:
		// Without a revenue destination the interest stays in custody.
		if revenueConfigured {
			alloc.ToRevenue = pay.Clone()
		} else {
			alloc.ToCustody = pay.Clone()
		}
	case revenueConfigured:
		principal := new(uint256.Int).Sub(borrowed, repaid)
		alloc.ToCustody = principal
		alloc.Release = principal.Clone()
		alloc.ToRevenue = new(uint256.Int).Sub(pay, principal)
	default:
		alloc.ToCustody = pay.Clone()
		alloc.Release = pay.Clone()
	}
	return alloc
}

// RepaymentAllocator applies repayments to loans and restores manager limits.
type RepaymentAllocator struct {
	limits *ManagerLimitTracker
}

// NewRepaymentAllocator creates a new repayment allocator
func NewRepaymentAllocator(limits *ManagerLimitTracker) *RepaymentAllocator {
	return &RepaymentAllocator{limits: limits}
}

// Apply allocates requested against the loan's accrued debt, records the
// repayment on the loan, advances its checkpoint by whole days only and
// releases the manager limit. The caller persists the loan and moves funds.
func (a *RepaymentAllocator) Apply(ctx context.Context, loan *domain.Loan, accrual Accrual, requested *uint256.Int, now int64, revenueConfigured bool) (Allocation, error) {
	alloc := Allocate(accrual.Debt, loan.AmountBorrowed, loan.AmountRepaid, requested, revenueConfigured)

	loan.Repayments = append(loan.Repayments, domain.Repayment{Date: now, Amount: alloc.Amount.Clone()})
	loan.LastComputedDebt = new(uint256.Int).Sub(accrual.Debt, alloc.Amount)
	loan.AmountRepaid = new(uint256.Int).Add(loan.AmountRepaid, alloc.Amount)
	loan.LastComputedDate += int64(accrual.ElapsedDays) * domain.SecondsPerDay

	if !alloc.Release.IsZero() {
		if err := a.limits.Release(ctx, loan.ManagerAddress, loan.TokenAddress, alloc.Release); err != nil {
			return Allocation{}, err
		}
	}
	return alloc, nil
}

// InterestPaid is the surplus repaid above principal.
func InterestPaid(loan *domain.Loan) *uint256.Int {
	return amount.Sub(loan.AmountRepaid, loan.AmountBorrowed)
}
