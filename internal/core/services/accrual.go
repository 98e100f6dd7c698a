package services

import (
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/holiman/uint256"
)

// bpsToWad converts a basis-point rate to an 18-decimal fraction (100 bps = 0.01e18).
var bpsToWad = uint256.NewInt(100_000_000_000_000)

// maxAmount is returned when compounding would overflow 256 bits.
var maxAmount = new(uint256.Int).SetAllOne()

// Accrual is the debt of a loan at a point in time.
type Accrual struct {
	Debt        *uint256.Int
	ElapsedDays uint64
}

// DailyFactor returns 1 + rate in 18-decimal fixed point.
func DailyFactor(dailyRateBps uint64) *uint256.Int {
	f := new(uint256.Int).Mul(uint256.NewInt(dailyRateBps), bpsToWad)
	return f.Add(f, amount.WAD)
}

// Compound applies days whole days of interest to debt, truncating after each day.
func Compound(debt *uint256.Int, dailyRateBps, days uint64) *uint256.Int {
	current := amount.Clone(debt)
	if current.IsZero() || dailyRateBps == 0 {
		return current
	}
	factor := DailyFactor(dailyRateBps)
	for ; days > 0; days-- {
		next, overflow := new(uint256.Int).MulDivOverflow(current, factor, amount.WAD)
		if overflow {
			return maxAmount.Clone()
		}
		current = next
	}
	return current
}

// ElapsedDays counts whole days between the loan's last checkpoint and now.
func ElapsedDays(loan *domain.Loan, now int64) uint64 {
	if now <= loan.LastComputedDate {
		return 0
	}
	return uint64((now - loan.LastComputedDate) / domain.SecondsPerDay)
}

// CurrentDebt computes the loan's debt at now from its last checkpoint.
// It reads nothing but its arguments and mutates nothing.
func CurrentDebt(loan *domain.Loan, now int64) Accrual {
	if loan.LastComputedDebt == nil || loan.LastComputedDebt.IsZero() {
		return Accrual{Debt: amount.Zero()}
	}
	days := ElapsedDays(loan, now)
	return Accrual{
		Debt:        Compound(loan.LastComputedDebt, loan.DailyInterestRateBps, days),
		ElapsedDays: days,
	}
}
