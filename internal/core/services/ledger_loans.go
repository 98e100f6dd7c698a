package services

import (
	"context"
	"fmt"
	"log"

	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AddLoanInput proposes one loan
type AddLoanInput struct {
	User                 common.Address
	Token                common.Address
	Amount               *uint256.Int
	Period               uint64
	DailyInterestRateBps uint64
	ClaimDeadline        int64
}

// AddLoansInput proposes a batch of loans; every slice must have the same length
type AddLoansInput struct {
	Users                []common.Address
	Tokens               []common.Address
	Amounts              []*uint256.Int
	Periods              []uint64
	DailyInterestRateBps []uint64
	ClaimDeadlines       []int64
}

// Loans zips the batch, failing on slices of different length
func (in AddLoansInput) Loans() ([]AddLoanInput, error) {
	n := len(in.Users)
	if len(in.Tokens) != n || len(in.Amounts) != n || len(in.Periods) != n ||
		len(in.DailyInterestRateBps) != n || len(in.ClaimDeadlines) != n {
		return nil, domain.ErrArityMismatch
	}
	loans := make([]AddLoanInput, n)
	for i := range loans {
		loans[i] = AddLoanInput{
			User:                 in.Users[i],
			Token:                in.Tokens[i],
			Amount:               in.Amounts[i],
			Period:               in.Periods[i],
			DailyInterestRateBps: in.DailyInterestRateBps[i],
			ClaimDeadline:        in.ClaimDeadlines[i],
		}
	}
	return loans, nil
}

// RepaymentResult reports how a repayment was applied
type RepaymentResult struct {
	LoanID        uint64
	Allocation    Allocation
	RemainingDebt *uint256.Int
	Settled       bool
}

// AddLoan proposes a loan from the calling manager and returns its id
func (l *LoanLedger) AddLoan(ctx context.Context, caller domain.Caller, in AddLoanInput) (uint64, error) {
	var id uint64
	err := l.execute(ctx, func(ctx context.Context, o *op) error {
		var err error
		id, err = l.addLoan(ctx, o, caller, in)
		return err
	})
	return id, err
}

// AddLoans proposes a batch of loans atomically
func (l *LoanLedger) AddLoans(ctx context.Context, caller domain.Caller, in AddLoansInput) ([]uint64, error) {
	loans, err := in.Loans()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(loans))
	err = l.execute(ctx, func(ctx context.Context, o *op) error {
		for _, loan := range loans {
			id, err := l.addLoan(ctx, o, caller, loan)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (l *LoanLedger) addLoan(ctx context.Context, o *op, caller domain.Caller, in AddLoanInput) (uint64, error) {
	if in.Amount == nil || in.Amount.IsZero() {
		return 0, domain.ErrInvalidAmount
	}
	if in.User == (common.Address{}) {
		return 0, domain.ErrInvalidAddress
	}
	if err := l.activeManager(ctx, caller.Address); err != nil {
		return 0, err
	}

	active, err := l.tokens.IsActive(ctx, in.Token)
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, domain.ErrTokenNotActive
	}
	if in.ClaimDeadline <= o.now {
		return 0, domain.ErrInvalidClaimDeadline
	}

	meta, err := l.wallets.Resolve(ctx, in.User)
	if err != nil {
		return 0, err
	}
	if meta.Moved() {
		return 0, domain.ErrWalletMoved
	}
	userID, err := l.wallets.EnsureUser(ctx, in.User)
	if err != nil {
		return 0, err
	}

	length, err := l.loanRepo.Length(ctx, userID)
	if err != nil {
		return 0, err
	}
	if length > 0 {
		prev, err := l.loanRepo.Get(ctx, userID, length-1)
		if err != nil {
			return 0, err
		}
		if !prev.Terminal(o.now) {
			return 0, domain.ErrActiveLoanExists
		}
	}

	if err := l.limits.Admit(ctx, caller.Address, in.Token, in.Amount); err != nil {
		return 0, err
	}

	loan := &domain.Loan{
		UserID:               userID,
		TokenAddress:         in.Token,
		AmountBorrowed:       in.Amount.Clone(),
		Period:               in.Period,
		DailyInterestRateBps: in.DailyInterestRateBps,
		ClaimDeadline:        in.ClaimDeadline,
		LastComputedDebt:     amount.Zero(),
		AmountRepaid:         amount.Zero(),
		ManagerAddress:       caller.Address,
	}
	id, err := l.loanRepo.Append(ctx, loan)
	if err != nil {
		return 0, err
	}

	o.emit(domain.LoanAdded{
		User:          in.User,
		Token:         in.Token,
		LoanID:        id,
		Amount:        in.Amount.Dec(),
		Period:        in.Period,
		DailyInterest: in.DailyInterestRateBps,
		ClaimDeadline: in.ClaimDeadline,
	})
	o.afterCommit(func() {
		l.metrics.LoanAdded()
		log.Printf("✅ Loan %d of %s proposed to %s", id, in.Amount.Dec(), in.User.Hex())
	})
	return id, nil
}

// CancelLoans cancels proposed loans and releases their reserved limit.
// users and loanIDs must have the same length.
func (l *LoanLedger) CancelLoans(ctx context.Context, caller domain.Caller, users []common.Address, loanIDs []uint64) error {
	if len(users) != len(loanIDs) {
		return domain.ErrArityMismatch
	}
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		for i, user := range users {
			if err := l.cancelLoan(ctx, o, caller, user, loanIDs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *LoanLedger) cancelLoan(ctx context.Context, o *op, caller domain.Caller, user common.Address, loanID uint64) error {
	loan, err := l.loanOf(ctx, user, loanID)
	if err != nil {
		return err
	}
	if !caller.Owner && loan.ManagerAddress != caller.Address {
		return domain.ErrNotLoanManager
	}
	if loan.StartDate != 0 {
		return domain.ErrLoanAlreadyClaimed
	}
	if loan.ClaimDeadline == 0 {
		return domain.ErrLoanCanceled
	}

	loan.ClaimDeadline = 0
	if err := l.loanRepo.Update(ctx, loan); err != nil {
		return err
	}
	if err := l.limits.Release(ctx, loan.ManagerAddress, loan.TokenAddress, loan.AmountBorrowed); err != nil {
		return err
	}

	o.emit(domain.LoanCanceled{User: user, LoanID: loanID})
	o.afterCommit(func() {
		l.metrics.LoanCanceled()
		log.Printf("✅ Loan %d of %s canceled", loanID, user.Hex())
	})
	return nil
}

// ClaimLoan draws down a proposed loan to the calling wallet
func (l *LoanLedger) ClaimLoan(ctx context.Context, caller domain.Caller, loanID uint64) error {
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		loan, err := l.loanOf(ctx, caller.Address, loanID)
		if err != nil {
			return err
		}
		switch {
		case loan.StartDate != 0:
			return domain.ErrLoanAlreadyClaimed
		case loan.ClaimDeadline == 0:
			return domain.ErrLoanCanceled
		case loan.ClaimDeadline < o.now:
			return domain.ErrLoanExpired
		}
		if l.custody == (common.Address{}) {
			return domain.ErrCustodyNotConfigured
		}

		// The principal starts with one day of interest applied.
		loan.StartDate = o.now
		loan.LastComputedDebt = Compound(loan.AmountBorrowed, loan.DailyInterestRateBps, 1)
		loan.LastComputedDate = o.now
		if err := l.loanRepo.Update(ctx, loan); err != nil {
			return err
		}

		if err := l.gateway.Transfer(ctx, loan.TokenAddress, l.custody, caller.Address, loan.AmountBorrowed); err != nil {
			return transferFailed(err)
		}

		o.emit(domain.LoanClaimed{User: caller.Address, LoanID: loanID})
		o.afterCommit(func() {
			l.metrics.LoanClaimed()
			log.Printf("✅ Loan %d claimed by %s", loanID, caller.Address.Hex())
		})
		return nil
	})
}

// RepayLoan pays amt towards the calling wallet's loan. Amounts above the
// current debt are clamped.
func (l *LoanLedger) RepayLoan(ctx context.Context, caller domain.Caller, loanID uint64, amt *uint256.Int) (*RepaymentResult, error) {
	if amt == nil || amt.IsZero() {
		return nil, domain.ErrInvalidAmount
	}

	var result *RepaymentResult
	err := l.execute(ctx, func(ctx context.Context, o *op) error {
		loan, err := l.loanOf(ctx, caller.Address, loanID)
		if err != nil {
			return err
		}
		if loan.StartDate == 0 {
			return domain.ErrLoanNotClaimed
		}
		if loan.LastComputedDebt.IsZero() {
			return domain.ErrLoanSettled
		}

		revenue, err := l.RevenueAddress(ctx)
		if err != nil {
			return err
		}
		accrual := CurrentDebt(loan, o.now)
		alloc, err := l.allocator.Apply(ctx, loan, accrual, amt, o.now, revenue != (common.Address{}))
		if err != nil {
			return err
		}
		if !alloc.ToCustody.IsZero() && l.custody == (common.Address{}) {
			return domain.ErrCustodyNotConfigured
		}

		if err := l.loanRepo.Update(ctx, loan); err != nil {
			return err
		}
		if err := l.loanRepo.AppendRepayment(ctx, loan, loan.Repayments[len(loan.Repayments)-1]); err != nil {
			return err
		}

		if !alloc.ToCustody.IsZero() {
			if err := l.gateway.Transfer(ctx, loan.TokenAddress, caller.Address, l.custody, alloc.ToCustody); err != nil {
				return transferFailed(err)
			}
		}
		if !alloc.ToRevenue.IsZero() {
			if err := l.gateway.Transfer(ctx, loan.TokenAddress, caller.Address, revenue, alloc.ToRevenue); err != nil {
				return transferFailed(err)
			}
		}

		settled := loan.LastComputedDebt.IsZero()
		if settled {
			notice := SettlementNotice{
				Payer:        caller.Address,
				Token:        loan.TokenAddress,
				UserID:       loan.UserID,
				LoanID:       loanID,
				InterestPaid: InterestPaid(loan).Dec(),
			}
			if err := l.hook.LoanSettled(ctx, notice); err != nil {
				return transferFailed(fmt.Errorf("settlement hook: %w", err))
			}
		}

		o.emit(domain.RepaymentAdded{
			User:          caller.Address,
			LoanID:        loanID,
			RepaidAmount:  alloc.Amount.Dec(),
			RemainingDebt: loan.LastComputedDebt.Dec(),
		})
		result = &RepaymentResult{
			LoanID:        loanID,
			Allocation:    alloc,
			RemainingDebt: loan.LastComputedDebt.Clone(),
			Settled:       settled,
		}
		o.afterCommit(func() {
			l.metrics.Repaid(alloc.ToCustody, alloc.ToRevenue)
			log.Printf("✅ Repaid %s on loan %d of %s, remaining %s",
				alloc.Amount.Dec(), loanID, caller.Address.Hex(), result.RemainingDebt.Dec())
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChangeUserAddress migrates a user identity to a new wallet
func (l *LoanLedger) ChangeUserAddress(ctx context.Context, caller domain.Caller, oldWallet, newWallet common.Address) error {
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		if err := l.requireOperator(ctx, caller); err != nil {
			return err
		}
		if err := l.wallets.Migrate(ctx, oldWallet, newWallet); err != nil {
			return err
		}
		o.emit(domain.UserAddressChanged{OldWallet: oldWallet, NewWallet: newWallet})
		o.afterCommit(func() { log.Printf("✅ Wallet %s moved to %s", oldWallet.Hex(), newWallet.Hex()) })
		return nil
	})
}

// ChangeManager relabels the manager of borrowers for off-ledger consumers.
// Loan and limit state is not touched.
func (l *LoanLedger) ChangeManager(ctx context.Context, caller domain.Caller, borrowers []common.Address, manager common.Address) error {
	return l.execute(ctx, func(ctx context.Context, o *op) error {
		if err := l.requireOperator(ctx, caller); err != nil {
			return err
		}
		for _, borrower := range borrowers {
			o.emit(domain.ManagerChanged{Borrower: borrower, Manager: manager})
		}
		return nil
	})
}

// SweepExpired reports up to limit newly expired proposals with a LoanExpired
// event each. Loan state is not changed; only the notification marker is set.
func (l *LoanLedger) SweepExpired(ctx context.Context, limit int) (int, error) {
	var swept int
	err := l.execute(ctx, func(ctx context.Context, o *op) error {
		loans, err := l.loanRepo.ListExpiredUnnotified(ctx, o.now, limit)
		if err != nil {
			return err
		}
		for _, loan := range loans {
			wallet, err := l.wallets.ActiveWallet(ctx, loan.UserID)
			if err != nil {
				return fmt.Errorf("active wallet of user %d: %w", loan.UserID, err)
			}
			if err := l.loanRepo.MarkExpiryNotified(ctx, loan, o.at); err != nil {
				return err
			}
			o.emit(domain.LoanExpired{
				User:          wallet,
				UserID:        loan.UserID,
				LoanID:        loan.Index,
				ClaimDeadline: loan.ClaimDeadline,
			})
		}
		swept = len(loans)
		return nil
	})
	return swept, err
}
