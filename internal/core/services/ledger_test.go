package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/adapters/persistence/testdb"
	"microcredit/internal/adapters/transfer"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	owner   = domain.Caller{Address: common.HexToAddress("0x00000000000000000000000000000000000000f0"), Owner: true}
	custody = common.HexToAddress("0x0000000000000000000000000000000000c05d0d")
	revenue = common.HexToAddress("0x000000000000000000000000000000000000feed")
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.EventEnvelope
}

func (p *capturePublisher) Publish(_ context.Context, events []domain.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}

type recordingHook struct {
	notices []SettlementNotice
	err     error
}

func (h *recordingHook) LoanSettled(_ context.Context, notice SettlementNotice) error {
	if h.err != nil {
		return h.err
	}
	h.notices = append(h.notices, notice)
	return nil
}

type ledgerHarness struct {
	db        *gorm.DB
	ledger    *LoanLedger
	gateway   *transfer.BookGateway
	hook      *recordingHook
	publisher *capturePublisher
	now       time.Time
}

func (h *ledgerHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *ledgerHarness) balance(t *testing.T, account common.Address) uint64 {
	t.Helper()
	v, err := h.gateway.BalanceOf(context.Background(), tokenA, account)
	require.NoError(t, err)
	return v.Uint64()
}

func (h *ledgerHarness) utilization(t *testing.T, manager common.Address) uint64 {
	t.Helper()
	limit, err := h.ledger.ManagerLimit(context.Background(), manager, tokenA)
	require.NoError(t, err)
	return limit.CurrentLentAmount.Uint64()
}

func (h *ledgerHarness) mint(t *testing.T, account common.Address, amt uint64) {
	t.Helper()
	require.NoError(t, h.gateway.Mint(context.Background(), tokenA, account, uint256.NewInt(amt)))
}

// newLedger returns a ledger with tokenA active, manager1 granted limit in
// tokenA, custody funded and the revenue address configured.
func newLedger(t *testing.T, limit uint64, gateway func(*transfer.BookGateway) TransferGateway) *ledgerHarness {
	t.Helper()
	db := testdb.Open(t)
	txManager := repositories.NewTxManager(db)
	book := transfer.NewBookGateway(txManager, repositories.NewBalanceRepository(db))
	managerRepo := repositories.NewManagerRepository(db)

	h := &ledgerHarness{
		db:        db,
		gateway:   book,
		hook:      &recordingHook{},
		publisher: &capturePublisher{},
		now:       time.Unix(1_700_000_000, 0),
	}
	var gw TransferGateway = book
	if gateway != nil {
		gw = gateway(book)
	}
	h.ledger = NewLoanLedger(LedgerDeps{
		Tx:          txManager,
		Tokens:      NewTokenRegistry(repositories.NewTokenRepository(db)),
		Wallets:     NewWalletRegistry(repositories.NewWalletRepository(db)),
		Limits:      NewManagerLimitTracker(managerRepo),
		ManagerRepo: managerRepo,
		LoanRepo:    repositories.NewLoanRepository(db),
		EventRepo:   repositories.NewEventRepository(db),
		SettingRepo: repositories.NewSettingRepository(db),
		Gateway:     gw,
		Hook:        h.hook,
		Publisher:   h.publisher,
		Clock:       func() time.Time { return h.now },
		Custody:     custody,
	})

	ctx := context.Background()
	require.NoError(t, h.ledger.AddToken(ctx, owner, tokenA))
	require.NoError(t, h.ledger.AddManagers(ctx, owner, []ManagerGrant{{Manager: manager1, Token: tokenA, Limit: u(limit)}}))
	require.NoError(t, h.ledger.InitRevenueAddress(ctx, revenue))
	h.mint(t, custody, 1_000_000)
	return h
}

func (h *ledgerHarness) proposal(user common.Address, amt, rateBps uint64) AddLoanInput {
	return AddLoanInput{
		User:                 user,
		Token:                tokenA,
		Amount:               u(amt),
		Period:               30 * uint64(day),
		DailyInterestRateBps: rateBps,
		ClaimDeadline:        h.now.Unix() + 1000,
	}
}

var asManager1 = domain.Caller{Address: manager1}

func TestLoanLedger_ClaimAndRepayInFull(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	borrower := domain.Caller{Address: alice}
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))

	view, err := h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), view.LastComputedDebt.Uint64())
	assert.Equal(t, uint64(1010), view.CurrentDebt.Uint64())
	assert.Equal(t, domain.LoanStatusClaimed, view.Status)
	assert.Equal(t, uint64(1000), h.balance(t, alice))

	h.mint(t, alice, 10)
	h.advance(time.Hour)
	result, err := h.ledger.RepayLoan(ctx, borrower, id, u(1010))
	require.NoError(t, err)
	assert.True(t, result.Settled)
	assert.True(t, result.RemainingDebt.IsZero())
	assert.Equal(t, uint64(1000), result.Allocation.ToCustody.Uint64())
	assert.Equal(t, uint64(10), result.Allocation.ToRevenue.Uint64())

	view, err = h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusSettled, view.Status)
	assert.True(t, view.CurrentDebt.IsZero())

	assert.Equal(t, uint64(0), h.balance(t, alice))
	assert.Equal(t, uint64(10), h.balance(t, revenue))
	assert.Equal(t, uint64(1_000_000), h.balance(t, custody))
	assert.Equal(t, uint64(0), h.utilization(t, manager1))

	require.Len(t, h.hook.notices, 1)
	assert.Equal(t, "10", h.hook.notices[0].InterestPaid)
	assert.Equal(t, alice, h.hook.notices[0].Payer)

	events, _, err := h.ledger.Events(ctx, "RepaymentAdded", 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t,
		`{"user":"`+hexKey(alice)+`","loanId":0,"repaidAmount":"1010","remainingDebt":"0"}`,
		string(events[0].Payload))

	assert.Equal(t,
		[]string{"TokenAdded", "ManagerAdded", "LoanAdded", "LoanClaimed", "RepaymentAdded"},
		h.publisher.names())
}

func TestLoanLedger_DebtCompoundsPerWholeDay(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, id))

	h.advance(time.Duration(day-1) * time.Second)
	view, err := h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), view.CurrentDebt.Uint64())

	h.advance(time.Second)
	view, err = h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1020), view.CurrentDebt.Uint64())
	// Reading does not checkpoint.
	assert.Equal(t, uint64(1010), view.LastComputedDebt.Uint64())
}

func TestLoanLedger_RepaymentKeepsFractionalDay(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	borrower := domain.Caller{Address: alice}

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))
	claimedAt := h.now.Unix()

	h.advance(time.Duration(day+3600) * time.Second)
	_, err = h.ledger.RepayLoan(ctx, borrower, id, u(20))
	require.NoError(t, err)

	view, err := h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, claimedAt+day, view.LastComputedDate)
	assert.Equal(t, uint64(1000), view.LastComputedDebt.Uint64())
	assert.Equal(t, uint64(20), view.AmountRepaid.Uint64())

	repayment, err := h.ledger.UserLoanRepayment(ctx, alice, id, 0)
	require.NoError(t, err)
	assert.Equal(t, h.now.Unix(), repayment.Date)
	assert.Equal(t, uint64(20), repayment.Amount.Uint64())

	_, err = h.ledger.UserLoanRepayment(ctx, alice, id, 1)
	assert.ErrorIs(t, err, domain.ErrRepaymentNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoanLedger_LimitAdmissionAndCancel(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 500, nil)

	_, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 600, 100))
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
	assert.Equal(t, uint64(0), h.utilization(t, manager1))

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 500, 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), h.utilization(t, manager1))

	require.NoError(t, h.ledger.CancelLoans(ctx, asManager1, []common.Address{alice}, []uint64{id}))
	assert.Equal(t, uint64(0), h.utilization(t, manager1))

	view, err := h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusCanceled, view.Status)

	err = h.ledger.CancelLoans(ctx, asManager1, []common.Address{alice}, []uint64{id})
	assert.ErrorIs(t, err, domain.ErrLoanCanceled)
	assert.ErrorIs(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, id), domain.ErrLoanCanceled)
}

func TestLoanLedger_RepaymentWaterfall(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 1000, nil)
	borrower := domain.Caller{Address: alice}

	// 10% a day: the claim puts the debt at 1100.
	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 1000))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))
	h.mint(t, alice, 100)
	assert.Equal(t, uint64(1000), h.utilization(t, manager1))

	result, err := h.ledger.RepayLoan(ctx, borrower, id, u(300))
	require.NoError(t, err)
	assert.Equal(t, uint64(300), result.Allocation.ToCustody.Uint64())
	assert.True(t, result.Allocation.ToRevenue.IsZero())
	assert.Equal(t, uint64(700), h.utilization(t, manager1))

	_, err = h.ledger.RepayLoan(ctx, borrower, id, u(600))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), h.utilization(t, manager1))

	result, err = h.ledger.RepayLoan(ctx, borrower, id, u(200))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), result.Allocation.ToCustody.Uint64())
	assert.Equal(t, uint64(100), result.Allocation.ToRevenue.Uint64())
	assert.True(t, result.Settled)
	assert.Equal(t, uint64(0), h.utilization(t, manager1))
	assert.Equal(t, uint64(100), h.balance(t, revenue))

	require.Len(t, h.hook.notices, 1)
	assert.Equal(t, "100", h.hook.notices[0].InterestPaid)

	_, err = h.ledger.RepayLoan(ctx, borrower, id, u(1))
	assert.ErrorIs(t, err, domain.ErrLoanSettled)
}

func TestLoanLedger_OverpaymentIsClamped(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	borrower := domain.Caller{Address: alice}

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))
	h.mint(t, alice, 5000)

	result, err := h.ledger.RepayLoan(ctx, borrower, id, u(5000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), result.Allocation.Amount.Uint64())
	assert.Equal(t, uint64(5000-10), h.balance(t, alice))
}

func TestLoanLedger_NoRevenueAddressRoutesToCustody(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	require.NoError(t, h.ledger.UpdateRevenueAddress(ctx, owner, common.Address{}))
	borrower := domain.Caller{Address: alice}

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))
	h.mint(t, alice, 10)

	result, err := h.ledger.RepayLoan(ctx, borrower, id, u(1010))
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), result.Allocation.ToCustody.Uint64())
	assert.True(t, result.Allocation.ToRevenue.IsZero())
	assert.Equal(t, uint64(1_000_010), h.balance(t, custody))
	assert.Equal(t, uint64(0), h.utilization(t, manager1))
}

func TestLoanLedger_OneActiveLoanPerUser(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	borrower := domain.Caller{Address: alice}

	first, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)

	_, err = h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	assert.ErrorIs(t, err, domain.ErrActiveLoanExists)

	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, first))
	_, err = h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	assert.ErrorIs(t, err, domain.ErrActiveLoanExists)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	h.mint(t, alice, 10)
	_, err = h.ledger.RepayLoan(ctx, borrower, first, u(1010))
	require.NoError(t, err)

	second, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second)

	// An expired proposal no longer blocks the user.
	h.advance(2000 * time.Second)
	view, err := h.ledger.UserLoan(ctx, alice, second)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusExpired, view.Status)
	assert.ErrorIs(t, h.ledger.ClaimLoan(ctx, borrower, second), domain.ErrLoanExpired)

	third, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), third)

	meta, err := h.ledger.WalletMetadata(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), meta.LoansLength)
}

func TestLoanLedger_AddLoanValidation(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	in := h.proposal(alice, 100, 100)
	in.ClaimDeadline = h.now.Unix()
	_, err := h.ledger.AddLoan(ctx, asManager1, in)
	assert.ErrorIs(t, err, domain.ErrInvalidClaimDeadline)

	in = h.proposal(alice, 0, 100)
	_, err = h.ledger.AddLoan(ctx, asManager1, in)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	in = h.proposal(alice, 100, 100)
	in.Token = tokenB
	_, err = h.ledger.AddLoan(ctx, asManager1, in)
	assert.ErrorIs(t, err, domain.ErrTokenNotActive)

	_, err = h.ledger.AddLoan(ctx, domain.Caller{Address: manager2}, h.proposal(alice, 100, 100))
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	_, err = h.ledger.UserLoan(ctx, alice, 0)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLoanLedger_AddLoansBatch(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	deadline := h.now.Unix() + 1000

	_, err := h.ledger.AddLoans(ctx, asManager1, AddLoansInput{
		Users:                []common.Address{alice, bob},
		Tokens:               []common.Address{tokenA},
		Amounts:              []*uint256.Int{u(100), u(200)},
		Periods:              []uint64{1, 1},
		DailyInterestRateBps: []uint64{100, 100},
		ClaimDeadlines:       []int64{deadline, deadline},
	})
	assert.ErrorIs(t, err, domain.ErrArityMismatch)

	// The second entry fails, so the first is rolled back too.
	_, err = h.ledger.AddLoans(ctx, asManager1, AddLoansInput{
		Users:                []common.Address{alice, alice},
		Tokens:               []common.Address{tokenA, tokenA},
		Amounts:              []*uint256.Int{u(100), u(200)},
		Periods:              []uint64{1, 1},
		DailyInterestRateBps: []uint64{100, 100},
		ClaimDeadlines:       []int64{deadline, deadline},
	})
	assert.ErrorIs(t, err, domain.ErrActiveLoanExists)
	assert.Equal(t, uint64(0), h.utilization(t, manager1))
	meta, err := h.ledger.WalletMetadata(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), meta.UserID)

	ids, err := h.ledger.AddLoans(ctx, asManager1, AddLoansInput{
		Users:                []common.Address{alice, bob},
		Tokens:               []common.Address{tokenA, tokenA},
		Amounts:              []*uint256.Int{u(100), u(200)},
		Periods:              []uint64{1, 1},
		DailyInterestRateBps: []uint64{100, 100},
		ClaimDeadlines:       []int64{deadline, deadline},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 0}, ids)
	assert.Equal(t, uint64(300), h.utilization(t, manager1))

	err = h.ledger.CancelLoans(ctx, asManager1, []common.Address{alice, bob}, []uint64{0})
	assert.ErrorIs(t, err, domain.ErrArityMismatch)
}

func TestLoanLedger_CancelAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	require.NoError(t, h.ledger.AddManagers(ctx, owner, []ManagerGrant{{Manager: manager2, Token: tokenA, Limit: u(1000)}}))

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	require.NoError(t, err)

	err = h.ledger.CancelLoans(ctx, domain.Caller{Address: manager2}, []common.Address{alice}, []uint64{id})
	assert.ErrorIs(t, err, domain.ErrNotLoanManager)

	require.NoError(t, h.ledger.CancelLoans(ctx, owner, []common.Address{alice}, []uint64{id}))
	assert.Equal(t, uint64(0), h.utilization(t, manager1))
}

func TestLoanLedger_ClaimedLoanCannotBeCanceled(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, id))

	err = h.ledger.CancelLoans(ctx, asManager1, []common.Address{alice}, []uint64{id})
	assert.ErrorIs(t, err, domain.ErrLoanAlreadyClaimed)
	assert.ErrorIs(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, id), domain.ErrLoanAlreadyClaimed)
}

func TestLoanLedger_MigrationIsIrreversible(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	require.NoError(t, err)

	require.NoError(t, h.ledger.ChangeUserAddress(ctx, asManager1, alice, bob))

	_, err = h.ledger.UserLoan(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.ErrorIs(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, id), domain.ErrWalletMoved)
	_, err = h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	assert.ErrorIs(t, err, domain.ErrWalletMoved)

	view, err := h.ledger.UserLoan(ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), view.AmountBorrowed.Uint64())
	require.NoError(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: bob}, id))

	err = h.ledger.ChangeUserAddress(ctx, asManager1, bob, alice)
	assert.ErrorIs(t, err, domain.ErrTargetAlreadyBound)

	err = h.ledger.ChangeUserAddress(ctx, domain.Caller{Address: carol}, bob, carol)
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestLoanLedger_RemovedManagerKeepsOpenLoans(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	borrower := domain.Caller{Address: alice}

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))

	require.NoError(t, h.ledger.RemoveManagers(ctx, owner, []common.Address{manager1}))
	limit, err := h.ledger.ManagerLimit(ctx, manager1, tokenA)
	require.NoError(t, err)
	assert.True(t, limit.CurrentLentAmountLimit.IsZero())

	_, err = h.ledger.AddLoan(ctx, asManager1, h.proposal(bob, 100, 100))
	assert.ErrorIs(t, err, domain.ErrNotManager)

	_, err = h.ledger.RepayLoan(ctx, borrower, id, u(500))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), h.utilization(t, manager1))

	managers, err := h.ledger.Managers(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, managers)

	err = h.ledger.RemoveManagers(ctx, owner, []common.Address{manager2})
	assert.ErrorIs(t, err, domain.ErrManagerNotFound)
}

func TestLoanLedger_AdminRequiresOwner(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	assert.ErrorIs(t, h.ledger.AddToken(ctx, asManager1, tokenB), domain.ErrAuthorization)
	assert.ErrorIs(t, h.ledger.RemoveToken(ctx, asManager1, tokenA), domain.ErrAuthorization)
	assert.ErrorIs(t, h.ledger.UpdateRevenueAddress(ctx, asManager1, bob), domain.ErrAuthorization)
	assert.ErrorIs(t, h.ledger.TransferERC20(ctx, asManager1, tokenA, bob, u(1)), domain.ErrAuthorization)

	err := h.ledger.AddManagers(ctx, owner, []ManagerGrant{{Manager: manager2, Token: tokenB, Limit: u(1)}})
	assert.ErrorIs(t, err, domain.ErrTokenNotActive)
}

func TestLoanLedger_TransferERC20(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	require.NoError(t, h.ledger.TransferERC20(ctx, owner, tokenA, bob, u(250)))
	assert.Equal(t, uint64(250), h.balance(t, bob))
	assert.Equal(t, uint64(1_000_000-250), h.balance(t, custody))

	err := h.ledger.TransferERC20(ctx, owner, tokenA, bob, u(2_000_000))
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, uint64(250), h.balance(t, bob))
}

func TestLoanLedger_TransferFailureRollsBackClaim(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 2_000_000, 100))
	require.NoError(t, err)

	err = h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, id)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	view, err := h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusProposed, view.Status)
	assert.True(t, view.LastComputedDebt.IsZero())

	events, _, err := h.ledger.Events(ctx, "LoanClaimed", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLoanLedger_HookFailureRollsBackRepayment(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	borrower := domain.Caller{Address: alice}

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))
	h.mint(t, alice, 10)

	h.hook.err = errors.New("rewards offline")
	_, err = h.ledger.RepayLoan(ctx, borrower, id, u(1010))
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	view, err := h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), view.LastComputedDebt.Uint64())
	assert.Empty(t, view.Repayments)
	assert.Equal(t, uint64(1010), h.balance(t, alice))
	assert.Equal(t, uint64(1000), h.utilization(t, manager1))
}

// reenteringGateway calls back into the ledger from inside a transfer.
type reenteringGateway struct {
	TransferGateway
	ledger *LoanLedger
	nested []error
}

func (g *reenteringGateway) Transfer(ctx context.Context, token, from, to common.Address, amt *uint256.Int) error {
	_, err := g.ledger.RepayLoan(ctx, domain.Caller{Address: to}, 0, u(1))
	g.nested = append(g.nested, err)
	g.nested = append(g.nested, g.ledger.ClaimLoan(ctx, domain.Caller{Address: to}, 0))
	return g.TransferGateway.Transfer(ctx, token, from, to, amt)
}

func TestLoanLedger_RejectsReentry(t *testing.T) {
	ctx := context.Background()
	var gw *reenteringGateway
	h := newLedger(t, 10_000, func(book *transfer.BookGateway) TransferGateway {
		gw = &reenteringGateway{TransferGateway: book}
		return gw
	})
	gw.ledger = h.ledger

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, id))

	require.Len(t, gw.nested, 2)
	for _, err := range gw.nested {
		assert.ErrorIs(t, err, domain.ErrReentrant)
	}
	assert.Equal(t, uint64(1000), h.balance(t, alice))
	assert.False(t, h.ledger.guard.InProgress())
}

// reenteringHook calls back into the ledger from the settlement hook.
type reenteringHook struct {
	ledger *LoanLedger
	nested error
}

func (h *reenteringHook) LoanSettled(ctx context.Context, notice SettlementNotice) error {
	h.nested = h.ledger.ClaimLoan(ctx, domain.Caller{Address: notice.Payer}, notice.LoanID)
	return nil
}

func TestLoanLedger_RejectsReentryFromSettlementHook(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)
	hook := &reenteringHook{ledger: h.ledger}
	h.ledger.hook = hook

	borrower := domain.Caller{Address: alice}
	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))
	h.mint(t, alice, 10)

	result, err := h.ledger.RepayLoan(ctx, borrower, id, u(1010))
	require.NoError(t, err)
	assert.True(t, result.Settled)
	assert.ErrorIs(t, hook.nested, domain.ErrReentrant)
	assert.False(t, h.ledger.guard.InProgress())
}

func TestLoanLedger_ChangeManagerOnlyEmits(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	require.NoError(t, h.ledger.ChangeManager(ctx, asManager1, []common.Address{alice, bob}, manager2))

	events, total, err := h.ledger.Events(ctx, "ManagerChanged", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, events, 2)

	meta, err := h.ledger.WalletMetadata(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, meta.UserID)
}

func TestLoanLedger_SweepExpired(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 100, 100))
	require.NoError(t, err)

	swept, err := h.ledger.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, swept)

	h.advance(1001 * time.Second)
	swept, err = h.ledger.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	swept, err = h.ledger.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, swept)

	events, _, err := h.ledger.Events(ctx, "LoanExpired", 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t,
		`{"user":"`+hexKey(alice)+`","userId":1,"loanId":0,"claimDeadline":`+
			jsonInt(h.now.Unix()-1)+`}`,
		string(events[0].Payload))

	// Expiry is reported, never stored: the manager limit stays reserved until canceled.
	assert.Equal(t, uint64(100), h.utilization(t, manager1))
	require.NoError(t, h.ledger.CancelLoans(ctx, asManager1, []common.Address{alice}, []uint64{id}))
	assert.Equal(t, uint64(0), h.utilization(t, manager1))
}

func TestLoanLedger_RepayAfterFullDayLeavesOneDayOfInterest(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	borrower := domain.Caller{Address: alice}
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))

	// 1010 compounds once more at 1% once a whole day has passed.
	h.advance(time.Duration(day) * time.Second)
	view, err := h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1020), view.CurrentDebt.Uint64())

	h.mint(t, alice, 10)
	result, err := h.ledger.RepayLoan(ctx, borrower, id, u(1010))
	require.NoError(t, err)
	assert.False(t, result.Settled)
	assert.Equal(t, uint64(10), result.RemainingDebt.Uint64())
	assert.Equal(t, uint64(1000), result.Allocation.ToCustody.Uint64())
	assert.Equal(t, uint64(10), result.Allocation.ToRevenue.Uint64())

	view, err = h.ledger.UserLoan(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClaimed, view.Status)
	assert.Equal(t, uint64(10), view.CurrentDebt.Uint64())
	assert.Equal(t, uint64(0), h.utilization(t, manager1))
}

func TestLoanLedger_CorruptDebtColumnFailsLoudly(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	id, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	borrower := domain.Caller{Address: alice}
	require.NoError(t, h.ledger.ClaimLoan(ctx, borrower, id))

	require.NoError(t, h.db.Model(&models.Loan{}).
		Where("loan_index = ?", id).
		Update("last_computed_debt", "0x3f2").Error)

	_, err = h.ledger.UserLoan(ctx, alice, id)
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)

	_, err = h.ledger.RepayLoan(ctx, borrower, id, u(1010))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLoanSettled)

	_, err = h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 500, 100))
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)
	assert.Equal(t, uint64(1000), h.utilization(t, manager1))
}

func hexKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
