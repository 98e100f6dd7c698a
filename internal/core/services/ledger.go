package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerDeps wires a LoanLedger. Hook, Publisher, Metrics and Clock are optional.
type LedgerDeps struct {
	Tx          TxRunner
	Tokens      *TokenRegistry
	Wallets     *WalletRegistry
	Limits      *ManagerLimitTracker
	ManagerRepo *repositories.ManagerRepository
	LoanRepo    *repositories.LoanRepository
	EventRepo   *repositories.EventRepository
	SettingRepo *repositories.SettingRepository
	Gateway     TransferGateway
	Hook        SettlementHook
	Publisher   EventPublisher
	Metrics     *metrics.Ledger
	Clock       Clock
	Custody     common.Address
}

// LoanLedger owns the loan book and is the only writer of loan state.
//
// Every entry point runs as one database transaction under the entry lock and
// the reentrancy guard: it either commits all of its effects and events or
// none of them. Events are published after commit.
type LoanLedger struct {
	tx          TxRunner
	tokens      *TokenRegistry
	wallets     *WalletRegistry
	limits      *ManagerLimitTracker
	allocator   *RepaymentAllocator
	managerRepo *repositories.ManagerRepository
	loanRepo    *repositories.LoanRepository
	eventRepo   *repositories.EventRepository
	settingRepo *repositories.SettingRepository
	gateway     TransferGateway
	hook        SettlementHook
	publisher   EventPublisher
	metrics     *metrics.Ledger
	clock       Clock
	custody     common.Address

	mu    sync.Mutex
	guard ReentrancyGuard
}

// NewLoanLedger creates a new loan ledger
func NewLoanLedger(deps LedgerDeps) *LoanLedger {
	l := &LoanLedger{
		tx:          deps.Tx,
		tokens:      deps.Tokens,
		wallets:     deps.Wallets,
		limits:      deps.Limits,
		allocator:   NewRepaymentAllocator(deps.Limits),
		managerRepo: deps.ManagerRepo,
		loanRepo:    deps.LoanRepo,
		eventRepo:   deps.EventRepo,
		settingRepo: deps.SettingRepo,
		gateway:     deps.Gateway,
		hook:        deps.Hook,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		custody:     deps.Custody,
	}
	if l.hook == nil {
		l.hook = noopHook{}
	}
	if l.publisher == nil {
		l.publisher = noopPublisher{}
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	return l
}

// Custody returns the account holding the ledger's lending capital
func (l *LoanLedger) Custody() common.Address {
	return l.custody
}

// Now returns the ledger clock in unix seconds
func (l *LoanLedger) Now() int64 {
	return l.clock().Unix()
}

// op collects what an entry point emits while it runs.
type op struct {
	at       time.Time
	now      int64
	events   []domain.Event
	onCommit []func()
}

func (o *op) emit(events ...domain.Event) {
	o.events = append(o.events, events...)
}

func (o *op) afterCommit(fn func()) {
	o.onCommit = append(o.onCommit, fn)
}

// execute runs fn as one atomic, non-reentrant entry point.
func (l *LoanLedger) execute(ctx context.Context, fn func(ctx context.Context, o *op) error) error {
	// A nested call carries the guard marker and must fail before it waits on
	// the entry lock held by its own outer call.
	if l.guard.Active(ctx) {
		return domain.ErrReentrant
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, release, err := l.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	at := l.clock()
	o := &op{at: at, now: at.Unix()}
	var envelopes []domain.EventEnvelope

	err = l.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := fn(ctx, o); err != nil {
			return err
		}
		envelopes, err = l.journal(ctx, o)
		return err
	})
	if err != nil {
		return err
	}

	for _, fn := range o.onCommit {
		fn()
	}
	if len(envelopes) > 0 {
		if err := l.publisher.Publish(ctx, envelopes); err != nil {
			log.Printf("⚠️ Failed to publish %d ledger events: %v", len(envelopes), err)
		}
	}
	return nil
}

// journal appends the operation's events to the event log
func (l *LoanLedger) journal(ctx context.Context, o *op) ([]domain.EventEnvelope, error) {
	envelopes := make([]domain.EventEnvelope, 0, len(o.events))
	for _, event := range o.events {
		payload, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("encode %s event: %w", event.EventName(), err)
		}
		env := domain.EventEnvelope{
			ID:        uuid.NewString(),
			Name:      event.EventName(),
			Payload:   payload,
			EmittedAt: o.at,
		}
		err = l.eventRepo.Create(ctx, &models.LedgerEvent{
			EventID:   env.ID,
			Name:      env.Name,
			Payload:   string(payload),
			CreatedAt: o.at,
		})
		if err != nil {
			return nil, fmt.Errorf("journal %s event: %w", env.Name, err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

// transferFailed keeps categorized collaborator errors and files the rest
// under ErrTransferFailed.
func transferFailed(err error) error {
	if errors.Is(err, domain.ErrTransferFailed) || errors.Is(err, domain.ErrReentrant) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
}

// ============================================================
// Lookups shared by entry points and queries
// ============================================================

// userOf resolves a wallet that may operate on loans
func (l *LoanLedger) userOf(ctx context.Context, wallet common.Address) (*domain.WalletMetadata, error) {
	meta, err := l.wallets.Resolve(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if meta.Moved() {
		return nil, domain.ErrWalletMoved
	}
	if meta.UserID == 0 {
		return nil, domain.ErrUserNotFound
	}
	return meta, nil
}

func (l *LoanLedger) loanOf(ctx context.Context, wallet common.Address, loanID uint64) (*domain.Loan, error) {
	meta, err := l.userOf(ctx, wallet)
	if err != nil {
		return nil, err
	}
	loan, err := l.loanRepo.Get(ctx, meta.UserID, loanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLoanNotFound
	}
	return loan, err
}

// activeManager fails unless addr is a manager that may originate loans
func (l *LoanLedger) activeManager(ctx context.Context, addr common.Address) error {
	manager, err := l.managerRepo.Get(ctx, addr)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotManager
	}
	if err != nil {
		return err
	}
	if !manager.Active {
		return domain.ErrNotManager
	}
	return nil
}

func requireOwner(caller domain.Caller) error {
	if !caller.Owner {
		return fmt.Errorf("%w: owner capability required", domain.ErrAuthorization)
	}
	return nil
}

// requireOperator admits the owner and active managers
func (l *LoanLedger) requireOperator(ctx context.Context, caller domain.Caller) error {
	if caller.Owner {
		return nil
	}
	return l.activeManager(ctx, caller.Address)
}

// RevenueAddress returns the configured revenue destination, zero if unset
func (l *LoanLedger) RevenueAddress(ctx context.Context) (common.Address, error) {
	value, err := l.settingRepo.Get(ctx, models.SettingRevenueAddress)
	if err != nil {
		return common.Address{}, err
	}
	if value == "" {
		return common.Address{}, nil
	}
	return common.HexToAddress(value), nil
}

func (l *LoanLedger) setRevenueAddress(ctx context.Context, addr common.Address) error {
	value := ""
	if addr != (common.Address{}) {
		value = strings.ToLower(addr.Hex())
	}
	return l.settingRepo.Set(ctx, models.SettingRevenueAddress, value)
}

// InitRevenueAddress sets the revenue destination once, when none was ever stored
func (l *LoanLedger) InitRevenueAddress(ctx context.Context, addr common.Address) error {
	if addr == (common.Address{}) {
		return nil
	}
	current, err := l.RevenueAddress(ctx)
	if err != nil {
		return err
	}
	if current != (common.Address{}) {
		return nil
	}
	return l.setRevenueAddress(ctx, addr)
}
