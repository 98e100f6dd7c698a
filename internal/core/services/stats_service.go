package services

import (
	"context"
	"time"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"
	"microcredit/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

const statsBatchSize = 500

// StatsService aggregates the loan book
type StatsService struct {
	db          *gorm.DB
	loanRepo    *repositories.LoanRepository
	managerRepo *repositories.ManagerRepository
	metrics     *metrics.Ledger
	clock       Clock
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB, loanRepo *repositories.LoanRepository, managerRepo *repositories.ManagerRepository, m *metrics.Ledger, clock Clock) *StatsService {
	if clock == nil {
		clock = time.Now
	}
	return &StatsService{
		db:          db,
		loanRepo:    loanRepo,
		managerRepo: managerRepo,
		metrics:     m,
		clock:       clock,
	}
}

// Overview is the ledger-wide summary
type Overview struct {
	GeneratedAt    time.Time
	TotalUsers     int64
	TotalWallets   int64
	ActiveManagers int64
	ActiveTokens   int64
	Tokens         []*domain.TokenStats
}

// Overview counts loans by status and sums amounts per token, with debt
// computed at the current time
func (s *StatsService) Overview(ctx context.Context) (*Overview, error) {
	data := &Overview{GeneratedAt: s.clock()}

	// Registry counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&data.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Wallet{}).Count(&data.TotalWallets).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Manager{}).Where("active = ?", true).Count(&data.ActiveManagers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Token{}).Where("active = ?", true).Count(&data.ActiveTokens).Error; err != nil {
		return nil, err
	}

	// Loan book, in token insertion order
	now := data.GeneratedAt.Unix()
	byToken := make(map[common.Address]*domain.TokenStats)
	err := s.loanRepo.Each(ctx, statsBatchSize, func(loan *domain.Loan) error {
		stats, ok := byToken[loan.TokenAddress]
		if !ok {
			stats = &domain.TokenStats{
				Token:           loan.TokenAddress,
				TotalBorrowed:   amount.Zero(),
				TotalRepaid:     amount.Zero(),
				OutstandingDebt: amount.Zero(),
			}
			byToken[loan.TokenAddress] = stats
			data.Tokens = append(data.Tokens, stats)
		}

		switch loan.Status(now) {
		case domain.LoanStatusProposed:
			stats.Proposed++
		case domain.LoanStatusCanceled:
			stats.Canceled++
		case domain.LoanStatusExpired:
			stats.Expired++
		case domain.LoanStatusSettled:
			stats.Settled++
		case domain.LoanStatusClaimed:
			stats.Claimed++
			stats.OutstandingDebt, _ = amount.Add(stats.OutstandingDebt, CurrentDebt(loan, now).Debt)
		}
		if loan.StartDate != 0 {
			stats.TotalBorrowed, _ = amount.Add(stats.TotalBorrowed, loan.AmountBorrowed)
			stats.TotalRepaid, _ = amount.Add(stats.TotalRepaid, loan.AmountRepaid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SnapshotExposure refreshes the utilization and outstanding debt gauges
func (s *StatsService) SnapshotExposure(ctx context.Context) error {
	limits, err := s.managerRepo.ListAllLimits(ctx)
	if err != nil {
		return err
	}
	for _, limit := range limits {
		s.metrics.SetUtilization(addressString(limit.Manager), addressString(limit.Token), limit.CurrentLentAmount)
	}

	overview, err := s.Overview(ctx)
	if err != nil {
		return err
	}
	for _, stats := range overview.Tokens {
		s.metrics.SetOutstanding(addressString(stats.Token), stats.OutstandingDebt)
	}
	return nil
}
