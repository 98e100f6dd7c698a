package services

import (
	"context"
	"testing"
	"time"

	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsService_Overview(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	// alice: claimed, bob: proposed then canceled, carol: proposed and left to expire
	_, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, 0))
	_, err = h.ledger.AddLoan(ctx, asManager1, h.proposal(bob, 200, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.CancelLoans(ctx, asManager1, []common.Address{bob}, []uint64{0}))
	_, err = h.ledger.AddLoan(ctx, asManager1, h.proposal(carol, 300, 100))
	require.NoError(t, err)

	h.advance(time.Duration(day) * time.Second)
	stats := NewStatsService(h.db, repositories.NewLoanRepository(h.db), repositories.NewManagerRepository(h.db), nil,
		func() time.Time { return h.now })

	overview, err := stats.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), overview.TotalUsers)
	assert.Equal(t, int64(3), overview.TotalWallets)
	assert.Equal(t, int64(1), overview.ActiveManagers)
	assert.Equal(t, int64(1), overview.ActiveTokens)

	require.Len(t, overview.Tokens, 1)
	token := overview.Tokens[0]
	assert.Equal(t, tokenA, token.Token)
	assert.Equal(t, int64(1), token.Claimed)
	assert.Equal(t, int64(1), token.Canceled)
	assert.Equal(t, int64(1), token.Expired)
	assert.Equal(t, uint64(1000), token.TotalBorrowed.Uint64())
	assert.Equal(t, uint64(1020), token.OutstandingDebt.Uint64())
}

func TestStatsService_SnapshotExposure(t *testing.T) {
	ctx := context.Background()
	h := newLedger(t, 10_000, nil)

	_, err := h.ledger.AddLoan(ctx, asManager1, h.proposal(alice, 1000, 100))
	require.NoError(t, err)
	require.NoError(t, h.ledger.ClaimLoan(ctx, domain.Caller{Address: alice}, 0))

	registry := prometheus.NewRegistry()
	stats := NewStatsService(h.db, repositories.NewLoanRepository(h.db), repositories.NewManagerRepository(h.db),
		metrics.New(registry), func() time.Time { return h.now })
	require.NoError(t, stats.SnapshotExposure(ctx))

	families, err := registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetGauge() != nil {
				values[family.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1000.0, values["microcredit_manager_utilization"])
	assert.Equal(t, 1010.0, values["microcredit_outstanding_debt"])
}
