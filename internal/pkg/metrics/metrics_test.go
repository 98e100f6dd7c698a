package metrics

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLedger_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LoanAdded()
	m.LoanAdded()
	m.LoanClaimed()
	m.Repaid(uint256.NewInt(100), uint256.NewInt(7))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loansAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loansClaimed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repayments))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.repaidAmount.WithLabelValues(DestinationCustody)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.repaidAmount.WithLabelValues(DestinationRevenue)))
}

func TestLedger_Gauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetUtilization("0xm", "0xt", uint256.NewInt(500))
	m.SetOutstanding("0xt", uint256.NewInt(1010))

	assert.Equal(t, 500.0, testutil.ToFloat64(m.managerUtilization.WithLabelValues("0xm", "0xt")))
	assert.Equal(t, 1010.0, testutil.ToFloat64(m.outstandingDebt.WithLabelValues("0xt")))
}

func TestLedger_NilIsNoop(t *testing.T) {
	var m *Ledger
	assert.NotPanics(t, func() {
		m.LoanAdded()
		m.LoanClaimed()
		m.LoanCanceled()
		m.Repaid(uint256.NewInt(1), uint256.NewInt(1))
		m.SetUtilization("a", "b", uint256.NewInt(1))
		m.SetOutstanding("b", nil)
	})
}
