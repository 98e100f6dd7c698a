// Package metrics holds the Prometheus instruments of the ledger.
package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Destinations of repaid funds
const (
	DestinationCustody = "custody"
	DestinationRevenue = "revenue"
)

// Ledger groups the ledger instruments. A nil *Ledger records nothing.
type Ledger struct {
	loansAdded         prometheus.Counter
	loansClaimed       prometheus.Counter
	loansCanceled      prometheus.Counter
	repayments         prometheus.Counter
	repaidAmount       *prometheus.CounterVec
	managerUtilization *prometheus.GaugeVec
	outstandingDebt    *prometheus.GaugeVec
}

// New creates the instruments and registers them with reg
func New(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		loansAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microcredit",
			Name:      "loans_added_total",
			Help:      "Loans proposed by managers.",
		}),
		loansClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microcredit",
			Name:      "loans_claimed_total",
			Help:      "Loans claimed by borrowers.",
		}),
		loansCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microcredit",
			Name:      "loans_canceled_total",
			Help:      "Proposed loans canceled.",
		}),
		repayments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microcredit",
			Name:      "repayments_total",
			Help:      "Repayments recorded.",
		}),
		repaidAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microcredit",
			Name:      "repaid_amount",
			Help:      "Repaid token units by destination.",
		}, []string{"destination"}),
		managerUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "microcredit",
			Name:      "manager_utilization",
			Help:      "Current lent amount of a manager in a token.",
		}, []string{"manager", "token"}),
		outstandingDebt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "microcredit",
			Name:      "outstanding_debt",
			Help:      "Live debt of claimed loans per token.",
		}, []string{"token"}),
	}
	reg.MustRegister(
		m.loansAdded,
		m.loansClaimed,
		m.loansCanceled,
		m.repayments,
		m.repaidAmount,
		m.managerUtilization,
		m.outstandingDebt,
	)
	return m
}

func (m *Ledger) LoanAdded() {
	if m != nil {
		m.loansAdded.Inc()
	}
}

func (m *Ledger) LoanClaimed() {
	if m != nil {
		m.loansClaimed.Inc()
	}
}

func (m *Ledger) LoanCanceled() {
	if m != nil {
		m.loansCanceled.Inc()
	}
}

// Repaid counts one repayment and its split
func (m *Ledger) Repaid(toCustody, toRevenue *uint256.Int) {
	if m == nil {
		return
	}
	m.repayments.Inc()
	m.repaidAmount.WithLabelValues(DestinationCustody).Add(Float(toCustody))
	m.repaidAmount.WithLabelValues(DestinationRevenue).Add(Float(toRevenue))
}

func (m *Ledger) SetUtilization(manager, token string, lent *uint256.Int) {
	if m != nil {
		m.managerUtilization.WithLabelValues(manager, token).Set(Float(lent))
	}
}

func (m *Ledger) SetOutstanding(token string, debt *uint256.Int) {
	if m != nil {
		m.outstandingDebt.WithLabelValues(token).Set(Float(debt))
	}
}

// Float converts an amount for export; precision loss is accepted.
func Float(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
