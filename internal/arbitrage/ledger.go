package arbitrage

import (
	"sync"

	"github.com/shopspring/decimal"
)

// LedgerSnapshot is a consistent view of the running totals.
type LedgerSnapshot struct {
	TotalProfit decimal.Decimal
	TotalDeals  int64
}

// Ledger accumulates realized profit and deal count. It only grows.
type Ledger struct {
	mu          sync.RWMutex
	totalProfit decimal.Decimal
	totalDeals  int64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{totalProfit: decimal.Zero}
}

// Record adds profit and counts one deal, returning the new totals.
func (l *Ledger) Record(profit decimal.Decimal) LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalProfit = l.totalProfit.Add(profit.Round(moneyPlaces))
	l.totalDeals++
	return LedgerSnapshot{TotalProfit: l.totalProfit, TotalDeals: l.totalDeals}
}

// Snapshot returns the current totals.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LedgerSnapshot{TotalProfit: l.totalProfit, TotalDeals: l.totalDeals}
}
