package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink exports event counts and the running ledger to Prometheus.
type MetricsSink struct {
	Opportunities *prometheus.CounterVec
	Deals         prometheus.Counter
	DealFailures  prometheus.Counter
	DealProfit    prometheus.Histogram
	TotalProfit   prometheus.Gauge
}

// NewMetricsSink creates the collectors and registers them with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	m := &MetricsSink{
		Opportunities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_opportunities_total",
				Help: "Actionable cross-exchange opportunities by buy and sell venue",
			},
			[]string{"buy", "sell"},
		),
		Deals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_deals_total",
			Help: "Completed simulated deals",
		}),
		DealFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbiter_deal_failures_total",
			Help: "Simulated deals where a leg failed",
		}),
		DealProfit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbiter_deal_profit",
			Help:    "Profit per completed deal in quote currency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		TotalProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbiter_total_profit",
			Help: "Cumulative profit of completed deals in quote currency",
		}),
	}

	for _, c := range []prometheus.Collector{m.Opportunities, m.Deals, m.DealFailures, m.DealProfit, m.TotalProfit} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Report updates the collectors for ev.
func (m *MetricsSink) Report(_ context.Context, ev Event) {
	switch ev.Kind {
	case KindOpportunity:
		m.Opportunities.WithLabelValues(ev.BuyVenue, ev.SellVenue).Inc()
	case KindDealCompleted:
		m.Deals.Inc()
		m.DealProfit.Observe(ev.Profit.InexactFloat64())
		m.TotalProfit.Set(ev.TotalProfit.InexactFloat64())
	case KindDealFailed:
		m.DealFailures.Inc()
	}
}
