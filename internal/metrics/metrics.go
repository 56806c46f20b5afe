package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quotes_total", Help: "Count of market quotes ingested"},
		[]string{"ticker"},
	)
	SpotPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "spot_price", Help: "Last observed spot price of the underlying"},
		[]string{"symbol"},
	)
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outcomes_total", Help: "Execution pipeline outcomes"},
		[]string{"result"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejections_total", Help: "Orders rejected by the guardrail policy"},
		[]string{"reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted to the venue"},
		[]string{"ticker", "side"},
	)
	TransportAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "transport_attempts_total", Help: "HTTP attempts by response class"},
		[]string{"class"},
	)
	SessionRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "session_refreshes_total", Help: "Session token refreshes by trigger"},
		[]string{"kind"},
	)
	FeedReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_reconnects_total", Help: "Websocket feed reconnect attempts"},
		[]string{"feed"},
	)
	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "breaker_state", Help: "Circuit breaker state (0 closed, 1 open)"},
	)
	BreakerLossUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "breaker_loss_usd", Help: "Accumulated realized loss in the current window"},
	)
)

func init() {
	prometheus.MustRegister(
		QuotesTotal, SpotPrice, OutcomesTotal, RejectionsTotal, OrdersTotal,
		TransportAttemptsTotal, SessionRefreshesTotal, FeedReconnectsTotal,
		BreakerState, BreakerLossUSD,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
