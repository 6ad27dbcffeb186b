// Package metrics registers the engine's best-effort operational
// gauges (§6 "Metrics: best-effort operational counters... exposed by
// cmd/engine, read only by an external scraper") with the default
// Prometheus registry. Every value here is read lazily at scrape time
// via GaugeFunc: nothing on the matching fast path ever touches a
// metrics call.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

// EngineStats is the subset of matching.Engine metrics depends on,
// satisfied by *matching.Engine.
type EngineStats interface {
	Tickers() int
	RestingOrders(ticker types.TickerId) int
}

// SynthesiserStats is the subset of marketdata.Synthesiser metrics
// depends on, satisfied by *marketdata.Synthesiser.
type SynthesiserStats interface {
	Cycles() uint64
}

// Register wires ring depths, per-ticker resting-order counts, and the
// snapshot-cycle count into the default registry. Call once at startup,
// after every ring/engine/synthesiser is constructed.
func Register(
	reqRing *ring.Ring[wire.ClientRequest],
	rspRing *ring.Ring[wire.ClientResponse],
	mdRing *ring.Ring[wire.MarketUpdate],
	snapRing *ring.Ring[wire.PublicMessage],
	engine EngineStats,
	synthesiser SynthesiserStats,
) {
	registerRingDepth("req", reqRing)
	registerRingDepth("rsp", rspRing)
	registerRingDepth("md", mdRing)
	registerRingDepth("snap", snapRing)

	for t := 0; t < engine.Tickers(); t++ {
		ticker := types.TickerId(t)
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "matchcore_resting_orders",
				Help:        "Resting orders currently in one ticker's book.",
				ConstLabels: prometheus.Labels{"ticker": strconv.Itoa(t)},
			},
			func() float64 { return float64(engine.RestingOrders(ticker)) },
		))
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "matchcore_snapshot_cycles_total",
			Help: "Snapshot cycles published by the Snapshot Synthesiser so far.",
		},
		func() float64 { return float64(synthesiser.Cycles()) },
	))
}

func registerRingDepth[T any](name string, r *ring.Ring[T]) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "matchcore_ring_depth",
			Help:        "Entries currently buffered in one SPSC ring.",
			ConstLabels: prometheus.Labels{"ring": name},
		},
		func() float64 { return float64(r.Len()) },
	))
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "matchcore_ring_capacity",
			Help:        "Fixed capacity of one SPSC ring.",
			ConstLabels: prometheus.Labels{"ring": name},
		},
		func() float64 { return float64(r.Cap()) },
	))
}
