// Command engine is the matching core's process entry point: it loads
// configuration, builds every ring/pool/book, and starts the pipeline —
// Order Server (which runs the Sequencer internally), Matching Engine,
// MD Publisher, Snapshot Synthesiser — as four goroutines, each pinned
// to its configured core when one is set (§5), communicating only
// through the SPSC rings.
//
// Grounded on the teacher's cmd/server/main.go wiring shape and
// _examples/original_source/exchange/exchange_main.cpp's
// construct-then-run-then-signal-shutdown structure.
package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/rishavpaul/matchcore/internal/affinity"
	"github.com/rishavpaul/matchcore/internal/config"
	"github.com/rishavpaul/matchcore/internal/gateway"
	"github.com/rishavpaul/matchcore/internal/logging"
	"github.com/rishavpaul/matchcore/internal/marketdata"
	"github.com/rishavpaul/matchcore/internal/matching"
	"github.com/rishavpaul/matchcore/internal/metrics"
	"github.com/rishavpaul/matchcore/internal/netutil"
	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/sequencer"
	"github.com/rishavpaul/matchcore/internal/wire"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath, pflag.CommandLine)
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, true)
	events := logging.NewEventBatcher(logger, 4096)
	defer events.Close()

	reqRing := ring.New[wire.ClientRequest](cfg.ReqRingCap)
	rspRing := ring.New[wire.ClientResponse](cfg.RspRingCap)
	mdRing := ring.New[wire.MarketUpdate](cfg.MdRingCap)
	snapRing := ring.New[wire.PublicMessage](cfg.SnapRingCap)

	engine := matching.New(cfg.MaxTickers, cfg.MaxPriceLevels, cfg.MaxOrders, reqRing, rspRing, mdRing)
	engine.SetEvents(events)

	incrementalSender, err := netutil.DialMulticastSender(cfg.IncrementalIP, cfg.IncrementalPort, cfg.IncrementalIface)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open incremental multicast sender")
	}
	defer incrementalSender.Close()

	snapshotSender, err := netutil.DialMulticastSender(cfg.SnapshotIP, cfg.SnapshotPort, cfg.SnapshotIface)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open snapshot multicast sender")
	}
	defer snapshotSender.Close()

	publisher := marketdata.NewPublisher(mdRing, snapRing, incrementalSender)
	synthesiser := marketdata.NewSynthesiser(cfg.MaxTickers, snapRing, snapshotSender, cfg.SnapshotPeriod)

	seq := sequencer.New(cfg.MaxPendingReqs, reqRing)
	// Zero bounds mean unbounded (§6): this deployment enforces no
	// wire-level qty/price ceiling beyond structural validity.
	bounds := wire.Bounds{}

	listenAddr := net.JoinHostPort(cfg.OrderGatewayIface, strconv.Itoa(cfg.OrderGatewayPort))
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", listenAddr).Msg("failed to start order gateway listener")
	}
	defer ln.Close()

	orderServer := gateway.NewServer(ln, bounds, seq, rspRing, logger)

	if cfg.MetricsAddr != "" {
		metrics.Register(reqRing, rspRing, mdRing, snapRing, engine, synthesiser)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	stopEngine := make(chan struct{})
	stopPublisher := make(chan struct{})
	stopSynthesiser := make(chan struct{})
	stopGateway := make(chan struct{})

	go func() {
		affinity.Pin(logger, cfg.EngineCore)
		engine.Run(stopEngine)
	}()
	go func() {
		affinity.Pin(logger, cfg.PublisherCore)
		publisher.Run(stopPublisher)
	}()
	go func() {
		affinity.Pin(logger, cfg.SynthesiserCore)
		synthesiser.Run(stopSynthesiser)
	}()
	go func() {
		affinity.Pin(logger, cfg.GatewayCore)
		orderServer.Run(stopGateway)
	}()

	logger.Info().Str("addr", listenAddr).Msg("matching core started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	close(stopGateway)
	close(stopEngine)
	close(stopPublisher)
	close(stopSynthesiser)
	time.Sleep(100 * time.Millisecond)
}

