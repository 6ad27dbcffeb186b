// Command mdconsumer is a reference client for the market-data recovery
// protocol (§4.9): it joins the incremental multicast group, applies
// the §4.9 gap-detection/snapshot-splicing state machine, and prints
// every update it ends up delivering to its (trivial, stdout-only)
// downstream book.
package main

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/rishavpaul/matchcore/internal/logging"
	"github.com/rishavpaul/matchcore/internal/mdconsumer"
	"github.com/rishavpaul/matchcore/internal/netutil"
	"github.com/rishavpaul/matchcore/internal/wire"
)

// printingBook satisfies mdconsumer.BookApplier by printing every
// delivered update; a real client would maintain its own order book.
type printingBook struct{}

func (printingBook) Apply(u wire.MarketUpdate) {
	fmt.Printf("%s\n", u)
}

// multicastRejoiner joins/leaves the snapshot group on demand, per
// §4.9 ("joins snapshot only during recovery").
type multicastRejoiner struct {
	mu       sync.Mutex
	ip       string
	port     int
	iface    string
	conn     *net.UDPConn
	onJoined func(*net.UDPConn)
}

func (m *multicastRejoiner) JoinSnapshot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return
	}
	conn, err := netutil.ListenMulticast(m.ip, m.port, m.iface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "join snapshot group: %v\n", err)
		return
	}
	m.conn = conn
	m.onJoined(conn)
}

func (m *multicastRejoiner) LeaveSnapshot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return
	}
	m.conn.Close()
	m.conn = nil
}

func main() {
	incIP := pflag.String("incremental-ip", "239.0.0.1", "incremental multicast group")
	incPort := pflag.Int("incremental-port", 20000, "incremental multicast port")
	snapIP := pflag.String("snapshot-ip", "239.0.0.2", "snapshot multicast group")
	snapPort := pflag.Int("snapshot-port", 20001, "snapshot multicast port")
	iface := pflag.String("iface", "", "multicast interface (empty = default)")
	logLevel := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	logger := logging.New(*logLevel, true)

	incConn, err := netutil.ListenMulticast(*incIP, *incPort, *iface)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to join incremental group")
	}
	defer incConn.Close()

	book := printingBook{}
	rejoiner := &multicastRejoiner{ip: *snapIP, port: *snapPort, iface: *iface}

	consumer := mdconsumer.New(book, rejoiner)

	rejoiner.onJoined = func(c *net.UDPConn) {
		go readSnapshotLoop(c, consumer, logger)
	}

	logger.Info().
		Str("incremental", netutil.AddrString(*incIP, *incPort)).
		Str("snapshot", netutil.AddrString(*snapIP, *snapPort)).
		Msg("mdconsumer listening")

	readIncrementalLoop(incConn, consumer, logger)
}

// consumerMu serializes the two read loops' calls into the single-threaded
// mdconsumer.Consumer.
var consumerMu sync.Mutex

func readIncrementalLoop(conn *net.UDPConn, consumer *mdconsumer.Consumer, logger zerolog.Logger) {
	buf := make([]byte, wire.PublicMessageSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			logger.Error().Err(err).Msg("incremental read failed")
			return
		}
		if n != wire.PublicMessageSize {
			continue
		}
		var msg wire.PublicMessage
		msg.Decode(buf)
		consumerMu.Lock()
		consumer.OnIncremental(msg)
		consumerMu.Unlock()
	}
}

func readSnapshotLoop(conn *net.UDPConn, consumer *mdconsumer.Consumer, logger zerolog.Logger) {
	buf := make([]byte, wire.PublicMessageSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return // closed by LeaveSnapshot
		}
		if n != wire.PublicMessageSize {
			continue
		}
		var msg wire.PublicMessage
		msg.Decode(buf)
		consumerMu.Lock()
		consumer.OnSnapshot(msg)
		consumerMu.Unlock()
	}
}
