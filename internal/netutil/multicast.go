// Package netutil builds the UDP multicast sockets the market-data side
// of the engine sends and listens on, layering a couple of socket-option
// tweaks (address reuse, multicast TTL) over the stdlib net package.
package netutil

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// DialMulticastSender opens a UDP socket suitable for publishing
// datagrams to a multicast group at ip:port, optionally bound to a
// specific outbound interface (iface may be empty for the default
// route). Outbound multicast traffic does not require joining the
// group.
func DialMulticastSender(ip string, port int, iface string) (*net.UDPConn, error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}

	var laddr *net.UDPAddr
	if iface != "" {
		ifi, err := net.InterfaceByName(iface)
		if err != nil {
			return nil, fmt.Errorf("netutil: lookup iface %s: %w", iface, err)
		}
		addrs, err := ifi.Addrs()
		if err != nil || len(addrs) == 0 {
			return nil, fmt.Errorf("netutil: no address on iface %s", iface)
		}
		if ipNet, ok := addrs[0].(*net.IPNet); ok {
			laddr = &net.UDPAddr{IP: ipNet.IP}
		}
	}

	conn, err := net.DialUDP("udp4", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("netutil: dial multicast %s:%d: %w", ip, port, err)
	}
	if err := setMulticastTTL(conn, 32); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// ListenMulticast joins the multicast group ip:port on iface (empty
// means all interfaces) and returns a socket ready to read datagrams
// from it.
func ListenMulticast(ip string, port int, iface string) (*net.UDPConn, error) {
	var ifi *net.Interface
	if iface != "" {
		var err error
		ifi, err = net.InterfaceByName(iface)
		if err != nil {
			return nil, fmt.Errorf("netutil: lookup iface %s: %w", iface, err)
		}
	}

	conn, err := net.ListenMulticastUDP("udp4", ifi, &net.UDPAddr{IP: net.ParseIP(ip), Port: port})
	if err != nil {
		return nil, fmt.Errorf("netutil: join multicast %s:%d: %w", ip, port, err)
	}
	if err := setReuseAddr(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// setMulticastTTL bounds the reach of outbound multicast datagrams.
func setMulticastTTL(conn *net.UDPConn, ttl int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, ttl)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// setReuseAddr allows multiple listeners on the same multicast group
// and port on the same host (several consumer processes, test runs).
func setReuseAddr(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// AddrString is a convenience for log lines.
func AddrString(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}
