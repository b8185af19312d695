// Package magic provides a TCP listener whose connections expose the
// kernel state of their socket: TCP_INFO, BBR state, congestion control
// and a globally unique identifier.
package magic

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"

	guuid "github.com/google/uuid"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/tcp-info/inetdiag"
	"github.com/m-lab/tcp-info/tcp"
	"github.com/m-lab/tocket/logging"
	"github.com/m-lab/tocket/magic/iface"
	"github.com/m-lab/tocket/tcpinfox"
)

// ErrConnectionClosed is returned by ReadInfo once the kernel reports that
// the connection has been torn down.
var ErrConnectionClosed = errors.New("connection closed")

// Listener is a TCPListener whose Accept returns Conns that mediate access
// to the underlying file descriptor, allowing callers to perform meta
// operations on the connection, e.g. GetUUID, SetCC, ReadInfo.
type Listener struct {
	*net.TCPListener
	connfile iface.ConnFile
}

// NewListener creates a new Listener using the given net.TCPListener.
func NewListener(l *net.TCPListener) *Listener {
	return &Listener{
		TCPListener: l,
		connfile:    &iface.RealConnInfo{},
	}
}

// Conn is returned by Listener.Accept and provides mediated access to
// additional operations on the Conn file descriptor. The file descriptor
// is a dup of the socket, so reading metrics never races with writes on
// the net.Conn.
type Conn struct {
	net.Conn
	fp      *os.File
	netinfo iface.NetInfo

	closeOnce sync.Once
	closeErr  error
}

// ConnInfo provides operations on a Conn's underlying file descriptor.
type ConnInfo interface {
	GetUUID() (string, error)
	GetCC() (string, error)
	SetCC(name string) error
	ReadInfo() (inetdiag.BBRInfo, tcp.LinuxTCPInfo, error)
}

// Accept a connection, set 3min keepalive, and return a Conn that enables
// ConnInfo operations on the underlying net.Conn file descriptor.
func (ln *Listener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	fp, err := ln.connfile.TCPConnToFile(tc)
	if err != nil {
		tc.Close()
		return nil, err
	}
	mc := &Conn{
		Conn:    tc,
		fp:      fp,
		netinfo: &iface.RealConnInfo{},
	}
	return mc, nil
}

// Close the underlying net.Conn and dup'd file descriptor. Close may be
// called more than once and from more than one goroutine; only the first
// call has any effect.
func (mc *Conn) Close() error {
	mc.closeOnce.Do(func() {
		mc.fp.Close()
		mc.closeErr = mc.Conn.Close()
	})
	return mc.closeErr
}

// CloseWrite shuts down the sending side of the connection, so the peer
// reads a clean end of stream.
func (mc *Conn) CloseWrite() error {
	if tc, ok := mc.Conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return nil
}

// SetCC selects the congestion control algorithm for this connection.
func (mc *Conn) SetCC(name string) error {
	return mc.netinfo.SetCC(mc.fp, name)
}

// GetCC returns the congestion control algorithm in use on this connection.
func (mc *Conn) GetCC() (string, error) {
	return mc.netinfo.GetCC(mc.fp)
}

// ReadInfo reads metadata about the TCP connections. If the connection is
// not using BBR, then ReadInfo will return an empty BBRInfo struct. If TCP
// info metrics cannot be read, an error is returned.
func (mc *Conn) ReadInfo() (inetdiag.BBRInfo, tcp.LinuxTCPInfo, error) {
	bbrinfo, err := mc.netinfo.GetBBRInfo(mc.fp)
	if err != nil {
		bbrinfo = inetdiag.BBRInfo{}
	}
	tcpInfo, err := mc.netinfo.GetTCPInfo(mc.fp)
	if err != nil {
		return inetdiag.BBRInfo{}, tcp.LinuxTCPInfo{}, err
	}
	if tcpInfo.State == tcpinfox.StateClose {
		return inetdiag.BBRInfo{}, tcp.LinuxTCPInfo{}, ErrConnectionClosed
	}
	return bbrinfo, *tcpInfo, nil
}

// GetUUID returns the connection's UUID.
func (mc *Conn) GetUUID() (string, error) {
	id, err := mc.netinfo.GetUUID(mc.fp)
	if err != nil {
		// Use UUID v1 as fallback when SO_COOKIE isn't supported by kernel
		fallbackUUID, err := guuid.NewUUID()
		// NOTE: this could only fail when `GetTime` fails from guuid package.
		rtx.Must(err, "unable to fallback to uuid")
		id = fallbackUUID.String()
	}
	return id, nil
}

// ToTCPAddr is a helper function for extracting the net.TCPAddr type from a
// net.Addr. ToTCPAddr returns nil if addr is not a *net.TCPAddr.
func ToTCPAddr(addr net.Addr) *net.TCPAddr {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a
	default:
		logging.Logger.Warnf("unsupported addr type: %T", a)
		return nil
	}
}

// ToConnInfo is a helper function for extracting the ConnInfo interface from
// a net.Conn. ToConnInfo returns nil if conn does not support ConnInfo.
func ToConnInfo(conn net.Conn) ConnInfo {
	switch c := conn.(type) {
	case ConnInfo:
		return c
	default:
		logging.Logger.Warnf("unsupported conn type: %T", c)
		return nil
	}
}
