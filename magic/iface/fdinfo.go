// Package iface provides access to network connection operations via file
// descriptor. The implementation MUST be correct by inspection.
package iface

import (
	"net"
	"os"

	"github.com/m-lab/tcp-info/inetdiag"
	"github.com/m-lab/tcp-info/tcp"
	"github.com/m-lab/tocket/bbr"
	"github.com/m-lab/tocket/netx"
	"github.com/m-lab/tocket/tcpinfox"
	"github.com/m-lab/tocket/uuidx"
)

// ConnFile provides access to underlying network file.
type ConnFile interface {
	TCPConnToFile(tc *net.TCPConn) (*os.File, error)
}

// NetInfo provides access to network connection metadata.
type NetInfo interface {
	GetUUID(fp *os.File) (string, error)
	GetBBRInfo(fp *os.File) (inetdiag.BBRInfo, error)
	GetTCPInfo(fp *os.File) (*tcp.LinuxTCPInfo, error)
	GetCC(fp *os.File) (string, error)
	SetCC(fp *os.File, name string) error
}

// RealConnInfo implements both the ConnFile and NetInfo interfaces.
type RealConnInfo struct{}

// TCPConnToFile returns the corresponding *os.File. Note that the
// returned *os.File is a dup() of the original, hence you now have ownership
// of two objects that you need to remember to defer Close() of.
func (f *RealConnInfo) TCPConnToFile(tc *net.TCPConn) (*os.File, error) {
	// The dup shares the open file description, and so O_NONBLOCK, with tc.
	// Calling Fd() on it would switch tc to blocking mode and defeat its
	// deadlines, so every socket option is accessed through SyscallConn.
	// See https://github.com/golang/go/issues/24942.
	return tc.File()
}

// GetUUID returns a UUID for the given file pointer.
func (f *RealConnInfo) GetUUID(fp *os.File) (string, error) {
	return uuidx.FromFile(fp)
}

// GetBBRInfo returns BBRInfo for the given file pointer.
func (f *RealConnInfo) GetBBRInfo(fp *os.File) (inetdiag.BBRInfo, error) {
	return bbr.GetBBRInfo(fp)
}

// GetTCPInfo returns TCPInfo for the given file pointer.
func (f *RealConnInfo) GetTCPInfo(fp *os.File) (*tcp.LinuxTCPInfo, error) {
	return tcpinfox.GetTCPInfo(fp)
}

// GetCC returns the congestion control algorithm of the given file pointer.
func (f *RealConnInfo) GetCC(fp *os.File) (string, error) {
	return netx.GetCongestionControl(fp)
}

// SetCC selects the congestion control algorithm of the given file pointer.
func (f *RealConnInfo) SetCC(fp *os.File, name string) error {
	return netx.SetCongestionControl(fp, name)
}
