// Package sender streams filler data to a client.
package sender

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/m-lab/tcp-info/inetdiag"
	"github.com/m-lab/tcp-info/tcp"
	"github.com/m-lab/tocket/logging"
	"github.com/m-lab/tocket/metrics"
	"github.com/m-lab/tocket/tocket/spec"
)

// Peer failures, as classified from the write error.
var (
	ErrPeerReset  = errors.New("connection reset by peer")
	ErrBrokenPipe = errors.New("broken pipe")
)

// InfoReader reads the kernel state of the connection being written to.
type InfoReader interface {
	ReadInfo() (inetdiag.BBRInfo, tcp.LinuxTCPInfo, error)
}

// Config configures Run.
type Config struct {
	// BufferSize is the size of each write. Zero means spec.FillerSize.
	BufferSize int

	// EncodeRTT stamps the current RTT into every buffer before writing it.
	EncodeRTT bool
}

// Result is what Run returns.
type Result struct {
	// BytesSent counts the bytes the kernel accepted.
	BytesSent int64

	// Err is nil when Run stopped because of its context, and the
	// classified write error when the peer went away.
	Err error
}

// NewFiller returns a buffer of |size| filler bytes.
func NewFiller(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = spec.FillerByte
	}
	return buf
}

// EncodeRTT overwrites |buf| with copies of the RTT marker carrying |rtt|,
// in microseconds. Bytes after the last whole marker are left untouched.
func EncodeRTT(buf []byte, rtt uint32) {
	var marker [spec.RTTMarkerSize]byte
	copy(marker[0:3], spec.RTTMarkerPrefix)
	binary.BigEndian.PutUint32(marker[3:7], rtt)
	copy(marker[7:10], spec.RTTMarkerSuffix)
	for off := 0; off+len(marker) <= len(buf); off += len(marker) {
		copy(buf[off:], marker[:])
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("%w: %v", ErrPeerReset, err)
	case errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", ErrBrokenPipe, err)
	default:
		return err
	}
}

// Run writes filler data to |conn| until |ctx| is done or a write fails.
// When |info| is non-nil and cfg.EncodeRTT is set, every write carries the
// RTT the kernel reports at that time.
//
// Liveness guarantee: the write deadline is the deadline of |ctx|, and it is
// moved to now when |ctx| is canceled, so Run returns shortly after |ctx| is
// done even if the peer stopped reading.
func Run(ctx context.Context, conn net.Conn, info InfoReader, cfg Config) Result {
	logging.Logger.Debug("sender: start")
	defer logging.Logger.Debug("sender: stop")
	size := cfg.BufferSize
	if size <= 0 {
		size = spec.FillerSize
	}
	buf := NewFiller(size)
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now())
		case <-done:
		}
	}()
	var res Result
	for ctx.Err() == nil {
		if cfg.EncodeRTT && info != nil {
			if _, tcpInfo, err := info.ReadInfo(); err == nil {
				EncodeRTT(buf, tcpInfo.RTT)
			}
		}
		n, err := conn.Write(buf)
		res.BytesSent += int64(n)
		metrics.SentBytes.Add(float64(n))
		if err != nil {
			// Hitting our own deadline is the normal end of a session.
			if ctx.Err() != nil || errors.Is(err, os.ErrDeadlineExceeded) {
				return res
			}
			res.Err = classify(err)
			logging.Logger.WithError(res.Err).Debug("sender: write failed")
			return res
		}
	}
	return res
}
