// Package client implements a simple tocket client: it connects, reads
// whatever the server sends and reports how much it got.
package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/tocket/tocket/spec"
)

// defaultTimeout is the default I/O timeout.
const defaultTimeout = 7 * time.Second

// Client is a simplified tocket client.
type Client struct {
	// Addr is the address of the server.
	Addr string

	// Duration, when positive, stops the download early.
	Duration time.Duration

	// Timeout bounds each dial and read. Zero means defaultTimeout.
	Timeout time.Duration
}

// Result describes one download.
type Result struct {
	Bytes   int64
	Elapsed time.Duration

	// LastRTT is the last RTT marker seen in the payload, in microseconds.
	// It is zero unless the server encodes RTTs.
	LastRTT uint32
}

// Mbps returns the average download rate.
func (r Result) Mbps() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return 8 * float64(r.Bytes) / r.Elapsed.Seconds() / 1e6
}

// DecodeRTT returns the RTT carried by the last whole marker in |buf|.
func DecodeRTT(buf []byte) (uint32, bool) {
	for end := len(buf); end >= spec.RTTMarkerSize; {
		i := bytes.LastIndex(buf[:end], spec.RTTMarkerPrefix)
		if i < 0 {
			return 0, false
		}
		if i+spec.RTTMarkerSize <= len(buf) && bytes.Equal(buf[i+7:i+10], spec.RTTMarkerSuffix) {
			return binary.BigEndian.Uint32(buf[i+3 : i+7]), true
		}
		end = i
	}
	return 0, false
}

// Download reads from the server until it closes the connection, until
// cl.Duration elapses, or until |ctx| is done.
func (cl Client) Download(ctx context.Context) (Result, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cl.Addr)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()
	if cl.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.Duration)
		defer cancel()
	}
	log.Infof("Connected to %s", cl.Addr)
	var res Result
	t0 := time.Now()
	buf := make([]byte, 1<<16)
	for ctx.Err() == nil {
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		conn.SetReadDeadline(deadline)
		n, err := conn.Read(buf)
		res.Bytes += int64(n)
		if rtt, ok := DecodeRTT(buf[:n]); ok {
			res.LastRTT = rtt
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			res.Elapsed = time.Since(t0)
			return res, err
		}
	}
	res.Elapsed = time.Since(t0)
	log.WithFields(log.Fields{
		"bytes":   res.Bytes,
		"elapsed": res.Elapsed.Seconds(),
		"mbps":    res.Mbps(),
	}).Info("Download complete")
	return res, nil
}
