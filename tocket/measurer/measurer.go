// Package measurer samples the kernel's TCP metrics of a connection at a
// fixed interval and returns them for consumption.
package measurer

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/go/memoryless"
	"github.com/m-lab/tcp-info/inetdiag"
	"github.com/m-lab/tcp-info/tcp"
	"github.com/m-lab/tocket/logging"
	"github.com/m-lab/tocket/magic"
	"github.com/m-lab/tocket/metrics"
	"github.com/m-lab/tocket/tcpinfox"
	"github.com/m-lab/tocket/tocket/model"
	"github.com/m-lab/tocket/tocket/spec"
)

// ErrTooManyFailures is reported when too many samples in a row failed.
var ErrTooManyFailures = errors.New("measurer: too many consecutive sampling failures")

// InfoReader reads the kernel state of a connection.
type InfoReader interface {
	ReadInfo() (inetdiag.BBRInfo, tcp.LinuxTCPInfo, error)
}

// Config configures a Measurer.
type Config struct {
	// Interval is the time between two samples.
	Interval time.Duration

	// MaxConsecutiveErrors is how many failed samples in a row stop the
	// measurer.
	MaxConsecutiveErrors int
}

// Measurer performs measurements
type Measurer struct {
	ci   InfoReader
	uuid string
	cfg  Config
	err  error
}

// New creates a new measurer instance. Zero fields of |cfg| take the
// defaults from spec.
func New(ci InfoReader, uuid string, cfg Config) *Measurer {
	if cfg.Interval <= 0 {
		cfg.Interval = spec.DefaultSamplingInterval
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = spec.DefaultMaxSampleErrors
	}
	return &Measurer{ci: ci, uuid: uuid, cfg: cfg}
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, magic.ErrConnectionClosed):
		return "closed"
	case errors.Is(err, tcpinfox.ErrNoSupport):
		return "unsupported"
	default:
		return "getsockopt"
	}
}

func (m *Measurer) loop(ctx context.Context, dst chan<- model.Snapshot) {
	logging.Logger.Debug("measurer: start")
	defer logging.Logger.Debug("measurer: stop")
	defer close(dst)
	start := time.Now()
	// A fixed interval: every wait is exactly cfg.Interval. The ticker
	// will close its output channel after the controlling context is expired.
	ticker, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      m.cfg.Interval,
		Expected: m.cfg.Interval,
		Max:      m.cfg.Interval,
	})
	if err != nil {
		logging.Logger.WithError(err).Warn("memoryless.NewTicker failed")
		m.err = err
		return
	}
	defer ticker.Stop()
	failures := 0
	for now := range ticker.C {
		if ctx.Err() != nil {
			return
		}
		bbrinfo, tcpInfo, err := m.ci.ReadInfo()
		if err != nil {
			metrics.SampleErrors.WithLabelValues(errorLabel(err)).Inc()
			failures++
			if failures >= m.cfg.MaxConsecutiveErrors {
				m.err = ErrTooManyFailures
				logging.Logger.WithFields(log.Fields{
					"uuid":     m.uuid,
					"failures": failures,
				}).WithError(err).Warn(ErrTooManyFailures.Error())
				return
			}
			continue
		}
		failures = 0
		snapshot := model.NewSnapshot(m.uuid, start, now, bbrinfo, tcpInfo)
		select {
		case dst <- snapshot:
		case <-ctx.Done():
			return
		}
	}
}

// Start runs the measurement loop in a background goroutine and emits
// the snapshots on the returned channel. The channel is closed when the
// loop exits.
//
// Liveness guarantee: the measurer terminates within one interval of |ctx|
// being done, whether or not the consumer is still reading.
func (m *Measurer) Start(ctx context.Context) <-chan model.Snapshot {
	dst := make(chan model.Snapshot)
	go m.loop(ctx, dst)
	return dst
}

// Err returns why the loop stopped on its own, or nil if it stopped
// because of its context. Err may only be called after the channel
// returned by Start is closed.
func (m *Measurer) Err() error {
	return m.err
}
