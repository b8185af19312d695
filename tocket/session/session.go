// Package session runs one tocket session: it streams filler data to a
// client while sampling the connection's TCP metrics into the session log.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/go/warnonerror"
	"github.com/m-lab/tocket/logging"
	"github.com/m-lab/tocket/magic"
	"github.com/m-lab/tocket/metrics"
	"github.com/m-lab/tocket/tocket/measurer"
	"github.com/m-lab/tocket/tocket/model"
	"github.com/m-lab/tocket/tocket/results"
	"github.com/m-lab/tocket/tocket/sender"
	"github.com/m-lab/tocket/tocket/spec"
)

// Reasons a session stops, as recorded in its summary.
const (
	StopDeadline   = "deadline"
	StopPeer       = "peer"
	StopSampler    = "sampler"
	StopTerminated = "terminated"
	StopCanceled   = "canceled"
)

// Conn is the connection a session runs on. *magic.Conn implements it.
type Conn interface {
	net.Conn
	magic.ConnInfo
}

// Store receives the live snapshots of a session and tells whether an
// operator asked the session to stop. *redis.Client implements it.
type Store interface {
	SetSnapshot(ctx context.Context, uuid string, s *model.Snapshot) error
	GetTerminationFlag(ctx context.Context, uuid string) (int, error)
}

// Config configures sessions.
type Config struct {
	// LogDir is where session logs are written. It must exist.
	LogDir string

	// Duration is how long data is streamed to the client.
	Duration time.Duration

	// GracePeriod bounds how long the session waits for its activities to
	// stop once the session is over.
	GracePeriod time.Duration

	// CongestionControl, when not empty, is selected on the connection
	// before any data is sent.
	CongestionControl string

	Sender   sender.Config
	Measurer measurer.Config

	// Store is optional.
	Store Store
}

func (cfg Config) withDefaults() Config {
	if cfg.Duration <= 0 {
		cfg.Duration = spec.DefaultDuration
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = spec.DefaultGracePeriod
	}
	if cfg.LogDir == "" {
		cfg.LogDir = spec.DefaultLogDir
	}
	return cfg
}

// stopper cancels the session context and remembers the first reason.
type stopper struct {
	mu     sync.Mutex
	reason string
	cancel context.CancelFunc
}

func (s *stopper) stop(reason string) {
	s.mu.Lock()
	if s.reason == "" {
		s.reason = reason
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *stopper) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// checkEarlyTermination polls the store until |ctx| is done, and calls
// |cancel| as soon as the termination flag of |uuid| is set to 1. Store
// errors are ignored: the session carries on.
func checkEarlyTermination(ctx context.Context, store Store, uuid string, cancel func()) {
	ticker := time.NewTicker(spec.TerminationPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flag, err := store.GetTerminationFlag(ctx, uuid)
			if err != nil {
				if ctx.Err() == nil {
					metrics.StoreErrors.WithLabelValues("get_termination_flag").Inc()
				}
				continue
			}
			if flag == 1 {
				cancel()
				return
			}
		}
	}
}

func remoteString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// Do runs a session on |conn| and closes it before returning. Do returns
// the session summary, or an error if the session could not start.
func Do(ctx context.Context, conn Conn, cfg Config) (*model.Summary, error) {
	defer warnonerror.Close(conn, "session: cannot close connection")
	cfg = cfg.withDefaults()
	start := time.Now()
	uuid, _ := conn.GetUUID()
	logger := logging.Logger.WithFields(log.Fields{
		"uuid":   uuid,
		"client": remoteString(conn.RemoteAddr()),
	})
	if cfg.CongestionControl != "" {
		if err := conn.SetCC(cfg.CongestionControl); err != nil {
			logger.WithError(err).Warnf("session: cannot select %q, using the default", cfg.CongestionControl)
		}
	}
	cc, err := conn.GetCC()
	if err != nil {
		cc = "unknown"
	}
	fp, err := results.NewFile(cfg.LogDir, start)
	if err != nil {
		return nil, fmt.Errorf("session: cannot open log: %w", err)
	}
	defer warnonerror.Close(fp, "session: cannot close log")
	logger.WithFields(log.Fields{"cc": cc, "log": fp.Path}).Info("session: start")
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	sessctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	stop := &stopper{cancel: cancel}
	if cfg.Store != nil {
		go checkEarlyTermination(sessctx, cfg.Store, uuid, func() { stop.stop(StopTerminated) })
	}

	senderDone := make(chan sender.Result, 1)
	go func() {
		res := sender.Run(sessctx, conn, conn, cfg.Sender)
		if res.Err != nil {
			stop.stop(StopPeer)
		}
		senderDone <- res
	}()

	stats := &model.Stats{}
	m := measurer.New(conn, uuid, cfg.Measurer)
	snapshots := m.Start(sessctx)
	measurerDone := make(chan struct{})
	go func() {
		defer close(measurerDone)
		for s := range snapshots {
			metrics.Snapshots.Inc()
			if err := fp.WriteSnapshot(&s); err != nil {
				metrics.LogWriteErrors.WithLabelValues("snapshot").Inc()
				logger.WithError(err).Warn("session: cannot write snapshot")
			}
			stats.Add(&s)
			if cfg.Store != nil {
				publish(sessctx, cfg.Store, uuid, &s, cfg.Measurer.Interval)
			}
		}
		if m.Err() != nil {
			stop.stop(StopSampler)
		}
	}()

	<-sessctx.Done()
	res, abandoned := join(cfg.GracePeriod, senderDone, measurerDone)
	reason := stop.get()
	if reason == "" {
		reason = StopDeadline
		if errors.Is(ctx.Err(), context.Canceled) {
			reason = StopCanceled
		}
	}
	if len(abandoned) > 0 {
		for _, task := range abandoned {
			metrics.AbandonedTasks.WithLabelValues(task).Inc()
		}
		logger.WithField("tasks", abandoned).Warn("session: abandoned activities after the grace period")
		warnonerror.Close(conn, "session: cannot close stalled connection")
	} else if reason == StopDeadline {
		// A FIN tells the client that all the data has been sent.
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			if err := cw.CloseWrite(); err != nil {
				logger.WithError(err).Warn("session: cannot shut down the sending side")
			}
		}
	}
	end := time.Now()

	sum := &model.Summary{
		UUID:              uuid,
		Client:            remoteString(conn.RemoteAddr()),
		Server:            remoteString(conn.LocalAddr()),
		CongestionControl: cc,
		StartTime:         start.UTC(),
		EndTime:           end.UTC(),
		DurationMS:        end.Sub(start).Milliseconds(),
		BytesSent:         res.BytesSent,
		StopReason:        reason,
	}
	stats.Fill(sum)
	if err := fp.WriteSummary(sum); err != nil {
		metrics.LogWriteErrors.WithLabelValues("summary").Inc()
		logger.WithError(err).Warn("session: cannot write summary")
	}
	metrics.SessionCount.WithLabelValues(reason).Inc()
	metrics.SessionDuration.Observe(end.Sub(start).Seconds())
	if secs := end.Sub(start).Seconds(); secs > 0 {
		metrics.SessionRate.Observe(8 * float64(res.BytesSent) / secs / 1e6)
	}
	logger.WithFields(log.Fields{
		"stop_reason": reason,
		"bytes_sent":  res.BytesSent,
		"samples":     sum.Samples,
		"rtt_mean":    sum.RTTMean,
		"cwnd_mean":   sum.CwndMean,
	}).Info("session: done")
	return sum, nil
}

// join waits for the sender and the snapshot consumer to stop, for at most
// |grace|. It returns the sender result, if any, and the names of the
// activities that did not stop in time.
func join(grace time.Duration, senderDone <-chan sender.Result, measurerDone <-chan struct{}) (sender.Result, []string) {
	var res sender.Result
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for senderDone != nil || measurerDone != nil {
		select {
		case res = <-senderDone:
			senderDone = nil
		case <-measurerDone:
			measurerDone = nil
		case <-timer.C:
			var abandoned []string
			if senderDone != nil {
				abandoned = append(abandoned, "sender")
			}
			if measurerDone != nil {
				abandoned = append(abandoned, "measurer")
			}
			return res, abandoned
		}
	}
	return res, nil
}

// publish stores the latest snapshot, giving up after one interval so a
// slow store never delays the session log.
func publish(ctx context.Context, store Store, uuid string, s *model.Snapshot, timeout time.Duration) {
	if timeout <= 0 {
		timeout = spec.DefaultSamplingInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := store.SetSnapshot(ctx, uuid, s); err != nil {
		metrics.StoreErrors.WithLabelValues("set_snapshot").Inc()
	}
}
