package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"
	"github.com/m-lab/tocket/logging"
	"github.com/m-lab/tocket/magic"
	"github.com/m-lab/tocket/netx"
	"github.com/m-lab/tocket/platformx"
	"github.com/m-lab/tocket/redis"
	"github.com/m-lab/tocket/tocket/measurer"
	"github.com/m-lab/tocket/tocket/results"
	"github.com/m-lab/tocket/tocket/sender"
	"github.com/m-lab/tocket/tocket/server"
	"github.com/m-lab/tocket/tocket/session"
	"github.com/m-lab/tocket/tocket/spec"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	addr              = flag.String("addr", spec.DefaultAddr, "The address and port on which clients are served")
	duration          = flag.Duration("duration", spec.DefaultDuration, "How long each session streams data")
	interval          = flag.Duration("interval", spec.DefaultSamplingInterval, "Interval between two TCP_INFO samples")
	grace             = flag.Duration("grace", spec.DefaultGracePeriod, "How long a finished session waits for its activities to stop")
	maxSampleErrors   = flag.Int("max_sample_errors", spec.DefaultMaxSampleErrors, "Consecutive failed samples after which a session stops")
	logDir            = flag.String("log_dir", spec.DefaultLogDir, "The directory in which to write session logs")
	congestionControl = flag.String("cc", "", "Congestion control to select on accepted connections; empty keeps the system default")
	encodeRTT         = flag.Bool("encode_rtt", false, "Stamp the current RTT into the streamed data")
	metricsAddr       = flag.String("metrics_addr", ":9990", "The address serving prometheus metrics and pprof; empty disables it")
	redisAddr         = flag.String("redis_addr", "", "Redis server for live snapshots and termination requests; empty disables it")
	profileDir        = flag.String("profile", "", "Write a CPU profile in this directory; empty disables profiling")
	verbose           = flag.Bool("verbose", false, "Log debug messages")

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func catchSigterm() {
	sigctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigctx.Done()
	cancel()
}

func makeMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    *metricsAddr,
		Handler: logging.MakeAccessLogHandler(mux),
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from env")
	if *interval < spec.MinSamplingInterval {
		log.Fatalf("-interval must be at least %v", spec.MinSamplingInterval)
	}
	logging.SetVerbose(*verbose)
	if *profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profileDir), profile.NoShutdownHook).Stop()
	}
	platformx.WarnIfNotFullySupported()
	go catchSigterm()

	rtx.Must(results.EnsureDir(*logDir), "Could not create log directory %q", *logDir)
	logging.Logger.WithFields(log.Fields{
		"cc":     netx.SystemCongestionControl(),
		"kernel": netx.KernelRelease(),
	}).Info("system")

	if *metricsAddr != "" {
		metricsServer := makeMetricsServer()
		rtx.Must(httpx.ListenAndServeAsync(metricsServer), "Could not start metrics server")
		defer metricsServer.Close()
	}

	cfg := session.Config{
		LogDir:            *logDir,
		Duration:          *duration,
		GracePeriod:       *grace,
		CongestionControl: *congestionControl,
		Sender:            sender.Config{EncodeRTT: *encodeRTT},
		Measurer: measurer.Config{
			Interval:             *interval,
			MaxConsecutiveErrors: *maxSampleErrors,
		},
	}
	if *redisAddr != "" {
		rc := redis.NewClient(*redisAddr)
		defer warnonerror.Close(rc, "Could not close redis client")
		if err := rc.Ping(ctx); err != nil {
			logging.Logger.WithError(err).Warn("Redis is not reachable yet, sessions will carry on without it")
		}
		cfg.Store = rc
	}

	tcpl, err := net.Listen("tcp", *addr)
	rtx.Must(err, "Could not listen on %q", *addr)
	logging.Logger.WithFields(log.Fields{
		"addr":     tcpl.Addr().String(),
		"duration": cfg.Duration.String(),
		"interval": cfg.Measurer.Interval.String(),
		"log_dir":  cfg.LogDir,
	}).Info("tocket: listening")
	srv := server.New(cfg)
	if err := srv.Serve(ctx, magic.NewListener(tcpl.(*net.TCPListener))); err != nil {
		logging.Logger.WithError(err).Warn("tocket: serve failed")
	}
	logging.Logger.Info("tocket: stopped")
}
