// tocket-client downloads from a tocket server one or more times.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/tocket/cmd/tocket-client/client"
)

var (
	addr     = flag.String("addr", "localhost:9393", "Server to connect to")
	duration = flag.Duration("duration", 0, "Stop each download after this long; zero reads until the server closes")
	count    = flag.Int("count", 1, "Number of downloads to run")
	spacing  = flag.Duration("spacing", time.Second, "Pause between downloads")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from env")
	clnt := client.Client{Addr: *addr, Duration: *duration}
	for i := 0; i < *count; i++ {
		if i > 0 {
			time.Sleep(*spacing)
		}
		res, err := clnt.Download(context.Background())
		if err != nil {
			log.WithError(err).Warn("clnt.Download() failed")
			os.Exit(1)
		}
		log.WithFields(log.Fields{
			"run":      i + 1,
			"bytes":    res.Bytes,
			"mbps":     res.Mbps(),
			"last_rtt": res.LastRTT,
		}).Info("run complete")
	}
}
