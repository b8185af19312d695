//go:build !linux
// +build !linux

package platformx

import (
	"github.com/m-lab/tocket/logging"
)

func maybeEmitWarning() {
	logging.Logger.Warn("This platform is not supported: TCP_INFO sampling will fail and sessions will stop early.")
}
