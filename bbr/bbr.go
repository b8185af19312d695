// Package bbr reads the congestion control state that BBR exposes through
// TCP_CC_INFO. Only linux sockets using BBR report anything.
package bbr

import (
	"errors"
	"os"

	"github.com/m-lab/tcp-info/inetdiag"
)

// ErrNoSupport indicates that the socket is not running BBR, or that this
// system does not support TCP_CC_INFO at all.
var ErrNoSupport = errors.New("TCP_CC_INFO not supported")

// GetBBRInfo obtains BBR info from |fp|. BW is in bytes per second and
// MinRTT is in microseconds.
func GetBBRInfo(fp *os.File) (inetdiag.BBRInfo, error) {
	return getBBRInfo(fp)
}
