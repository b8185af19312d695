// Package netx extends the functionality of the net package. It contains
// code to select and inspect the congestion control algorithm of a socket
// and to describe the host's TCP stack.
package netx

import (
	"errors"
	"os"
	"strings"
)

// ErrNoSupport is returned on systems where congestion control cannot be
// selected per socket.
var ErrNoSupport = errors.New("TCP_CONGESTION not supported")

// systemCCPath is where linux exposes the default congestion control.
var systemCCPath = "/proc/sys/net/ipv4/tcp_congestion_control"

// SetCongestionControl selects the congestion control algorithm |name| for
// the socket behind |fp|. The kernel rejects names that are not loaded, and
// names that are not in the allowed list for unprivileged processes.
func SetCongestionControl(fp *os.File, name string) error {
	return setCongestionControl(fp, name)
}

// GetCongestionControl returns the congestion control algorithm in use on
// the socket behind |fp|.
func GetCongestionControl(fp *os.File) (string, error) {
	return getCongestionControl(fp)
}

// SystemCongestionControl returns the host's default congestion control
// algorithm, or "unknown" when it cannot be read.
func SystemCongestionControl() string {
	data, err := os.ReadFile(systemCCPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}

// KernelRelease returns the release of the running kernel, or "unknown".
func KernelRelease() string {
	return kernelRelease()
}
