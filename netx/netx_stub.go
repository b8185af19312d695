//go:build !linux
// +build !linux

package netx

import (
	"os"
)

func setCongestionControl(*os.File, string) error {
	return ErrNoSupport
}

func getCongestionControl(*os.File) (string, error) {
	return "", ErrNoSupport
}

func kernelRelease() string {
	return "unknown"
}
