//go:build !linux
// +build !linux

package bbr

import (
	"os"

	"github.com/m-lab/tcp-info/inetdiag"
)

func getBBRInfo(*os.File) (inetdiag.BBRInfo, error) {
	return inetdiag.BBRInfo{}, ErrNoSupport
}
