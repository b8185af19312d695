package netx

import (
	"os"

	"golang.org/x/sys/unix"
)

func setCongestionControl(fp *os.File, name string) error {
	raw, err := fp.SyscallConn()
	if err != nil {
		return err
	}
	var sysErr error
	err = raw.Control(func(fd uintptr) {
		// Note: casting to int is safe because a socket is int on Unix
		sysErr = unix.SetsockoptString(int(fd), unix.IPPROTO_TCP, unix.TCP_CONGESTION, name)
	})
	if err != nil {
		return err
	}
	return sysErr
}

func getCongestionControl(fp *os.File) (string, error) {
	raw, err := fp.SyscallConn()
	if err != nil {
		return "", err
	}
	var (
		name   string
		sysErr error
	)
	err = raw.Control(func(fd uintptr) {
		name, sysErr = unix.GetsockoptString(int(fd), unix.IPPROTO_TCP, unix.TCP_CONGESTION)
	})
	if err != nil {
		return "", err
	}
	return name, sysErr
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(uts.Release[:])
}
