package tcpinfox

import (
	"os"
	"unsafe"

	"github.com/m-lab/tcp-info/tcp"
	"golang.org/x/sys/unix"
)

func getTCPInfo(fp *os.File) (*tcp.LinuxTCPInfo, error) {
	// fp.Fd() would put the shared socket in blocking mode, so the syscall
	// runs inside Control instead.
	raw, err := fp.SyscallConn()
	if err != nil {
		return nil, err
	}
	// The kernel copies min(len, sizeof(struct tcp_info)) bytes, so an older
	// kernel leaves the trailing fields zeroed rather than failing.
	tcpInfo := tcp.LinuxTCPInfo{}
	tcpInfoLen := uint32(unsafe.Sizeof(tcpInfo))
	var errno unix.Errno
	err = raw.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall6(
			unix.SYS_GETSOCKOPT,
			fd,
			unix.SOL_TCP,
			unix.TCP_INFO,
			uintptr(unsafe.Pointer(&tcpInfo)),
			uintptr(unsafe.Pointer(&tcpInfoLen)),
			0)
	})
	if err != nil {
		return nil, err
	}
	if errno != 0 {
		return nil, errno
	}
	return &tcpInfo, nil
}
