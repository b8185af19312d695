package bbr

import (
	"os"
	"unsafe"

	"github.com/m-lab/tcp-info/inetdiag"
	"golang.org/x/sys/unix"
)

// tcp_bbr_info is the only congestion control structure occupying five
// 32 bit words: bw_lo, bw_hi, min_rtt, pacing_gain, cwnd_gain. Vegas and
// DCTCP report four words and cubic reports none.
const bbrInfoWords = 5

func getBBRInfo(fp *os.File) (inetdiag.BBRInfo, error) {
	raw, err := fp.SyscallConn()
	if err != nil {
		return inetdiag.BBRInfo{}, err
	}
	var words [bbrInfoWords]uint32
	length := uint32(unsafe.Sizeof(words))
	var errno unix.Errno
	err = raw.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall6(
			unix.SYS_GETSOCKOPT,
			fd,
			unix.IPPROTO_TCP,
			unix.TCP_CC_INFO,
			uintptr(unsafe.Pointer(&words[0])),
			uintptr(unsafe.Pointer(&length)),
			0)
	})
	if err != nil {
		return inetdiag.BBRInfo{}, err
	}
	if errno != 0 {
		return inetdiag.BBRInfo{}, errno
	}
	if length != uint32(unsafe.Sizeof(words)) {
		return inetdiag.BBRInfo{}, ErrNoSupport
	}
	return inetdiag.BBRInfo{
		BW:         int64(uint64(words[1])<<32 | uint64(words[0])),
		MinRTT:     words[2],
		PacingGain: words[3],
		CwndGain:   words[4],
	}, nil
}
