package tcpinfox

import (
	"io"
	"net"
	"runtime"
	"testing"

	"github.com/m-lab/go/rtx"
)

func TestGetTCPInfo(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("TCP_INFO is only available on linux")
	}
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	rtx.Must(err, "could not listen")
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		io.Copy(io.Discard, c)
		c.Close()
	}()
	conn, err := net.DialTCP("tcp", nil, ln.Addr().(*net.TCPAddr))
	rtx.Must(err, "could not dial")
	defer conn.Close()
	_, err = conn.Write(make([]byte, 1<<16))
	rtx.Must(err, "could not write")

	fp, err := conn.File()
	rtx.Must(err, "could not dup the socket")
	defer fp.Close()
	info, err := GetTCPInfo(fp)
	if err != nil {
		t.Fatalf("GetTCPInfo() error = %v", err)
	}
	if info.SndCwnd == 0 {
		t.Error("GetTCPInfo() returned a zero congestion window")
	}
	if info.RTT == 0 {
		t.Error("GetTCPInfo() returned a zero RTT")
	}
	if info.State == StateClose {
		t.Error("GetTCPInfo() reports a closed socket on an open connection")
	}
}

func TestGetTCPInfoClosedFile(t *testing.T) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	rtx.Must(err, "could not listen")
	defer ln.Close()
	conn, err := net.DialTCP("tcp", nil, ln.Addr().(*net.TCPAddr))
	rtx.Must(err, "could not dial")
	defer conn.Close()
	fp, err := conn.File()
	rtx.Must(err, "could not dup the socket")
	fp.Close()
	if _, err := GetTCPInfo(fp); err == nil {
		t.Error("GetTCPInfo() on a closed file should fail")
	}
}
