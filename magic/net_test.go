package magic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
	"github.com/m-lab/tcp-info/inetdiag"
	"github.com/m-lab/tcp-info/tcp"
	"github.com/m-lab/tocket/tcpinfox"
)

type errorCI struct{}

func (f *errorCI) TCPConnToFile(tc *net.TCPConn) (*os.File, error) {
	return nil, fmt.Errorf("fake file from conn error")
}

func dialAsyncUntilCanceled(t *testing.T, addr string) {
	go func() {
		// Because the socket already exists, Dial will block until Accept is
		// called below.
		c, err := net.Dial("tcp", addr)
		if err != nil {
			t.Errorf("unexpected failure to dial local conn: %v", err)
			return
		}
		// Wait until primary test routine closes conn and returns.
		buf := make([]byte, 1)
		c.Read(buf)
		c.Close()
	}()
}

func TestListener_Accept(t *testing.T) {
	// Successful Accept.
	tcpl, err := net.ListenTCP("tcp", &net.TCPAddr{})
	rtx.Must(err, "failed to listen during unit test")
	ln := NewListener(tcpl)
	defer ln.Close()
	dialAsyncUntilCanceled(t, tcpl.Addr().String())

	got, err := ln.Accept()
	if err != nil {
		t.Fatalf("Listener.Accept() unexpected error = %v", err)
	}
	if _, ok := got.(*Conn); !ok {
		t.Errorf("Listener.Accept() wrong Conn type = %T, want *Conn", got)
	}
	got.Close()

	// Accept error
	tcpl, err = net.ListenTCP("tcp", &net.TCPAddr{})
	rtx.Must(err, "failed to listen during unit test")
	ln = NewListener(tcpl)
	// Close listener so Accept fails.
	tcpl.Close()
	_, err = ln.Accept()
	if err == nil {
		t.Errorf("Listener.Accept() expected error, got nil")
	}

	// ConnFile error
	tcpl, err = net.ListenTCP("tcp", &net.TCPAddr{})
	rtx.Must(err, "failed to listen during unit test")
	ln = NewListener(tcpl)
	defer ln.Close()
	dialAsyncUntilCanceled(t, tcpl.Addr().String())

	// Force accept to receive an error when reading fd from conn.
	ln.connfile = &errorCI{}

	got, err = ln.Accept()
	if err == nil {
		t.Errorf("Listener.Accept() expected error, got = %#v", got)
	}
}

type fakeNetInfo struct {
	state    uint8
	tcpErr   error
	uuidErr  error
	ccName   string
	setCCErr error
}

func (f *fakeNetInfo) GetUUID(fp *os.File) (string, error) {
	if f.uuidErr != nil {
		return "", f.uuidErr
	}
	return "fake-uuid", nil
}
func (f *fakeNetInfo) GetBBRInfo(fp *os.File) (inetdiag.BBRInfo, error) {
	return inetdiag.BBRInfo{BW: 1000, MinRTT: 20}, nil
}
func (f *fakeNetInfo) GetTCPInfo(fp *os.File) (*tcp.LinuxTCPInfo, error) {
	if f.tcpErr != nil {
		return nil, f.tcpErr
	}
	return &tcp.LinuxTCPInfo{State: f.state, SndCwnd: 10, RTT: 100}, nil
}
func (f *fakeNetInfo) GetCC(fp *os.File) (string, error) {
	return f.ccName, nil
}
func (f *fakeNetInfo) SetCC(fp *os.File, name string) error {
	if f.setCCErr != nil {
		return f.setCCErr
	}
	f.ccName = name
	return nil
}

func acceptOne(t *testing.T) (*Conn, func()) {
	tcpl, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	rtx.Must(err, "failed to listen during unit test")
	ln := NewListener(tcpl)

	client, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := net.Dial("tcp", tcpl.Addr().String())
		if err != nil {
			t.Errorf("failed to dial local conn: %v", err)
			return
		}
		// Wait until primary test routine is done with the conn.
		<-client.Done()
		c.Close()
	}()

	conn, err := ln.Accept()
	rtx.Must(err, "Conn.Accept() unexpected error")
	return conn.(*Conn), func() {
		conn.Close()
		cancel()
		<-done
		ln.Close()
	}
}

func TestConn(t *testing.T) {
	conn, cleanup := acceptOne(t)
	defer cleanup()

	if ToTCPAddr(conn.LocalAddr()) == nil {
		t.Errorf("ToTCPAddr(conn.LocalAddr()) returned nil addr")
	}
	if ToTCPAddr(conn.RemoteAddr()) == nil {
		t.Errorf("ToTCPAddr(conn.RemoteAddr()) returned nil addr")
	}

	ci := ToConnInfo(conn)
	id, err := ci.GetUUID()
	if err != nil || id == "" {
		t.Errorf("ConnInfo.GetUUID error: %#v, %q", err, id)
	}
	if runtime.GOOS == "linux" {
		bi, ti, err := ci.ReadInfo()
		if err != nil {
			t.Errorf("ConnInfo.ReadInfo error: %#v, %#v %#v", err, bi, ti)
		}
		cc, err := ci.GetCC()
		if err != nil || cc == "" {
			t.Errorf("ConnInfo.GetCC error: %#v, %q", err, cc)
		}
	}

	// Reset the netinfo value to always fail.
	conn.netinfo = &fakeNetInfo{
		uuidErr: fmt.Errorf("fake get uuid error"),
		tcpErr:  fmt.Errorf("fake get tcpinfo error"),
	}
	id, err = ci.GetUUID()
	if err != nil || id == "" {
		t.Errorf("ConnInfo.GetUUID fallback error, got %#v, %q", err, id)
	}
	bi, ti, err := ci.ReadInfo()
	if err == nil {
		t.Errorf("ConnInfo.ReadInfo expected error, got nil: %#v %#v", bi, ti)
	}
}

func TestConn_ReadInfoClosedState(t *testing.T) {
	conn, cleanup := acceptOne(t)
	defer cleanup()

	conn.netinfo = &fakeNetInfo{state: tcpinfox.StateClose}
	if _, _, err := conn.ReadInfo(); err != ErrConnectionClosed {
		t.Errorf("ReadInfo() error = %v, want %v", err, ErrConnectionClosed)
	}
	conn.netinfo = &fakeNetInfo{state: 1}
	bi, ti, err := conn.ReadInfo()
	if err != nil {
		t.Fatalf("ReadInfo() unexpected error = %v", err)
	}
	if bi.BW != 1000 || ti.SndCwnd != 10 {
		t.Errorf("ReadInfo() = %+v, %+v", bi, ti)
	}
}

func TestConn_SetCC(t *testing.T) {
	conn, cleanup := acceptOne(t)
	defer cleanup()

	fake := &fakeNetInfo{ccName: "cubic"}
	conn.netinfo = fake
	if err := conn.SetCC("bbr"); err != nil {
		t.Fatalf("SetCC() error = %v", err)
	}
	got, _ := conn.GetCC()
	if got != "bbr" {
		t.Errorf("GetCC() = %q, want bbr", got)
	}
	fake.setCCErr = fmt.Errorf("not allowed")
	if err := conn.SetCC("vegas"); err == nil {
		t.Error("SetCC() expected error")
	}
}

func TestConn_WriteDeadlineAfterSocketQueries(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("socket queries are only available on linux")
	}
	// The client of acceptOne never reads, so writes fill the send buffer
	// and only the deadline can end them.
	conn, cleanup := acceptOne(t)
	defer cleanup()

	conn.GetUUID()
	conn.SetCC("reno")
	conn.GetCC()
	if _, _, err := conn.ReadInfo(); err != nil {
		t.Fatalf("ReadInfo() error = %v", err)
	}

	rtx.Must(conn.SetWriteDeadline(time.Now().Add(300*time.Millisecond)), "cannot set deadline")
	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1<<16)
		for {
			if _, err := conn.Write(buf); err != nil {
				done <- err
				return
			}
		}
	}()
	select {
	case err := <-done:
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			t.Errorf("Write() error = %v, want %v", err, os.ErrDeadlineExceeded)
		}
	case <-time.After(5 * time.Second):
		// Unblock the writer so the test can clean up.
		conn.Close()
		t.Fatal("Write() ignored its deadline after the socket was queried")
	}
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	conn, cleanup := acceptOne(t)
	defer cleanup()

	if err := conn.CloseWrite(); err != nil {
		t.Errorf("CloseWrite() error = %v", err)
	}
	first := conn.Close()
	second := conn.Close()
	if first != second {
		t.Errorf("Close() returned %v then %v", first, second)
	}
}

func TestToTCPAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    net.Addr
		wantNil bool
	}{
		{
			name: "success-TCPAddr",
			addr: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1234},
		},
		{
			name:    "unsupported-returns-nil",
			addr:    &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1234},
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToTCPAddr(tt.addr)
			if (got == nil) != tt.wantNil {
				t.Errorf("ToTCPAddr() wrong value; got %#v, wantNil %t", got, tt.wantNil)
			}
		})
	}
}

func TestToConnInfo(t *testing.T) {
	conn, cleanup := acceptOne(t)
	defer cleanup()
	if ToConnInfo(conn) == nil {
		t.Errorf("ToConnInfo() failed to return ConnInfo from conn")
	}
	if got := ToConnInfo(&net.UDPConn{}); got != nil {
		t.Errorf("ToConnInfo() returned ConnInfo for unsupported type: %#v", got)
	}
}
