package uuidx

import (
	"net"
	"testing"

	"github.com/m-lab/go/rtx"
)

func TestFromFile(t *testing.T) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	rtx.Must(err, "could not listen")
	defer ln.Close()
	conn, err := net.DialTCP("tcp", nil, ln.Addr().(*net.TCPAddr))
	rtx.Must(err, "could not dial")
	defer conn.Close()
	fp, err := conn.File()
	rtx.Must(err, "could not dup the socket")
	defer fp.Close()

	first, err := FromFile(fp)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if first == "" {
		t.Fatal("FromFile() returned an empty identifier")
	}
}
