// Package uuidx contains a portable wrapper around github.com/m-lab/uuid.
package uuidx

import (
	"os"
)

// FromFile returns a string that is a globally unique identifier for the socket
// represented by the os.File pointer.
//
// On Linux we use github.com/m-lab/uuid, which derives the identifier from
// the kernel's SO_COOKIE. On other platforms we return a random UUID, which is
// unique but cannot be joined with kernel-side socket data.
func FromFile(file *os.File) (string, error) {
	return realFromFile(file)
}
