//go:build !linux
// +build !linux

package uuidx

import (
	"os"

	"github.com/google/uuid"
)

func realFromFile(file *os.File) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
