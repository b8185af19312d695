// Package results writes session logs: one JSON line per snapshot, and a
// summary document once the session is over.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-lab/tocket/logging"
	"github.com/m-lab/tocket/tocket/model"
	"github.com/m-lab/tocket/tocket/spec"
)

// ErrClosed is returned when writing to a File that was closed.
var ErrClosed = errors.New("results file closed")

// File is the file where we save the snapshots of one session. Records are
// written with a single write(2) each on an unbuffered file, so a reader
// never observes a partial line written by this process.
type File struct {
	// Path is the path of the snapshot log.
	Path string

	mu sync.Mutex
	fp *os.File
}

// EnsureDir creates |dir| if it does not exist yet.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Name returns the base name of the log of a session started at |start|.
func Name(start time.Time) string {
	return spec.LogFilePrefix + start.UTC().Format(spec.LogTimestampLayout) + spec.LogFileExt
}

// NewFile creates the log file in |dir| for a session started at |start|.
// Returns the results file on success and an error in case of failure.
func NewFile(dir string, start time.Time) (*File, error) {
	name := filepath.Join(dir, Name(start))
	// Nanosecond precision makes conflicts unlikely. If they happen, O_EXCL
	// will let us know rather than mixing two sessions in one file.
	fp, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		logging.Logger.WithError(err).Warn("results: cannot create session log")
		return nil, err
	}
	return &File{Path: name, fp: fp}, nil
}

// SummaryPath returns the path of the summary written next to the log.
func (f *File) SummaryPath() string {
	return strings.TrimSuffix(f.Path, spec.LogFileExt) + spec.SummaryFileExt
}

// WriteSnapshot appends |s| to the log as one line.
func (f *File) WriteSnapshot(s *model.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fp == nil {
		return ErrClosed
	}
	_, err = f.fp.Write(data)
	if err != nil {
		return fmt.Errorf("results: write %s: %w", f.Path, err)
	}
	return nil
}

// WriteSummary writes |sum| to the summary file of this session.
func (f *File) WriteSummary(sum *model.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(f.SummaryPath(), data, 0644)
}

// Close closes the log. Writes after Close fail with ErrClosed.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fp == nil {
		return nil
	}
	err := f.fp.Close()
	f.fp = nil
	return err
}
