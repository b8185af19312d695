// Package spec contains the constants and defaults of the tocket protocol.
package spec

import "time"

// DefaultAddr is where the server listens for clients.
const DefaultAddr = ":9393"

// DefaultDuration is how long a session streams data to its client.
const DefaultDuration = 10 * time.Second

// DefaultSamplingInterval is the interval between two TCP_INFO samples.
const DefaultSamplingInterval = 100 * time.Millisecond

// MinSamplingInterval is the shortest sampling interval we accept. Shorter
// intervals make the log larger without making the kernel update faster.
const MinSamplingInterval = 10 * time.Millisecond

// DefaultGracePeriod bounds how long a session waits for its sender and
// sampler to stop once the session is over.
const DefaultGracePeriod = 2 * time.Second

// DefaultMaxSampleErrors is the number of consecutive failed samples after
// which the sampler gives up on a connection.
const DefaultMaxSampleErrors = 3

// TerminationPollInterval is how often a session checks the live store for
// an operator request to stop early.
const TerminationPollInterval = 100 * time.Millisecond

// FillerSize is the size of each write of filler data.
const FillerSize = 8192

// FillerByte is the value every filler byte has.
const FillerByte = 0x01

// DefaultLogDir is where session logs are written.
const DefaultLogDir = ".logs.tocket"

// LogFilePrefix, LogFileExt and SummaryFileExt compose the session log
// file names: <prefix><timestamp><ext>.
const (
	LogFilePrefix  = "run_"
	LogFileExt     = ".jsonl"
	SummaryFileExt = ".summary.json"
)

// LogTimestampLayout formats the UTC session start time in log file names.
// Nanoseconds keep names distinct for back to back sessions.
const LogTimestampLayout = "2006-01-02_15-04-05.000000000"

// RTTMarkerPrefix and RTTMarkerSuffix surround the big endian RTT, in
// microseconds, that is stamped into the payload when RTT encoding is on.
var (
	RTTMarkerPrefix = []byte{0xAA, 0xAB, 0xAC}
	RTTMarkerSuffix = []byte{0xBA, 0xBB, 0xBC}
)

// RTTMarkerSize is the size of one encoded RTT marker.
const RTTMarkerSize = 10
