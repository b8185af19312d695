// Package model contains the data that tocket writes to its session logs.
package model

import (
	"time"

	"github.com/m-lab/tcp-info/inetdiag"
	"github.com/m-lab/tcp-info/tcp"
)

// Snapshot is one sample of the kernel's view of a connection. Each
// Snapshot is written as one line of the session log.
type Snapshot struct {
	// TimestampMS is when the sample was taken, in milliseconds since epoch.
	TimestampMS int64 `json:"timestamp_ms"`

	// UUID identifies the session.
	UUID string `json:"uuid"`

	// ElapsedUS is the time since the session started, in microseconds.
	ElapsedUS int64 `json:"elapsed_us"`

	// Cwnd is the congestion window in segments.
	Cwnd uint32 `json:"cwnd"`

	// RTT is the smoothed RTT in microseconds.
	RTT uint32 `json:"rtt"`

	// RTTVar is the RTT variance in microseconds.
	RTTVar uint32 `json:"rtt_var"`

	// MinRTT is the minimum RTT observed by the kernel, in microseconds.
	MinRTT uint32 `json:"min_rtt"`

	SndMSS      uint32 `json:"snd_mss"`
	CwndBytes   uint64 `json:"cwnd_bytes"`
	PacketLoss  uint32 `json:"packet_loss"`
	Retransmits uint32 `json:"retransmits"`
	BytesAcked  uint64 `json:"bytes_acked"`

	// BBR is only present while the connection uses BBR.
	BBR *BBRInfo `json:"bbr,omitempty"`
}

// BBRInfo contains the BBR model of the path.
type BBRInfo struct {
	// BW is the max-bandwidth estimate in bytes per second.
	BW int64 `json:"bw"`

	// MinRTT is BBR's min-rtt in microseconds.
	MinRTT uint32 `json:"min_rtt"`

	PacingGain uint32 `json:"pacing_gain"`
	CwndGain   uint32 `json:"cwnd_gain"`
}

// NewSnapshot converts the kernel structures sampled at |now| into a
// Snapshot of session |uuid|, which started at |start|.
func NewSnapshot(uuid string, start, now time.Time, bbrinfo inetdiag.BBRInfo, info tcp.LinuxTCPInfo) Snapshot {
	s := Snapshot{
		TimestampMS: now.UnixNano() / int64(time.Millisecond),
		UUID:        uuid,
		ElapsedUS:   int64(now.Sub(start) / time.Microsecond),
		Cwnd:        info.SndCwnd,
		RTT:         info.RTT,
		RTTVar:      info.RTTVar,
		MinRTT:      info.MinRTT,
		SndMSS:      info.SndMSS,
		CwndBytes:   uint64(info.SndCwnd) * uint64(info.SndMSS),
		PacketLoss:  info.Lost,
		Retransmits: info.TotalRetrans,
	}
	if info.BytesAcked > 0 {
		s.BytesAcked = uint64(info.BytesAcked)
	}
	if bbrinfo != (inetdiag.BBRInfo{}) {
		s.BBR = &BBRInfo{
			BW:         bbrinfo.BW,
			MinRTT:     bbrinfo.MinRTT,
			PacingGain: bbrinfo.PacingGain,
			CwndGain:   bbrinfo.CwndGain,
		}
	}
	return s
}
