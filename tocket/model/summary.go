package model

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary describes a whole session. It is written next to the session log
// once the connection is closed.
type Summary struct {
	UUID              string    `json:"uuid"`
	Client            string    `json:"client"`
	Server            string    `json:"server"`
	CongestionControl string    `json:"congestion_control"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	DurationMS        int64     `json:"duration_ms"`
	BytesSent         int64     `json:"bytes_sent"`
	Samples           int       `json:"samples"`

	// RTT statistics are in microseconds, cwnd statistics in segments.
	RTTMean    float64 `json:"rtt_mean"`
	RTTMedian  float64 `json:"rtt_median"`
	CwndMean   float64 `json:"cwnd_mean"`
	CwndMedian float64 `json:"cwnd_median"`
	MinRTT     uint32  `json:"min_rtt"`

	// TotalPacketLoss is the lost counter of the latest sample. The kernel
	// reports segments currently considered lost, so samples are not summed.
	TotalPacketLoss uint64 `json:"total_packet_loss"`

	StopReason string `json:"stop_reason"`
}

// Stats accumulates the snapshots of a session. It is safe for concurrent
// use, so an abandoned consumer can never race with the final Fill.
type Stats struct {
	mu     sync.Mutex
	rtts   []float64
	cwnds  []float64
	minRTT uint32
	lost   uint64
}

// Add records |s|.
func (st *Stats) Add(s *Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rtts = append(st.rtts, float64(s.RTT))
	st.cwnds = append(st.cwnds, float64(s.Cwnd))
	if s.MinRTT != 0 && (st.minRTT == 0 || s.MinRTT < st.minRTT) {
		st.minRTT = s.MinRTT
	}
	st.lost = uint64(s.PacketLoss)
}

// Fill writes the statistics accumulated so far into |sum|.
func (st *Stats) Fill(sum *Summary) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sum.Samples = len(st.rtts)
	sum.MinRTT = st.minRTT
	sum.TotalPacketLoss = st.lost
	if len(st.rtts) == 0 {
		return
	}
	sum.RTTMean = stat.Mean(st.rtts, nil)
	sum.RTTMedian = median(st.rtts)
	sum.CwndMean = stat.Mean(st.cwnds, nil)
	sum.CwndMedian = median(st.cwnds)
}

// median returns the empirical median of |x| without reordering it.
func median(x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
