package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide relay counter set. The telemetry package exports
// the same counters to Prometheus.
var Stats = &stats{}

type stats struct {
	PacketsSent  atomic.Int64 // packets handed to the radio and acknowledged
	PacketsRecv  atomic.Int64 // valid packets read from the radio
	PacketsBad   atomic.Int64 // radio frames that failed validation
	BytesSent    atomic.Int64 // radio bytes out
	BytesRecv    atomic.Int64 // radio bytes in
	MessagesIn   atomic.Int64 // client messages accepted
	MessagesOut  atomic.Int64 // messages delivered to clients or the server
	Retries      atomic.Int64 // retransmissions from the retry sweep
	Unreachable  atomic.Int64 // messages given up on
	Broadcasts   atomic.Int64 // discovery beacons sent
	SendFailures atomic.Int64 // radio or socket sends that failed
}

func (s *stats) AddSent(n int) {
	s.PacketsSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.PacketsRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *stats) AddBad()         { s.PacketsBad.Add(1) }
func (s *stats) AddMessageIn()   { s.MessagesIn.Add(1) }
func (s *stats) AddMessageOut()  { s.MessagesOut.Add(1) }
func (s *stats) AddRetry()       { s.Retries.Add(1) }
func (s *stats) AddUnreachable() { s.Unreachable.Add(1) }
func (s *stats) AddBroadcast()   { s.Broadcasts.Add(1) }
func (s *stats) AddFailure()     { s.SendFailures.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs relay traffic every
// interval, skipping quiet periods. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				d := cur.sub(prev)
				if d.pktIn > 0 || d.pktOut > 0 || d.msgIn > 0 || d.msgOut > 0 {
					pterm.DefaultLogger.Info(formatStats(float64(d.bytesIn)/secs, float64(d.bytesOut)/secs, d))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

type snapshot struct {
	bytesIn, bytesOut int64
	pktIn, pktOut     int64
	msgIn, msgOut     int64
	retries, unreach  int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		bytesIn:  s.BytesRecv.Load(),
		bytesOut: s.BytesSent.Load(),
		pktIn:    s.PacketsRecv.Load(),
		pktOut:   s.PacketsSent.Load(),
		msgIn:    s.MessagesIn.Load(),
		msgOut:   s.MessagesOut.Load(),
		retries:  s.Retries.Load(),
		unreach:  s.Unreachable.Load(),
	}
}

func (a snapshot) sub(b snapshot) snapshot {
	return snapshot{
		bytesIn:  a.bytesIn - b.bytesIn,
		bytesOut: a.bytesOut - b.bytesOut,
		pktIn:    a.pktIn - b.pktIn,
		pktOut:   a.pktOut - b.pktOut,
		msgIn:    a.msgIn - b.msgIn,
		msgOut:   a.msgOut - b.msgOut,
		retries:  a.retries - b.retries,
		unreach:  a.unreach - b.unreach,
	}
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB"}

// formatBytes formats a byte count into a fixed-width (8 chars) string,
// for example "99.0   B" or " 1.5 KiB".
func formatBytes(b float64) string {
	unitIdx := 0
	for b > 99 && unitIdx < len(byteUnits)-1 {
		b /= 1024
		unitIdx++
	}
	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders one reporter line.
func formatStats(inS, outS float64, d snapshot) string {
	return fmt.Sprintf("Radio: %s/s in, %s/s out (%d↓ %d↑ pkts) | Msg: %d↓ %d↑ | Retry: %d | Unreachable: %d",
		formatBytes(inS),
		formatBytes(outS),
		d.pktIn, d.pktOut,
		d.msgIn, d.msgOut,
		d.retries, d.unreach,
	)
}
