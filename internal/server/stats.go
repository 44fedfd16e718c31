package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// Stats holds server wide counters
type Stats struct {
	totalSessions  atomic.Int64
	activeSessions atomic.Int64
	downloads      atomic.Int64
	bytesServed    atomic.Int64
}

// StatsSnapshot is a point in time copy of Stats
type StatsSnapshot struct {
	TotalSessions  int64
	ActiveSessions int64
	Downloads      int64
	BytesServed    int64
}

// Snapshot copies the current counter values
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalSessions:  s.totalSessions.Load(),
		ActiveSessions: s.activeSessions.Load(),
		Downloads:      s.downloads.Load(),
		BytesServed:    s.bytesServed.Load(),
	}
}

func (s *Stats) sessionStarted() {
	s.totalSessions.Add(1)
	s.activeSessions.Add(1)
}

func (s *Stats) sessionEnded() {
	s.activeSessions.Add(-1)
}

func (s *Stats) downloadServed(bytes int64) {
	s.downloads.Add(1)
	s.bytesServed.Add(bytes)
}

// statLoop periodically logs the counters with the host memory usage
func (s *Server) statLoop(ctx context.Context, interval time.Duration) {
	s.log.Debug().Dur("interval", interval).Msg("stat loop start")
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("stat loop stop")
			return
		case <-t.C:
			snap := s.stats.Snapshot()
			ev := s.log.Info().
				Int64("total_sessions", snap.TotalSessions).
				Int64("active_sessions", snap.ActiveSessions).
				Int64("downloads", snap.Downloads).
				Int64("bytes_served", snap.BytesServed)
			if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
				ev = ev.Float64("mem_used_percent", vm.UsedPercent)
			}
			ev.Msg("server stats")
		}
	}
}
