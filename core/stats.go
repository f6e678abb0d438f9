package core

import (
	"sync/atomic"
	"time"
)

type LoadStats struct {
	requested int64
	reused    int64
	loaded    int64
	failed    int64
}

func NewLoadStats() *LoadStats {
	return &LoadStats{}
}

func (s *LoadStats) IncrementRequested() {
	atomic.AddInt64(&s.requested, 1)
}

func (s *LoadStats) IncrementReused() {
	atomic.AddInt64(&s.reused, 1)
}

func (s *LoadStats) IncrementLoaded() {
	atomic.AddInt64(&s.loaded, 1)
}

func (s *LoadStats) IncrementFailed() {
	atomic.AddInt64(&s.failed, 1)
}

func (s *LoadStats) GetRequested() int64 {
	return atomic.LoadInt64(&s.requested)
}

func (s *LoadStats) GetReused() int64 {
	return atomic.LoadInt64(&s.reused)
}

func (s *LoadStats) GetLoaded() int64 {
	return atomic.LoadInt64(&s.loaded)
}

func (s *LoadStats) GetFailed() int64 {
	return atomic.LoadInt64(&s.failed)
}

// GetPending counts requests the host has not settled yet.
func (s *LoadStats) GetPending() int64 {
	return s.GetRequested() - s.GetLoaded() - s.GetFailed()
}

func (s *LoadStats) GetLPS(elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(s.GetLoaded()) / seconds
}
