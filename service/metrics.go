package service

import (
	"sync"
	"time"

	"voting-ledger/models"
	"voting-ledger/program"
)

// MetricsCollector tracks submissions per instruction
type MetricsCollector struct {
	mu        sync.RWMutex
	startTime time.Time
	stats     map[models.Instruction]*instructionStats
}

type instructionStats struct {
	submitted  int
	inFlight   int
	committed  int
	rejected   int
	rejections map[program.Code]int
	totalTime  time.Duration
	lastSeen   time.Time
}

// InstructionMetrics contains timing and outcome counts for one instruction
type InstructionMetrics struct {
	Submitted      int            `json:"submitted"`
	InFlight       int            `json:"in_flight"`
	Committed      int            `json:"committed"`
	Rejected       int            `json:"rejected"`
	Rejections     map[string]int `json:"rejections,omitempty"`
	ProcessingTime int64          `json:"processing_time_ms"`
	LastSubmitted  time.Time      `json:"last_submitted"`
}

// MetricsResponse provides the metrics for all instructions
type MetricsResponse struct {
	StartTime    time.Time                     `json:"start_time"`
	Instructions map[string]InstructionMetrics `json:"instructions"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime: time.Now(),
		stats:     make(map[models.Instruction]*instructionStats),
	}
}

func (mc *MetricsCollector) statsLocked(ins models.Instruction) *instructionStats {
	s, ok := mc.stats[ins]
	if !ok {
		s = &instructionStats{rejections: make(map[program.Code]int)}
		mc.stats[ins] = s
	}
	return s
}

// RecordSubmitStart marks the start of a submission
func (mc *MetricsCollector) RecordSubmitStart(ins models.Instruction) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	s := mc.statsLocked(ins)
	s.submitted++
	s.inFlight++
	s.lastSeen = time.Now()
}

// RecordSubmitEnd marks the end of a submission. An empty code means the
// transaction committed.
func (mc *MetricsCollector) RecordSubmitEnd(ins models.Instruction, code program.Code, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	s := mc.statsLocked(ins)
	s.inFlight--
	s.totalTime += duration
	if code == "" {
		s.committed++
		return
	}
	s.rejected++
	s.rejections[code]++
}

// GetMetrics returns a snapshot of all instruction metrics
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	resp := MetricsResponse{
		StartTime:    mc.startTime,
		Instructions: make(map[string]InstructionMetrics, len(mc.stats)),
	}
	for ins, s := range mc.stats {
		m := InstructionMetrics{
			Submitted:      s.submitted,
			InFlight:       s.inFlight,
			Committed:      s.committed,
			Rejected:       s.rejected,
			ProcessingTime: s.totalTime.Milliseconds(),
			LastSubmitted:  s.lastSeen,
		}
		if len(s.rejections) > 0 {
			m.Rejections = make(map[string]int, len(s.rejections))
			for code, n := range s.rejections {
				m.Rejections[string(code)] = n
			}
		}
		resp.Instructions[string(ins)] = m
	}
	return resp
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.startTime = time.Now()
	mc.stats = make(map[models.Instruction]*instructionStats)
}
