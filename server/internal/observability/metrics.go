package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects request and outcome counters for the scheduling API.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	operations map[string]*OperationMetrics
	// rejections counts failures by error code.
	rejections map[string]int64
}

// OperationMetrics represents metrics for a single API operation.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		operations: make(map[string]*OperationMetrics),
		rejections: make(map[string]int64),
	}
}

// Record records one finished request. An empty code means success.
func (m *Metrics) Record(operation string, duration time.Duration, code string) {
	m.requestTotal.Add(1)
	om := m.getOperationMetrics(operation)
	om.executionCount.Add(1)
	om.totalDuration.Add(duration.Milliseconds())
	if code == "" {
		return
	}

	m.requestFailed.Add(1)
	om.errorCount.Add(1)
	m.mu.Lock()
	m.rejections[code]++
	m.mu.Unlock()
}

func (m *Metrics) getOperationMetrics(operation string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[operation]
	if !ok {
		om = &OperationMetrics{}
		m.operations[operation] = om
	}
	return om
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.rejections = make(map[string]int64)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make(map[string]*OperationSnapshot, len(m.operations))
	for name, om := range m.operations {
		count := om.executionCount.Load()
		snap := &OperationSnapshot{
			ExecutionCount: count,
			TotalDuration:  om.totalDuration.Load(),
			ErrorCount:     om.errorCount.Load(),
		}
		if count > 0 {
			snap.AverageDuration = snap.TotalDuration / count
		}
		ops[name] = snap
	}
	rejections := make(map[string]int64, len(m.rejections))
	for code, n := range m.rejections {
		rejections[code] = n
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Operations:    ops,
		Rejections:    rejections,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                         `json:"requestTotal"`
	RequestFailed int64                         `json:"requestFailed"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
	Rejections    map[string]int64              `json:"rejections"`
}

// OperationSnapshot represents metrics for a single operation.
type OperationSnapshot struct {
	ExecutionCount  int64 `json:"executionCount"`
	TotalDuration   int64 `json:"totalDurationMs"`
	ErrorCount      int64 `json:"errorCount"`
	AverageDuration int64 `json:"averageDurationMs"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}

// OperationNames returns the recorded operation names in sorted order.
func (s *MetricsSnapshot) OperationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for name := range s.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
