package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/apptscheduler/server/internal/observability"
	"github.com/hrygo/apptscheduler/server/stats"
)

// MetricsOverviewResponse represents the overview response of system metrics
// since process start.
type MetricsOverviewResponse struct {
	TotalRequests int64                                       `json:"total_requests"`
	SuccessRate   float64                                     `json:"success_rate"`
	AvgLatencyMs  int64                                       `json:"avg_latency_ms"`
	ErrorCount    int64                                       `json:"error_count"`
	Rejections    map[string]int64                            `json:"rejections"`
	Operations    map[string]*observability.OperationSnapshot `json:"operations"`
	Cache         map[string]interface{}                      `json:"cache"`
	Appointments  *stats.Stats                                `json:"appointments,omitempty"`
	UptimeSeconds int64                                       `json:"uptime_seconds"`
}

// GetMetricsOverview returns the system metrics overview
// GET /api/v1/system/metrics
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snapshot := s.Metrics.Snapshot()

	var totalDuration, executions int64
	for _, op := range snapshot.Operations {
		totalDuration += op.TotalDuration
		executions += op.ExecutionCount
	}
	var avg int64
	if executions > 0 {
		avg = totalDuration / executions
	}

	resp := MetricsOverviewResponse{
		TotalRequests: snapshot.RequestTotal,
		SuccessRate:   snapshot.SuccessRate(),
		AvgLatencyMs:  avg,
		ErrorCount:    snapshot.RequestFailed,
		Rejections:    snapshot.Rejections,
		Operations:    snapshot.Operations,
		Cache:         s.Store.CacheStats(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.Stats != nil {
		resp.Appointments = s.Stats.GetStats()
	}
	return c.JSON(http.StatusOK, resp)
}
