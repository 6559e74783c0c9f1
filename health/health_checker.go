// Package health provides health checking functionality for the lab reference API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/labref-api/interfaces"
)

// Age thresholds of the loaded snapshot
const (
	staleAfter    = 48 * time.Hour
	degradedAfter = 24 * time.Hour
	stuckAfter    = 6 * time.Hour
)

// NextRunner reports when the next reload is scheduled
type NextRunner interface {
	NextRun() time.Time
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	schedule  NextRunner
}

// NewHealthChecker creates a new health checker with injected dependencies.
// schedule may be nil when no reload job runs.
func NewHealthChecker(dataStore interfaces.DataStore, schedule NextRunner) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		schedule:  schedule,
	}
}

// HealthCheck returns HTTP-specific health data
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	snapshot := h.dataStore.GetSnapshot()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := time.Since(lastUpdate)
	studies := 0
	if snapshot.Registry != nil {
		studies = len(snapshot.Registry.ListStudies())
	}
	report := h.dataStore.GetDataQualityReport()
	issues := len(report.TestsWithoutNameRU) + len(report.StudyTestsMissing) + len(report.UnreadableDocuments)

	switch {
	case snapshot.Registry == nil || len(snapshot.Catalogs) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > staleAfter:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > degradedAfter:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > stuckAfter:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case len(report.UnreadableDocuments) > 0:
		// Serving, but part of the reference set is missing
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	// Build response data (no system metrics, only data-related fields)
	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"next_update":    h.CalculateNextUpdate().Format(time.RFC3339),
		"location":       snapshot.Location,
		"catalogs":       len(snapshot.Catalogs),
		"biomaterials":   len(snapshot.Biomaterials),
		"studies":        studies,
		"quality_issues": issues,
		"is_updating":    isUpdating,
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload time. Without a
// schedule it assumes the default six-hour cadence from the last update.
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	if h.schedule != nil {
		if next := h.schedule.NextRun(); !next.IsZero() {
			return next
		}
	}

	now := time.Now()
	next := h.dataStore.GetLastUpdated().Add(6 * time.Hour)
	if next.Before(now) {
		return now
	}
	return next
}
