// Package warehouse is the data-warehouse boundary: log queries plus the
// anomaly, threat intel and report metadata tables.
package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// Table names inside the configured dataset.
const (
	TableLogs        = "logs"
	TableAnomalies   = "anomaly_predictions"
	TableThreatIntel = "threat_intel"
	TableReports     = "reports"
)

// MatchAll is the pass-all predicate.
const MatchAll = "TRUE"

// Row is a flat key-value warehouse row.
type Row = map[string]any

// ReportMetadata is recorded every time a report document is stored.
type ReportMetadata struct {
	ReportID    string
	Title       string
	GeneratedAt time.Time
	Sections    []string
	URI         string
}

// Warehouse is implemented by Postgres and by test fakes.
//
// QueryLogs takes an already sanitized predicate over the log schema
// (ip, timestamp, message) and returns rows newest first.
type Warehouse interface {
	QueryLogs(ctx context.Context, predicate string, limit int) ([]Row, error)
	QueryAnomalies(ctx context.Context, limit int) ([]Row, error)
	QueryThreatIntel(ctx context.Context, filter IntelFilter) ([]models.ThreatIntel, error)
	InsertAnomalies(ctx context.Context, anomalies []models.Anomaly) error
	InsertThreatIntel(ctx context.Context, items []models.ThreatIntel) error
	InsertReportMetadata(ctx context.Context, meta ReportMetadata) error
}

// IntelFilter narrows a threat intel query. Empty fields match everything.
type IntelFilter struct {
	Source   string
	Severity string
	Limit    int
}

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("warehouse not configured")

// Unavailable is used when no warehouse DSN is configured. Every call fails
// with ErrNotConfigured so read paths degrade and write paths report failure.
type Unavailable struct{}

func (Unavailable) QueryLogs(context.Context, string, int) ([]Row, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) QueryAnomalies(context.Context, int) ([]Row, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) QueryThreatIntel(context.Context, IntelFilter) ([]models.ThreatIntel, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) InsertAnomalies(context.Context, []models.Anomaly) error {
	return ErrNotConfigured
}

func (Unavailable) InsertThreatIntel(context.Context, []models.ThreatIntel) error {
	return ErrNotConfigured
}

func (Unavailable) InsertReportMetadata(context.Context, ReportMetadata) error {
	return ErrNotConfigured
}
