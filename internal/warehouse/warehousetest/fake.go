// Package warehousetest provides an in-memory warehouse for tests.
package warehousetest

import (
	"context"
	"strings"
	"sync"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
)

// Fake records every call. Logs are returned for any predicate unless
// LogsFunc is set. Setting an *Err field makes the matching call fail.
type Fake struct {
	mu sync.Mutex

	Logs        []warehouse.Row
	LogsFunc    func(predicate string) []warehouse.Row
	Anomalies   []models.Anomaly
	ThreatIntel []models.ThreatIntel
	Reports     []warehouse.ReportMetadata
	Predicates  []string

	QueryErr  error
	InsertErr error
	ReportErr error
}

var _ warehouse.Warehouse = (*Fake)(nil)

func (f *Fake) QueryLogs(_ context.Context, predicate string, limit int) ([]warehouse.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Predicates = append(f.Predicates, predicate)
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}

	rows := f.Logs
	if f.LogsFunc != nil {
		rows = f.LogsFunc(predicate)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]warehouse.Row, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *Fake) QueryAnomalies(_ context.Context, limit int) ([]warehouse.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	var rows []warehouse.Row
	for _, a := range f.Anomalies {
		if limit > 0 && len(rows) >= limit {
			break
		}
		rows = append(rows, warehouse.Row{
			"id":              a.ID,
			"source":          a.Source,
			"severity":        string(a.Severity),
			"timestamp":       a.Timestamp,
			"description":     a.Description,
			"affected_system": a.AffectedSystem,
		})
	}
	return rows, nil
}

func (f *Fake) QueryThreatIntel(_ context.Context, filter warehouse.IntelFilter) ([]models.ThreatIntel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	var out []models.ThreatIntel
	for _, item := range f.ThreatIntel {
		if filter.Source != "" && item.Source != filter.Source {
			continue
		}
		if filter.Severity != "" && !strings.EqualFold(item.Severity, filter.Severity) {
			continue
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *Fake) InsertAnomalies(_ context.Context, anomalies []models.Anomaly) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.Anomalies = append(f.Anomalies, anomalies...)
	return nil
}

func (f *Fake) InsertThreatIntel(_ context.Context, items []models.ThreatIntel) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.ThreatIntel = append(f.ThreatIntel, items...)
	return nil
}

func (f *Fake) InsertReportMetadata(_ context.Context, meta warehouse.ReportMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReportErr != nil {
		return f.ReportErr
	}
	f.Reports = append(f.Reports, meta)
	return nil
}

// LastPredicate returns the most recent log predicate, or "" when none was issued.
func (f *Fake) LastPredicate() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Predicates) == 0 {
		return ""
	}
	return f.Predicates[len(f.Predicates)-1]
}
