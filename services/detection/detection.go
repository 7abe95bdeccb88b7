// Package detection turns flagged network activity into persisted anomalies.
package detection

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/scanner"
)

const (
	// AnomalySource tags every anomaly produced here.
	AnomalySource      = "network-activity"
	defaultDescription = "Suspicious network traffic"
	defaultLimit       = 1000
)

// Batch is the outcome of one detection run. PersistErr is set when the
// anomalies were produced but could not be stored.
type Batch struct {
	Anomalies  []models.Anomaly
	PersistErr error
}

// Service correlates scanner indicators into anomalies.
type Service struct {
	wh       warehouse.Warehouse
	scanner  *scanner.Scanner
	severity models.Severity
	logger   zerolog.Logger
}

// NewService returns a detection service that grades every anomaly with severity.
func NewService(wh warehouse.Warehouse, sc *scanner.Scanner, severity models.Severity, log zerolog.Logger) *Service {
	if severity == "" {
		severity = models.SeverityHigh
	}
	return &Service{wh: wh, scanner: sc, severity: severity, logger: log}
}

// DetectAnomalies scans the newest limit log rows. A warehouse read failure is
// returned as an error; a write failure is reported in Batch.PersistErr.
func (s *Service) DetectAnomalies(ctx context.Context, limit int) (Batch, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.wh.QueryLogs(ctx, warehouse.MatchAll, limit)
	if err != nil {
		return Batch{}, fmt.Errorf("query logs: %w", err)
	}

	indicators := s.scanner.ScanNetworkActivity(models.LogEntriesFromRows(rows))
	anomalies, err := Correlate(indicators, s.severity)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{Anomalies: anomalies}
	if len(anomalies) > 0 {
		if err := s.wh.InsertAnomalies(ctx, anomalies); err != nil {
			s.logger.Warn().Err(err).Int("anomalies", len(anomalies)).Msg("Failed to persist anomalies")
			batch.PersistErr = err
		}
	}

	s.logger.Info().Int("logs", len(rows)).Int("anomalies", len(anomalies)).Msg("Detection completed")
	return batch, nil
}

// Correlate maps indicators 1:1 onto anomalies numbered from anomaly-001.
func Correlate(indicators []scanner.Indicator, severity models.Severity) ([]models.Anomaly, error) {
	anomalies := make([]models.Anomaly, 0, len(indicators))
	for i, ind := range indicators {
		description := ind.Note
		if description == "" {
			description = defaultDescription
		}
		a, err := models.NewAnomaly(fmt.Sprintf("anomaly-%03d", i+1), AnomalySource, severity, ind.Timestamp, description, ind.IP)
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, nil
}
