package detection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane/controlplanetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse/warehousetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/scanner"
)

var seen = time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)

func logRow(ip, msg string) warehouse.Row {
	return warehouse.Row{"ip": ip, "timestamp": seen, "message": msg}
}

func newService(wh warehouse.Warehouse, severity models.Severity) *Service {
	return NewService(wh, scanner.New(controlplanetest.New(), logger.NewTestLogger()), severity, logger.NewTestLogger())
}

func TestDetectAnomalies(t *testing.T) {
	tests := []struct {
		name      string
		logs      []warehouse.Row
		wantIPs   []string
		severity  models.Severity
		wantLevel models.Severity
	}{
		{
			name: "one anomaly per external indicator",
			logs: []warehouse.Row{
				logRow("8.8.8.8", "egress"),
				logRow("10.0.0.4", "internal"),
				logRow("45.33.32.156", "scan"),
				logRow("1.1.1.1", "egress"),
			},
			wantIPs:   []string{"8.8.8.8", "45.33.32.156", "1.1.1.1"},
			wantLevel: models.SeverityHigh,
		},
		{
			name:      "configured severity",
			logs:      []warehouse.Row{logRow("8.8.8.8", "egress")},
			wantIPs:   []string{"8.8.8.8"},
			severity:  models.SeverityMedium,
			wantLevel: models.SeverityMedium,
		},
		{
			name: "nothing flagged",
			logs: []warehouse.Row{logRow("192.168.0.2", "lan")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := &warehousetest.Fake{Logs: tt.logs}
			batch, err := newService(wh, tt.severity).DetectAnomalies(context.Background(), 50)
			require.NoError(t, err)
			require.NoError(t, batch.PersistErr)

			require.Len(t, batch.Anomalies, len(tt.wantIPs))
			for i, a := range batch.Anomalies {
				assert.Equal(t, fmt.Sprintf("anomaly-%03d", i+1), a.ID)
				assert.Equal(t, "network-activity", a.Source)
				assert.Equal(t, tt.wantIPs[i], a.AffectedSystem)
				assert.Equal(t, tt.wantLevel, a.Severity)
				assert.Equal(t, seen, a.Timestamp)
			}
			if len(tt.wantIPs) > 0 {
				assert.Equal(t, batch.Anomalies, wh.Anomalies)
			} else {
				assert.Empty(t, wh.Anomalies)
			}
			assert.Equal(t, []string{"TRUE"}, wh.Predicates)
		})
	}
}

func TestDetectAnomaliesPersistFailure(t *testing.T) {
	wh := &warehousetest.Fake{Logs: []warehouse.Row{logRow("8.8.8.8", "egress")}, InsertErr: errors.New("quota exceeded")}
	batch, err := newService(wh, "").DetectAnomalies(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, batch.Anomalies, 1)
	assert.EqualError(t, batch.PersistErr, "quota exceeded")
}

func TestDetectAnomaliesQueryFailure(t *testing.T) {
	wh := &warehousetest.Fake{QueryErr: errors.New("connection refused")}
	_, err := newService(wh, "").DetectAnomalies(context.Background(), 10)
	assert.ErrorContains(t, err, "connection refused")
}

func TestCorrelateDefaultDescription(t *testing.T) {
	got, err := Correlate([]scanner.Indicator{{IP: "8.8.8.8", Timestamp: seen}}, models.SeverityLow)
	require.NoError(t, err)
	assert.Equal(t, "Suspicious network traffic", got[0].Description)
}
