package investigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane/controlplanetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse/warehousetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/scanner"
)

var (
	t0     = time.Date(2026, 7, 4, 11, 12, 0, 0, time.UTC)
	assets = []models.Asset{
		{Name: "nodes/web-frontend-1", AssetType: "Node"},
		{Name: "nodes/db-primary", AssetType: "Node"},
		{Name: "namespaces/payments", AssetType: "Namespace"},
	}
)

func TestDefaultReconstructor(t *testing.T) {
	tests := []struct {
		name      string
		entries   []models.LogEntry
		wantTL    int
		wantPath  []string
		wantComp  []string
		wantExfil bool
		wantRisk  float64
	}{
		{
			name: "external intrusion with exfiltration",
			entries: []models.LogEntry{
				{IP: "185.220.101.4", Timestamp: t0.Add(3 * time.Minute), Message: "bulk upload from db-primary to remote host"},
				{IP: "10.0.0.2", Timestamp: t0.Add(time.Minute), Message: "healthcheck ok"},
				{IP: "185.220.101.4", Timestamp: t0, Message: "ssh session opened on web-frontend-1"},
			},
			wantTL:    2,
			wantPath:  []string{"external:185.220.101.4", "web-frontend-1", "db-primary"},
			wantComp:  []string{"web-frontend-1", "db-primary"},
			wantExfil: true,
			wantRisk:  6.5,
		},
		{
			name:     "internal only",
			entries:  []models.LogEntry{{IP: "10.0.0.2", Timestamp: t0, Message: "cron run"}},
			wantPath: []string{},
			wantComp: []string{},
		},
		{
			name: "many origins clamp",
			entries: func() []models.LogEntry {
				var out []models.LogEntry
				for _, ip := range []string{"1.1.1.1", "8.8.8.8", "9.9.9.9", "45.33.32.156", "185.220.101.4", "185.220.101.5", "185.220.101.6", "185.220.101.7", "185.220.101.8"} {
					out = append(out, models.LogEntry{IP: ip, Timestamp: t0, Message: "exfil from web-frontend-1 db-primary payments"})
				}
				return out
			}(),
			wantTL:    9,
			wantPath:  []string{"external:1.1.1.1", "web-frontend-1", "db-primary", "payments"},
			wantComp:  []string{"web-frontend-1", "db-primary", "payments"},
			wantExfil: true,
			wantRisk:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultReconstructor{}.Reconstruct(tt.entries, assets, t0)
			require.NoError(t, err)
			assert.Len(t, got.Timeline, tt.wantTL)
			assert.Equal(t, tt.wantPath, got.AttackPath)
			assert.Equal(t, tt.wantComp, got.CompromisedResources)
			assert.Equal(t, tt.wantExfil, got.DataExfiltrated)
			assert.InDelta(t, tt.wantRisk, got.EstimatedRiskScore, 0.001)
			assert.Equal(t, t0, got.InvestigationTime)
		})
	}
}

func TestTimelineIsChronological(t *testing.T) {
	entries := []models.LogEntry{
		{IP: "8.8.8.8", Timestamp: t0.Add(2 * time.Hour), Message: "third"},
		{IP: "8.8.8.8", Timestamp: t0, Message: "first"},
		{IP: "8.8.8.8", Timestamp: t0.Add(time.Hour), Message: "second"},
	}
	got, err := DefaultReconstructor{}.Reconstruct(entries, nil, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026-07-04T11:12:00Z - 8.8.8.8 - first",
		"2026-07-04T12:12:00Z - 8.8.8.8 - second",
		"2026-07-04T13:12:00Z - 8.8.8.8 - third",
	}, got.Timeline)
}

func TestInvestigate(t *testing.T) {
	wh := &warehousetest.Fake{Logs: []warehouse.Row{
		{"ip": "185.220.101.4", "timestamp": t0, "message": "login on web-frontend-1"},
	}}
	cp := controlplanetest.New()
	cp.Assets = assets
	svc := NewService(wh, scanner.New(cp, logger.NewTestLogger()), nil, logger.NewTestLogger())
	svc.now = func() time.Time { return t0 }

	got, err := svc.Investigate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"web-frontend-1"}, got.CompromisedResources)

	cp.FailOn(controlplane.OpListAssets, errors.New("forbidden"))
	got, err = svc.Investigate(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got.CompromisedResources)
	assert.Len(t, got.Timeline, 1)

	wh.QueryErr = errors.New("warehouse down")
	_, err = svc.Investigate(context.Background(), 10)
	assert.Error(t, err)
}
