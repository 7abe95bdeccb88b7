package scanner

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
)

func TestIsExternal(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"8.8.8.8", true},
		{"185.220.101.4", true},
		{"2606:4700::1111", true},
		{"::ffff:8.8.4.4", true},
		{"10.0.0.5", false},
		{"172.16.3.4", false},
		{"192.168.1.1", false},
		{"127.0.0.1", false},
		{"169.254.0.1", false},
		{"100.64.1.1", false},
		{"203.0.113.9", false},
		{"224.0.0.1", false},
		{"0.0.0.0", false},
		{"fd00::1", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExternal(tt.ip))
		})
	}
}

func TestScanNetworkActivity(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seen := time.Date(2026, 5, 1, 7, 59, 0, 0, time.UTC)
	s := New(controlplanetest.New(), logger.NewTestLogger())
	s.now = func() time.Time { return now }

	got := s.ScanNetworkActivity([]models.LogEntry{
		{IP: "10.1.1.1", Timestamp: seen, Message: "internal"},
		{IP: "8.8.8.8", Timestamp: seen, Message: "dns egress"},
		{IP: "45.33.32.156", Message: "no timestamp"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, Indicator{IP: "8.8.8.8", Timestamp: seen, Note: PublicTrafficNote, Message: "dns egress"}, got[0])
	assert.Equal(t, now, got[1].Timestamp)
}

func TestListAssets(t *testing.T) {
	cp := controlplanetest.New()
	cp.Assets = []models.Asset{{Name: "nodes/web-frontend-1", AssetType: "Node"}}
	s := New(cp, logger.NewTestLogger())

	assets, err := s.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cp.Assets, assets)

	cp.FailOn(controlplane.OpListAssets, errors.New("forbidden"))
	_, err = s.ListAssets(context.Background())
	assert.Error(t, err)
}
