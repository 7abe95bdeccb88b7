package warehouse

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestLogQuery(t *testing.T) {
	table := pgx.Identifier{"cyber_data", TableLogs}.Sanitize()

	tests := []struct {
		name      string
		predicate string
		want      string
	}{
		{
			name:      "sanitized predicate",
			predicate: "LOWER(message) LIKE '%failed login%'",
			want:      `SELECT ip, timestamp, message FROM "cyber_data"."logs" WHERE LOWER(message) LIKE '%failed login%' ORDER BY timestamp DESC LIMIT $1`,
		},
		{
			name:      "empty predicate matches all",
			predicate: "   ",
			want:      `SELECT ip, timestamp, message FROM "cyber_data"."logs" WHERE TRUE ORDER BY timestamp DESC LIMIT $1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logQuery(table, tt.predicate))
		})
	}
}

func TestDecodeRawData(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{name: "object", raw: `{"cve":"CVE-2024-0001","score":9.8}`, want: map[string]any{"cve": "CVE-2024-0001", "score": 9.8}},
		{name: "empty", raw: "", want: map[string]any{}},
		{name: "invalid json", raw: `{not json`, want: map[string]any{"error": "Failed to parse raw_data"}},
		{name: "json array", raw: `[1,2]`, want: map[string]any{"error": "Failed to parse raw_data"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeRawData(tt.raw))
		})
	}
}

func TestDecodeRawDataDoesNotShareMarker(t *testing.T) {
	first := DecodeRawData("bad")
	first["error"] = "mutated"
	assert.Equal(t, "Failed to parse raw_data", DecodeRawData("bad")["error"])
}

func TestUnavailable(t *testing.T) {
	var w Warehouse = Unavailable{}
	ctx := context.Background()

	_, err := w.QueryLogs(ctx, MatchAll, 10)
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.ErrorIs(t, w.InsertAnomalies(ctx, nil), ErrNotConfigured)
	assert.ErrorIs(t, w.InsertReportMetadata(ctx, ReportMetadata{}), ErrNotConfigured)
}
