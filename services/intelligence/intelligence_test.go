package intelligence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/feeds"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/pipeline"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse/warehousetest"
)

type staticSource struct {
	name  string
	items []models.ThreatIntel
	err   error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(context.Context) ([]models.ThreatIntel, error) {
	return s.items, s.err
}

func intel(source, id string) models.ThreatIntel {
	return models.ThreatIntel{
		Source:    source,
		ID:        id,
		Summary:   "summary " + id,
		RawData:   map[string]any{"id": id},
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAggregateFeeds(t *testing.T) {
	reddit := staticSource{name: feeds.SourceReddit, items: []models.ThreatIntel{intel("reddit", "t3_a"), intel("reddit", "t3_b")}}
	nvd := staticSource{name: feeds.SourceCVE, items: []models.ThreatIntel{intel("cve", "CVE-2024-0001")}}
	down := staticSource{name: feeds.SourceCVE, err: errors.New("503 from nvd")}

	tests := []struct {
		name         string
		sources      []feeds.Source
		insertErr    error
		wantIDs      []string
		wantFailed   []string
		wantPersist  bool
		wantInserted int
	}{
		{
			name:         "both feeds",
			sources:      []feeds.Source{reddit, nvd},
			wantIDs:      []string{"t3_a", "t3_b", "CVE-2024-0001"},
			wantInserted: 3,
		},
		{
			name:         "one feed down",
			sources:      []feeds.Source{reddit, down},
			wantIDs:      []string{"t3_a", "t3_b"},
			wantFailed:   []string{feeds.SourceCVE},
			wantInserted: 2,
		},
		{
			name:        "persistence failure",
			sources:     []feeds.Source{nvd},
			insertErr:   errors.New("warehouse down"),
			wantIDs:     []string{"CVE-2024-0001"},
			wantPersist: true,
		},
		{
			name:       "nothing fetched",
			sources:    []feeds.Source{down},
			wantFailed: []string{feeds.SourceCVE},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := &warehousetest.Fake{InsertErr: tt.insertErr}
			svc := NewService(tt.sources, wh, &messaging.Recorder{}, nil, "cyber_data", "us-central1", logger.NewTestLogger())

			agg := svc.AggregateFeeds(context.Background())

			ids := make([]string, 0, len(agg.Items))
			for _, item := range agg.Items {
				ids = append(ids, item.ID)
			}
			if len(tt.wantIDs) == 0 {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.wantIDs, ids)
			}
			for _, name := range tt.wantFailed {
				assert.Contains(t, agg.FeedErrors, name)
			}
			assert.Len(t, agg.FeedErrors, len(tt.wantFailed))
			assert.Equal(t, tt.wantPersist, agg.PersistErr != nil)
			assert.Len(t, wh.ThreatIntel, tt.wantInserted)
		})
	}
}

func TestTrainPredictionModel(t *testing.T) {
	rec := &messaging.Recorder{}
	svc := NewService(nil, &warehousetest.Fake{}, rec, nil, "cyber_data", "us-central1", logger.NewTestLogger())
	svc.newID = func() string { return "42" }

	msg, err := svc.TrainPredictionModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Triggered training job train-42", msg)

	require.Len(t, rec.Submitted, 1)
	assert.Equal(t, messaging.SubjectTrainJob, rec.Submitted[0].Subject)
	var req pipeline.TrainRequest
	require.NoError(t, json.Unmarshal(rec.Submitted[0].Data, &req))
	assert.Equal(t, "cyber_data", req.Dataset)
	assert.Equal(t, "threat_intel", req.Table)

	rec.Err = errors.New("no responders")
	_, err = svc.TrainPredictionModel(context.Background())
	var callErr *models.ExternalCallError
	assert.ErrorAs(t, err, &callErr)
}
