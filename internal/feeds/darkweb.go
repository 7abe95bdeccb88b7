package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// DarkWeb reads chatter entries from a dark-web monitoring API that answers
// {"data": [{"id", "title", "timestamp"}]}.
type DarkWeb struct {
	*fetcher
	url   string
	limit int
	now   func() time.Time
}

func (d *DarkWeb) Name() string { return SourceDarkWeb }

func (d *DarkWeb) Fetch(ctx context.Context) ([]models.ThreatIntel, error) {
	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	query := url.Values{"limit": {strconv.Itoa(d.limit)}}
	if err := d.getJSON(ctx, d.url, query, &body); err != nil {
		return nil, &models.ExternalCallError{Collaborator: "darkweb", Op: "list chatter", Err: err}
	}
	return ParseChatter(body.Data, d.now().UTC())
}

// ParseChatter maps chatter entries to ThreatIntel. Entries without an id or
// title are skipped; a missing or unparseable timestamp becomes fetchedAt.
func ParseChatter(entries []json.RawMessage, fetchedAt time.Time) ([]models.ThreatIntel, error) {
	out := make([]models.ThreatIntel, 0, len(entries))
	for _, entry := range entries {
		var raw map[string]any
		if err := json.Unmarshal(entry, &raw); err != nil {
			return nil, fmt.Errorf("decode chatter entry: %w", err)
		}
		id, _ := raw["id"].(string)
		title, _ := raw["title"].(string)
		if id == "" || title == "" {
			continue
		}

		ts := fetchedAt
		if s, ok := raw["timestamp"].(string); ok {
			if parsed, err := models.ParseTime(s); err == nil {
				ts = parsed.UTC()
			}
		}

		ti, err := models.NewThreatIntel(SourceDarkWeb, id, title, "", raw, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, ti)
	}
	return out, nil
}
