package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// Reddit reads the newest posts of a subreddit listing.
type Reddit struct {
	*fetcher
	url   string
	limit int
}

func (r *Reddit) Name() string { return SourceReddit }

type redditListing struct {
	Data struct {
		Children []json.RawMessage `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Data struct {
		ID         string  `json:"id"`
		Title      string  `json:"title"`
		CreatedUTC float64 `json:"created_utc"`
	} `json:"data"`
}

func (r *Reddit) Fetch(ctx context.Context) ([]models.ThreatIntel, error) {
	var listing redditListing
	query := url.Values{"limit": {strconv.Itoa(r.limit)}}
	if err := r.getJSON(ctx, r.url, query, &listing); err != nil {
		return nil, &models.ExternalCallError{Collaborator: "reddit", Op: "list posts", Err: err}
	}
	return ParsePosts(listing.Data.Children)
}

// ParsePosts maps raw listing children to ThreatIntel. Posts without an id or
// title are skipped.
func ParsePosts(children []json.RawMessage) ([]models.ThreatIntel, error) {
	out := make([]models.ThreatIntel, 0, len(children))
	for _, child := range children {
		var post redditPost
		if err := json.Unmarshal(child, &post); err != nil {
			return nil, fmt.Errorf("decode reddit post: %w", err)
		}
		if post.Data.ID == "" || post.Data.Title == "" {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(child, &raw); err != nil {
			return nil, fmt.Errorf("decode reddit post: %w", err)
		}

		sec, frac := math.Modf(post.Data.CreatedUTC)
		created := time.Unix(int64(sec), int64(frac*1e9)).UTC()

		ti, err := models.NewThreatIntel(SourceReddit, post.Data.ID, post.Data.Title, "", raw, created)
		if err != nil {
			return nil, err
		}
		out = append(out, ti)
	}
	return out, nil
}
