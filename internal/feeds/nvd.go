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

const (
	nvdTimeLayout      = "2006-01-02T15:04:05.000Z"
	nvdResultsPerPage  = 100
	unknownSeverity    = "unknown"
	missingDescription = "No description available"
)

// NVD reads CVEs published within the lookback window.
type NVD struct {
	*fetcher
	url      string
	lookback time.Duration
	now      func() time.Time
}

func (n *NVD) Name() string { return SourceCVE }

type nvdPage struct {
	Vulnerabilities []json.RawMessage `json:"vulnerabilities"`
}

type nvdItem struct {
	CVE struct {
		ID           string `json:"id"`
		Descriptions []struct {
			Value string `json:"value"`
		} `json:"descriptions"`
		Metrics struct {
			CvssMetricV31 []struct {
				CvssData struct {
					BaseSeverity string `json:"baseSeverity"`
				} `json:"cvssData"`
			} `json:"cvssMetricV31"`
		} `json:"metrics"`
	} `json:"cve"`
}

func (n *NVD) Fetch(ctx context.Context) ([]models.ThreatIntel, error) {
	now := n.now().UTC()
	query := url.Values{
		"pubStartDate":   {now.Add(-n.lookback).Format(nvdTimeLayout)},
		"pubEndDate":     {now.Format(nvdTimeLayout)},
		"resultsPerPage": {strconv.Itoa(nvdResultsPerPage)},
	}

	var page nvdPage
	if err := n.getJSON(ctx, n.url, query, &page); err != nil {
		return nil, &models.ExternalCallError{Collaborator: "nvd", Op: "list cves", Err: err}
	}
	return ParseCVEs(page.Vulnerabilities, now)
}

// ParseCVEs maps raw NVD vulnerability items to ThreatIntel. Items without a
// CVE id are skipped.
func ParseCVEs(items []json.RawMessage, fetchedAt time.Time) ([]models.ThreatIntel, error) {
	out := make([]models.ThreatIntel, 0, len(items))
	for _, item := range items {
		var parsed nvdItem
		if err := json.Unmarshal(item, &parsed); err != nil {
			return nil, fmt.Errorf("decode cve item: %w", err)
		}
		if parsed.CVE.ID == "" {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(item, &raw); err != nil {
			return nil, fmt.Errorf("decode cve item: %w", err)
		}

		summary := missingDescription
		if len(parsed.CVE.Descriptions) > 0 && parsed.CVE.Descriptions[0].Value != "" {
			summary = parsed.CVE.Descriptions[0].Value
		}
		severity := unknownSeverity
		if m := parsed.CVE.Metrics.CvssMetricV31; len(m) > 0 && m[0].CvssData.BaseSeverity != "" {
			severity = m[0].CvssData.BaseSeverity
		}

		ti, err := models.NewThreatIntel(SourceCVE, parsed.CVE.ID, summary, severity, raw, fetchedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, ti)
	}
	return out, nil
}
