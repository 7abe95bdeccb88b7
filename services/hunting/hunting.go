// Package hunting searches the logs with sanitized filters and derives
// threats from the matching traffic.
package hunting

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/scanner"
)

const (
	DefaultLimit       = 1000
	DefaultIntelLimit  = 10
	maxDescriptionText = 160
)

// HuntResult holds the raw matching rows plus the threats derived from them.
type HuntResult struct {
	Rows    []warehouse.Row
	Threats []models.Threat
	Filter  SanitizeResult
}

// Service runs threat hunts against the warehouse.
type Service struct {
	wh     warehouse.Warehouse
	logger zerolog.Logger
}

func NewService(wh warehouse.Warehouse, log zerolog.Logger) *Service {
	return &Service{wh: wh, logger: log}
}

// DetectThreats sanitizes filter, queries up to limit log rows and groups
// external source IPs into threats.
func (s *Service) DetectThreats(ctx context.Context, limit int, filter string) (HuntResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	sanitized := SanitizeFilter(filter)
	if sanitized.Policy != PolicyUnchanged {
		s.logger.Info().
			Str("input", sanitized.Input).
			Str("predicate", sanitized.Predicate).
			Str("policy", string(sanitized.Policy)).
			Strs("unknown_fields", sanitized.UnknownFields).
			Msg("Hunt filter sanitized")
	}

	rows, err := s.wh.QueryLogs(ctx, sanitized.Predicate, limit)
	if err != nil {
		return HuntResult{Filter: sanitized}, fmt.Errorf("query logs: %w", err)
	}

	threats, err := DeriveThreats(models.LogEntriesFromRows(rows))
	if err != nil {
		return HuntResult{Filter: sanitized}, err
	}

	return HuntResult{Rows: rows, Threats: threats, Filter: sanitized}, nil
}

// HistoricalIntel returns persisted threat intel, optionally narrowed to one severity.
func (s *Service) HistoricalIntel(ctx context.Context, limit int, severity string) ([]models.ThreatIntel, error) {
	if limit <= 0 {
		limit = DefaultIntelLimit
	}
	items, err := s.wh.QueryThreatIntel(ctx, warehouse.IntelFilter{Severity: severity, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query threat intel: %w", err)
	}
	return items, nil
}

type classification struct {
	keywords []string
	kind     string
	severity models.Severity
}

// First match wins.
var classifications = []classification{
	{[]string{"credential"}, "Credential Stuffing", models.SeverityHigh},
	{[]string{"exfil", "large upload", "data transfer"}, "Data Exfiltration", models.SeverityHigh},
	{[]string{"malware", "ransom", "trojan", "beacon"}, "Malware", models.SeverityHigh},
	{[]string{"failed login", "invalid password", "brute"}, "Brute Force", models.SeverityMedium},
}

// Classify infers a threat type and severity from log messages.
func Classify(messages []string) (string, models.Severity) {
	text := strings.ToLower(strings.Join(messages, "\n"))
	for _, c := range classifications {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.kind, c.severity
			}
		}
	}
	return "Suspicious Activity", models.SeverityLow
}

// DeriveThreats produces one threat per distinct external source IP, in order
// of first appearance. Entries arrive newest first, so the first entry seen
// for an IP carries its latest timestamp.
func DeriveThreats(entries []models.LogEntry) ([]models.Threat, error) {
	type group struct {
		first    models.LogEntry
		messages []string
	}

	var order []string
	groups := map[string]*group{}
	for _, e := range entries {
		if !scanner.IsExternal(e.IP) {
			continue
		}
		g, ok := groups[e.IP]
		if !ok {
			g = &group{first: e}
			groups[e.IP] = g
			order = append(order, e.IP)
		}
		g.messages = append(g.messages, e.Message)
	}

	threats := make([]models.Threat, 0, len(order))
	for i, ip := range order {
		g := groups[ip]
		kind, severity := Classify(g.messages)
		description := fmt.Sprintf("%d matching log entries from %s", len(g.messages), ip)
		if msg := strings.TrimSpace(g.first.Message); msg != "" {
			description += ": " + models.Truncate(msg, maxDescriptionText)
		}
		th, err := models.NewThreat(fmt.Sprintf("threat-%03d", i+1), kind, description, severity, ip, "", g.first.Timestamp)
		if err != nil {
			return nil, err
		}
		threats = append(threats, th)
	}
	return threats, nil
}
