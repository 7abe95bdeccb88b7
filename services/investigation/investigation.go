// Package investigation reconstructs an incident from logs and the asset
// inventory.
package investigation

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/scanner"
)

const defaultLimit = 1000

// Reconstructor turns raw evidence into an InvestigationResult.
type Reconstructor interface {
	Reconstruct(entries []models.LogEntry, assets []models.Asset, at time.Time) (models.InvestigationResult, error)
}

// Service gathers evidence and hands it to a Reconstructor.
type Service struct {
	wh      warehouse.Warehouse
	scanner *scanner.Scanner
	rec     Reconstructor
	now     func() time.Time
	logger  zerolog.Logger
}

// NewService uses DefaultReconstructor when rec is nil.
func NewService(wh warehouse.Warehouse, sc *scanner.Scanner, rec Reconstructor, log zerolog.Logger) *Service {
	if rec == nil {
		rec = DefaultReconstructor{}
	}
	return &Service{wh: wh, scanner: sc, rec: rec, now: time.Now, logger: log}
}

// Investigate reads the newest limit log rows and the inventory. An
// inventory failure degrades to an empty asset list.
func (s *Service) Investigate(ctx context.Context, limit int) (models.InvestigationResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.wh.QueryLogs(ctx, warehouse.MatchAll, limit)
	if err != nil {
		return models.InvestigationResult{}, fmt.Errorf("query logs: %w", err)
	}

	assets, err := s.scanner.ListAssets(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Asset inventory unavailable, continuing without it")
		assets = nil
	}

	result, err := s.rec.Reconstruct(models.LogEntriesFromRows(rows), assets, s.now().UTC())
	if err != nil {
		return models.InvestigationResult{}, err
	}
	s.logger.Info().
		Int("timeline", len(result.Timeline)).
		Strs("compromised", result.CompromisedResources).
		Float64("risk", result.EstimatedRiskScore).
		Msg("Investigation completed")
	return result, nil
}

var exfilKeywords = []string{"exfil", "upload", "data transfer", "outbound transfer", "dump"}

// DefaultReconstructor is deterministic: the same evidence always yields the
// same result.
type DefaultReconstructor struct{}

func (DefaultReconstructor) Reconstruct(entries []models.LogEntry, assets []models.Asset, at time.Time) (models.InvestigationResult, error) {
	sorted := make([]models.LogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var (
		timeline    []string
		origins     []string
		compromised []string
		exfiltrated bool
	)
	seenOrigin := map[string]bool{}
	seenAsset := map[string]bool{}

	for _, e := range sorted {
		external := scanner.IsExternal(e.IP)
		touched := touchedAssets(e.Message, assets)
		if !external && len(touched) == 0 {
			continue
		}

		timeline = append(timeline, fmt.Sprintf("%s - %s - %s", e.Timestamp.UTC().Format(time.RFC3339), e.IP, e.Message))

		if !external {
			continue
		}
		if !seenOrigin[e.IP] {
			seenOrigin[e.IP] = true
			origins = append(origins, e.IP)
		}
		for _, name := range touched {
			if !seenAsset[name] {
				seenAsset[name] = true
				compromised = append(compromised, name)
			}
		}
		if containsAny(strings.ToLower(e.Message), exfilKeywords) {
			exfiltrated = true
		}
	}

	var attackPath []string
	if len(origins) > 0 {
		attackPath = append(attackPath, "external:"+origins[0])
		attackPath = append(attackPath, compromised...)
	}

	result := models.InvestigationResult{
		Timeline:             nonNil(timeline),
		AttackPath:           nonNil(attackPath),
		CompromisedResources: nonNil(compromised),
		DataExfiltrated:      exfiltrated,
		EstimatedRiskScore:   riskScore(len(origins), len(compromised), exfiltrated),
		InvestigationTime:    at,
	}
	return result, result.Validate()
}

// riskScore weighs distinct origins, compromised assets and exfiltration,
// clamped to [0, 10] and rounded to one decimal.
func riskScore(origins, compromised int, exfiltrated bool) float64 {
	score := math.Min(4, 0.5*float64(origins)) + 1.5*float64(compromised)
	if exfiltrated {
		score += 3
	}
	score = math.Max(0, math.Min(10, score))
	return math.Round(score*10) / 10
}

// touchedAssets returns the short names of assets mentioned in msg.
func touchedAssets(msg string, assets []models.Asset) []string {
	lower := strings.ToLower(msg)
	var names []string
	for _, a := range assets {
		name := path.Base(a.Name)
		if name == "" || name == "." || name == "/" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(name)) {
			names = append(names, name)
		}
	}
	return names
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
