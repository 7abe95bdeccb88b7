// Package reporting assembles incident reports from warehouse data and
// retrieved guidance, renders them to PDF and issues download links.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/retrieval"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/warehouse"
)

// Known section names.
const (
	SectionExecutiveSummary   = "Executive Summary"
	SectionThreatIntelligence = "Threat Intelligence"
	SectionFindings           = "Findings"
	SectionRecommendations    = "Recommendations"
)

// Section kinds.
const (
	SectionContent     = models.SectionContent
	SectionPlaceholder = models.SectionPlaceholder
)

const (
	DefaultDownloadTTL = 15 * time.Minute
	DefaultCacheSize   = 256
	PDFContentType     = "application/pdf"

	summaryQuery  = "recent threat summary"
	guidanceQuery = "incident response checklist"

	anomalyLimit = 20
	logLimit     = 20
	intelLimit   = 10
)

// URLSigner issues time-limited links to stored objects.
type URLSigner interface {
	SignedURL(bucket, path string, ttl time.Duration) (string, error)
}

// Config holds the reports bucket and link defaults.
type Config struct {
	Bucket      string
	DownloadTTL time.Duration
	CacheSize   int
}

// Service creates, stores and links reports. Created reports are kept in
// a bounded in-memory cache; the oldest are evicted first.
type Service struct {
	cfg       Config
	wh        warehouse.Warehouse
	retriever retrieval.Searcher
	store     storage.ObjectStore
	signer    URLSigner
	reports   *lru.Cache[string, models.Report]
	now       func() time.Time
	newID     func() string
	logger    zerolog.Logger
}

func NewService(cfg Config, wh warehouse.Warehouse, retriever retrieval.Searcher, store storage.ObjectStore, signer URLSigner, log zerolog.Logger) (*Service, error) {
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = DefaultDownloadTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, models.Report](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}
	return &Service{
		cfg:       cfg,
		wh:        wh,
		retriever: retriever,
		store:     store,
		signer:    signer,
		reports:   cache,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    log,
	}, nil
}

// Report builds a report with one section per requested name, in order.
// Unknown names produce a placeholder section rather than an error.
func (s *Service) Report(ctx context.Context, sections []string) (models.Report, error) {
	if len(sections) == 0 {
		return models.Report{}, models.NewValidationError("sections", "at least one section is required", sections)
	}

	built := make([]models.Section, 0, len(sections))
	for _, name := range sections {
		built = append(built, s.section(ctx, name))
	}

	report, err := models.NewReport(s.newID(), models.DefaultReportTitle, s.now(), built)
	if err != nil {
		return models.Report{}, err
	}
	s.reports.Add(report.ID, report)
	s.logger.Info().Str("report_id", report.ID).Int("sections", len(built)).Msg("Report created")
	return report, nil
}

// Get returns a report created by this process.
func (s *Service) Get(id string) (models.Report, error) {
	report, ok := s.reports.Get(id)
	if !ok {
		return models.Report{}, &models.NotFoundError{Kind: "report", ID: id}
	}
	return report, nil
}

// SaveReport renders the report to PDF, uploads it and records its
// metadata. The object URI is returned even when recording fails.
func (s *Service) SaveReport(ctx context.Context, id string) (string, error) {
	report, err := s.Get(id)
	if err != nil {
		return "", err
	}

	doc, err := RenderPDF(report)
	if err != nil {
		return "", err
	}
	uri, err := s.store.Upload(ctx, s.cfg.Bucket, objectPath(id), doc, PDFContentType)
	if err != nil {
		return "", &models.ExternalCallError{Collaborator: "storage", Op: "upload report", Err: err}
	}
	s.reports.Add(id, report.WithOutputURI(uri))
	s.logger.Info().Str("report_id", id).Str("uri", uri).Msg("Report uploaded")

	meta := warehouse.ReportMetadata{
		ReportID:    report.ID,
		Title:       report.Title,
		GeneratedAt: report.GeneratedAt,
		Sections:    headings(report.Sections),
		URI:         uri,
	}
	if err := s.wh.InsertReportMetadata(ctx, meta); err != nil {
		s.logger.Error().Err(err).Str("report_id", id).Msg("Failed to record report metadata")
		return uri, &models.ExternalCallError{Collaborator: "warehouse", Op: "insert report metadata", Err: err}
	}
	return uri, nil
}

// GetDownloadURL signs a link to a saved report. A ttl of zero uses the
// configured default.
func (s *Service) GetDownloadURL(_ context.Context, id string, ttl time.Duration) (string, error) {
	report, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if report.OutputURI == "" {
		return "", &models.NotFoundError{Kind: "report document", ID: id}
	}
	bucket, path, err := storage.ParseURI(report.OutputURI)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.cfg.DownloadTTL
	}
	if s.signer == nil {
		return "", errors.New("download links are not configured")
	}
	return s.signer.SignedURL(bucket, path, ttl)
}

func (s *Service) section(ctx context.Context, name string) models.Section {
	var body string
	switch name {
	case SectionExecutiveSummary:
		body = orElse(s.retriever.RetrieveDocs(ctx, summaryQuery), "No summary available.")
	case SectionThreatIntelligence:
		body = "Recent Threat Intel:\n" + orElse(s.threatsJSON(ctx), "None available.")
	case SectionFindings:
		body = "Anomalies:\n" + orElse(s.anomaliesJSON(ctx), "None detected.") +
			"\n\nLogs:\n" + orElse(s.logsJSON(ctx), "No logs found.")
	case SectionRecommendations:
		body = orElse(s.retriever.RetrieveDocs(ctx, guidanceQuery), "No recommendations available.")
	default:
		return models.Section{Heading: name, Body: fmt.Sprintf("No content defined for '%s'", name), Kind: SectionPlaceholder}
	}
	return models.Section{Heading: name, Body: body, Kind: SectionContent}
}

// The section queries degrade to empty on warehouse failure.

func (s *Service) threatsJSON(ctx context.Context) string {
	items, err := s.wh.QueryThreatIntel(ctx, warehouse.IntelFilter{Limit: intelLimit})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Threat intel unavailable for report")
		return ""
	}
	if len(items) == 0 {
		return ""
	}
	wire, err := models.ToWireList(items)
	if err != nil {
		return ""
	}
	return indentJSON(wire)
}

func (s *Service) anomaliesJSON(ctx context.Context) string {
	rows, err := s.wh.QueryAnomalies(ctx, anomalyLimit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Anomalies unavailable for report")
		return ""
	}
	if len(rows) == 0 {
		return ""
	}
	return indentJSON(rows)
}

func (s *Service) logsJSON(ctx context.Context) string {
	rows, err := s.wh.QueryLogs(ctx, warehouse.MatchAll, logLimit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Logs unavailable for report")
		return ""
	}
	if len(rows) == 0 {
		return ""
	}
	return indentJSON(rows)
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func orElse(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func headings(sections []models.Section) []string {
	out := make([]string, 0, len(sections))
	for _, sec := range sections {
		out = append(out, sec.Heading)
	}
	return out
}

func objectPath(id string) string { return id + ".pdf" }
