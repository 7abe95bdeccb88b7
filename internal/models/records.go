package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Truncate cuts s to at most max runes and marks the cut with "...".
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// InvestigationResult is the reconstructed view of one incident.
type InvestigationResult struct {
	Timeline             []string  `json:"timeline"`
	AttackPath           []string  `json:"attack_path"`
	CompromisedResources []string  `json:"compromised_resources"`
	DataExfiltrated      bool      `json:"data_exfiltrated"`
	EstimatedRiskScore   float64   `json:"estimated_risk_score" validate:"min=0,max=10"`
	InvestigationTime    time.Time `json:"investigation_time" validate:"required"`
}

func (r InvestigationResult) Validate() error { return validateStruct(r) }

// Section kinds distinguish dispatch-table content from the unknown-section placeholder.
const (
	SectionContent     = "content"
	SectionPlaceholder = "placeholder"
)

// Section is one rendered report block.
type Section struct {
	Heading string `json:"heading" validate:"required"`
	Body    string `json:"body"`
	Kind    string `json:"kind" validate:"required,oneof=content placeholder"`
}

// DefaultReportTitle is used for every generated report.
const DefaultReportTitle = "CyberGuardian Incident Report"

// Report is an assembled incident report. OutputURI is set only after the
// report has been persisted.
type Report struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	GeneratedAt time.Time `json:"generated_at" validate:"required"`
	Sections    []Section `json:"sections" validate:"dive"`
	OutputURI   string    `json:"output_uri,omitempty"`
}

// NewReport constructs and validates a Report.
func NewReport(id, title string, generatedAt time.Time, sections []Section) (Report, error) {
	r := Report{
		ID:          id,
		Title:       title,
		GeneratedAt: generatedAt.UTC(),
		Sections:    sections,
	}
	return r, r.Validate()
}

func (r Report) Validate() error { return validateStruct(r) }

// WithOutputURI returns a copy of the report pointing at its stored document.
func (r Report) WithOutputURI(uri string) Report {
	sections := make([]Section, len(r.Sections))
	copy(sections, r.Sections)
	r.Sections = sections
	r.OutputURI = uri
	return r
}

// Asset is one entry of the infrastructure inventory snapshot.
type Asset struct {
	Name         string `json:"name" validate:"required"`
	AssetType    string `json:"asset_type" validate:"required"`
	ResourceName string `json:"resource_name,omitempty"`
	Location     string `json:"location,omitempty"`
}

func (a Asset) Validate() error { return validateStruct(a) }

// LogEntry is a row of the fixed two-column log schema plus its timestamp.
type LogEntry struct {
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func (l LogEntry) Validate() error { return validateStruct(l) }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// ParseTime accepts the timestamp formats produced by the warehouse and feeds.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// LogEntryFromRow maps a warehouse row onto the log schema. Unknown or
// malformed columns are left zero.
func LogEntryFromRow(row map[string]any) LogEntry {
	var entry LogEntry
	if v, ok := row["ip"].(string); ok {
		entry.IP = v
	}
	if v, ok := row["message"].(string); ok {
		entry.Message = v
	}
	switch v := row["timestamp"].(type) {
	case time.Time:
		entry.Timestamp = v.UTC()
	case string:
		if t, err := ParseTime(v); err == nil {
			entry.Timestamp = t
		}
	}
	return entry
}

// LogEntriesFromRows maps rows in order.
func LogEntriesFromRows(rows []map[string]any) []LogEntry {
	entries := make([]LogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, LogEntryFromRow(row))
	}
	return entries
}
