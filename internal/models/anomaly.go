package models

import "time"

// Severity grades anomalies and threats.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity accepts low, medium and high in any case.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(lower(s)) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	}
	return "", NewValidationError("severity", "must be one of [low medium high]", s)
}

// Anomaly is a single flagged indicator produced by detection.
type Anomaly struct {
	ID             string    `json:"id" validate:"required"`
	Source         string    `json:"source" validate:"required"`
	Severity       Severity  `json:"severity" validate:"required,oneof=low medium high"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
	Description    string    `json:"description" validate:"required"`
	AffectedSystem string    `json:"affected_system,omitempty"`
}

// NewAnomaly constructs and validates an Anomaly.
func NewAnomaly(id, source string, severity Severity, ts time.Time, description, affectedSystem string) (Anomaly, error) {
	a := Anomaly{
		ID:             id,
		Source:         source,
		Severity:       severity,
		Timestamp:      ts.UTC(),
		Description:    description,
		AffectedSystem: affectedSystem,
	}
	return a, a.Validate()
}

func (a Anomaly) Validate() error { return validateStruct(a) }

// Threat is a correlated hunting finding.
type Threat struct {
	ID             string    `json:"id" validate:"required"`
	Type           string    `json:"type" validate:"required"`
	Description    string    `json:"description" validate:"required"`
	Severity       Severity  `json:"severity" validate:"required,oneof=low medium high"`
	SourceIP       string    `json:"source_ip,omitempty" validate:"omitempty,ip"`
	TargetResource string    `json:"target_resource,omitempty"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
}

// NewThreat constructs and validates a Threat.
func NewThreat(id, threatType, description string, severity Severity, sourceIP, target string, ts time.Time) (Threat, error) {
	t := Threat{
		ID:             id,
		Type:           threatType,
		Description:    description,
		Severity:       severity,
		SourceIP:       sourceIP,
		TargetResource: target,
		Timestamp:      ts.UTC(),
	}
	return t, t.Validate()
}

func (t Threat) Validate() error { return validateStruct(t) }

// ThreatIntel is one item ingested from an external feed. RawData carries the
// original feed payload and must survive serialization unchanged.
type ThreatIntel struct {
	Source    string         `json:"source" validate:"required"`
	ID        string         `json:"id" validate:"required"`
	Summary   string         `json:"summary" validate:"required"`
	Severity  string         `json:"severity,omitempty"`
	RawData   map[string]any `json:"raw_data"`
	Timestamp time.Time      `json:"timestamp" validate:"required"`
}

// NewThreatIntel constructs and validates a ThreatIntel item.
func NewThreatIntel(source, id, summary, severity string, raw map[string]any, ts time.Time) (ThreatIntel, error) {
	ti := ThreatIntel{
		Source:    source,
		ID:        id,
		Summary:   summary,
		Severity:  severity,
		RawData:   raw,
		Timestamp: ts.UTC(),
	}
	return ti, ti.Validate()
}

func (ti ThreatIntel) Validate() error { return validateStruct(ti) }
