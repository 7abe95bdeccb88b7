package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

const collaborator = "warehouse"

// rawDataParseError replaces raw_data that cannot be decoded.
var rawDataParseError = map[string]any{"error": "Failed to parse raw_data"}

// Postgres stores every table in one schema named after the configured dataset.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
	logger zerolog.Logger
}

// NewPostgres dials dsn and returns a warehouse rooted at schema.
func NewPostgres(ctx context.Context, dsn, schema string, log zerolog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("warehouse: failed to initialize pool: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("schema", schema).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("connected to warehouse")

	return &Postgres{pool: pool, schema: schema, logger: log}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) table(name string) string {
	return pgx.Identifier{p.schema, name}.Sanitize()
}

// EnsureSchema creates the schema and tables when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{p.schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    ip        TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL,
    message   TEXT NOT NULL DEFAULT ''
)`, p.table(TableLogs)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id              TEXT NOT NULL,
    source          TEXT NOT NULL,
    severity        TEXT NOT NULL,
    timestamp       TIMESTAMPTZ NOT NULL,
    description     TEXT NOT NULL,
    affected_system TEXT
)`, p.table(TableAnomalies)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    source    TEXT NOT NULL,
    id        TEXT NOT NULL,
    summary   TEXT NOT NULL,
    severity  TEXT,
    raw_data  TEXT,
    timestamp TIMESTAMPTZ NOT NULL
)`, p.table(TableThreatIntel)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    report_id    TEXT NOT NULL,
    title        TEXT NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL,
    sections     TEXT[] NOT NULL,
    uri          TEXT NOT NULL
)`, p.table(TableReports)),
	}

	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return &models.ExternalCallError{Collaborator: collaborator, Op: "ensure schema", Err: err}
		}
	}
	return nil
}

// logQuery builds the log select around an already sanitized predicate.
func logQuery(table, predicate string) string {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		predicate = MatchAll
	}
	return fmt.Sprintf(`SELECT ip, timestamp, message FROM %s WHERE %s ORDER BY timestamp DESC LIMIT $1`, table, predicate)
}

func (p *Postgres) QueryLogs(ctx context.Context, predicate string, limit int) ([]Row, error) {
	rows, err := p.pool.Query(ctx, logQuery(p.table(TableLogs), predicate), limit)
	if err != nil {
		return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "query logs", Err: err}
	}

	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "query logs", Err: err}
	}
	return result, nil
}

func (p *Postgres) QueryAnomalies(ctx context.Context, limit int) ([]Row, error) {
	query := fmt.Sprintf(`SELECT id, source, severity, timestamp, description, affected_system
FROM %s ORDER BY timestamp DESC LIMIT $1`, p.table(TableAnomalies))

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "query anomalies", Err: err}
	}

	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "query anomalies", Err: err}
	}
	return result, nil
}

func (p *Postgres) QueryThreatIntel(ctx context.Context, filter IntelFilter) ([]models.ThreatIntel, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT source, id, summary, COALESCE(severity, ''), COALESCE(raw_data, ''), timestamp
FROM %s
WHERE ($1 = '' OR source = $1) AND ($2 = '' OR LOWER(severity) = LOWER($2))
ORDER BY timestamp DESC
LIMIT $3`, p.table(TableThreatIntel))

	rows, err := p.pool.Query(ctx, query, filter.Source, filter.Severity, limit)
	if err != nil {
		return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "query threat intel", Err: err}
	}
	defer rows.Close()

	var items []models.ThreatIntel
	for rows.Next() {
		var (
			item models.ThreatIntel
			raw  string
			ts   time.Time
		)
		if err := rows.Scan(&item.Source, &item.ID, &item.Summary, &item.Severity, &raw, &ts); err != nil {
			return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "scan threat intel", Err: err}
		}
		item.RawData = DecodeRawData(raw)
		item.Timestamp = ts.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.ExternalCallError{Collaborator: collaborator, Op: "query threat intel", Err: err}
	}
	return items, nil
}

// DecodeRawData decodes a stored raw_data column. Undecodable values are
// replaced with a marker object rather than failing the whole query.
func DecodeRawData(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		marker := make(map[string]any, len(rawDataParseError))
		for k, v := range rawDataParseError {
			marker[k] = v
		}
		return marker
	}
	return out
}

func (p *Postgres) InsertAnomalies(ctx context.Context, anomalies []models.Anomaly) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, source, severity, timestamp, description, affected_system)
VALUES ($1, $2, $3, $4, $5, $6)`, p.table(TableAnomalies))

	batch := &pgx.Batch{}
	for _, a := range anomalies {
		batch.Queue(query, a.ID, a.Source, string(a.Severity), a.Timestamp, a.Description, a.AffectedSystem)
	}
	return p.sendBatch(ctx, batch, "insert anomalies")
}

func (p *Postgres) InsertThreatIntel(ctx context.Context, items []models.ThreatIntel) error {
	query := fmt.Sprintf(`INSERT INTO %s (source, id, summary, severity, raw_data, timestamp)
VALUES ($1, $2, $3, $4, $5, $6)`, p.table(TableThreatIntel))

	batch := &pgx.Batch{}
	for _, item := range items {
		raw, err := json.Marshal(item.RawData)
		if err != nil {
			p.logger.Warn().Err(err).Str("id", item.ID).Msg("skipping threat intel with unencodable raw_data")
			continue
		}
		batch.Queue(query, item.Source, item.ID, item.Summary, item.Severity, string(raw), item.Timestamp)
	}
	return p.sendBatch(ctx, batch, "insert threat intel")
}

func (p *Postgres) InsertReportMetadata(ctx context.Context, meta ReportMetadata) error {
	query := fmt.Sprintf(`INSERT INTO %s (report_id, title, generated_at, sections, uri)
VALUES ($1, $2, $3, $4, $5)`, p.table(TableReports))

	if _, err := p.pool.Exec(ctx, query, meta.ReportID, meta.Title, meta.GeneratedAt, meta.Sections, meta.URI); err != nil {
		return &models.ExternalCallError{Collaborator: collaborator, Op: "insert report metadata", Err: err}
	}
	return nil
}

func (p *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch, operation string) (err error) {
	if batch.Len() == 0 {
		return nil
	}

	br := p.pool.SendBatch(ctx, batch)
	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = &models.ExternalCallError{Collaborator: collaborator, Op: operation, Err: closeErr}
		}
	}()

	for i := 0; i < batch.Len(); i++ {
		if _, err = br.Exec(); err != nil {
			return &models.ExternalCallError{
				Collaborator: collaborator,
				Op:           operation,
				Err:          fmt.Errorf("batch exec (command %d): %w", i, err),
			}
		}
	}
	return nil
}
