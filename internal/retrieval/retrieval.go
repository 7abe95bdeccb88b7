// Package retrieval answers free-text queries with ranked passages from the
// threat intelligence vector index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Error kinds reported inline by RetrieveDocs.
const (
	KindEmbedding     = "EmbeddingError"
	KindSearch        = "SearchError"
	KindConfiguration = "ConfigurationError"
)

// Document is a passage to index.
type Document struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Passage is a ranked search hit.
type Passage struct {
	Text   string
	Source string
	Score  float32
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index stores and searches embedded passages.
type Index interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Passage, error)
	Insert(ctx context.Context, docs []Document, vectors [][]float32) error
}

// Searcher is what agents and services depend on.
type Searcher interface {
	RetrieveDocs(ctx context.Context, query string) string
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) string

func (f SearcherFunc) RetrieveDocs(ctx context.Context, query string) string { return f(ctx, query) }

// Retriever embeds queries and searches the index. A Retriever without an
// embedder or index reports a configuration error on every query.
type Retriever struct {
	embedder Embedder
	index    Index
	topK     int
	logger   zerolog.Logger
}

// NewRetriever returns a Retriever; nil collaborators are allowed.
func NewRetriever(embedder Embedder, index Index, topK int, log zerolog.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, logger: log}
}

var errNotConfigured = errors.New("retrieval backend not configured")

// RetrieveDocs never fails: errors come back as a formatted string.
func (r *Retriever) RetrieveDocs(ctx context.Context, query string) string {
	if r == nil || r.embedder == nil || r.index == nil {
		return FormatError(query, KindConfiguration, errNotConfigured)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		r.logger.Warn().Err(err).Str("query", query).Msg("query embedding failed")
		return FormatError(query, KindEmbedding, err)
	}
	if len(vectors) == 0 {
		return FormatError(query, KindEmbedding, errors.New("no embedding returned"))
	}

	passages, err := r.index.Search(ctx, vectors[0], r.topK)
	if err != nil {
		r.logger.Warn().Err(err).Str("query", query).Msg("vector search failed")
		return FormatError(query, KindSearch, err)
	}
	if len(passages) == 0 {
		return "No relevant documents found for: " + query
	}
	return FormatPassages(passages)
}

// IndexDocuments embeds docs and inserts them into the index.
func (r *Retriever) IndexDocuments(ctx context.Context, docs []Document) error {
	if r == nil || r.embedder == nil || r.index == nil {
		return errNotConfigured
	}
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embed documents: got %d vectors for %d documents", len(vectors), len(docs))
	}
	if err := r.index.Insert(ctx, docs, vectors); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	r.logger.Info().Int("documents", len(docs)).Msg("documents indexed")
	return nil
}

// FormatError renders the inline retrieval error.
func FormatError(query, kind string, err error) string {
	return fmt.Sprintf("[Document Retrieval Error]\nQuery: %s\nError: %s: %v", query, kind, err)
}

// FormatPassages renders passages best first.
func FormatPassages(passages []Passage) string {
	ranked := make([]Passage, len(passages))
	copy(ranked, passages)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	var b strings.Builder
	b.WriteString("## Context provided:\n")
	for i, p := range ranked {
		fmt.Fprintf(&b, "<Document %d>\n", i)
		if p.Source != "" {
			fmt.Fprintf(&b, "Source: %s\n", p.Source)
		}
		b.WriteString(strings.TrimSpace(p.Text))
		fmt.Fprintf(&b, "\n</Document %d>\n", i)
	}
	return b.String()
}
