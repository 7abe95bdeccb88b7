package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	fieldID        = "id"
	fieldText      = "text"
	fieldSource    = "source"
	fieldEmbedding = "embedding"
)

// MilvusIndex stores passages in one Milvus collection.
type MilvusIndex struct {
	client     client.Client
	collection string
	dimension  int
}

// NewMilvusIndex connects to address.
func NewMilvusIndex(ctx context.Context, address, collection string, dimension int) (*MilvusIndex, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	c, err := client.NewClient(ctx, client.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}
	return &MilvusIndex{client: c, collection: collection, dimension: dimension}, nil
}

// EnsureCollection creates, indexes and loads the collection when missing.
func (m *MilvusIndex) EnsureCollection(ctx context.Context) error {
	exists, err := m.client.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		if err := m.client.CreateCollection(ctx, m.schema(), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		index, err := entity.NewIndexFlat(entity.COSINE)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := m.client.CreateIndex(ctx, m.collection, fieldEmbedding, index, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := m.client.LoadCollection(ctx, m.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func (m *MilvusIndex) schema() *entity.Schema {
	return &entity.Schema{
		CollectionName: m.collection,
		Description:    "Threat intelligence passages",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:       fieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:       fieldSource,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "1000"},
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(m.dimension)},
			},
		},
	}
}

func (m *MilvusIndex) Search(ctx context.Context, vector []float32, topK int) ([]Passage, error) {
	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := m.client.Search(ctx, m.collection, nil, "", []string{fieldText, fieldSource},
		[]entity.Vector{entity.FloatVector(vector)}, fieldEmbedding, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}

	var passages []Passage
	for _, res := range results {
		textCol := res.Fields.GetColumn(fieldText)
		sourceCol := res.Fields.GetColumn(fieldSource)
		for i := 0; i < res.ResultCount; i++ {
			var p Passage
			if textCol != nil {
				p.Text, _ = textCol.GetAsString(i)
			}
			if sourceCol != nil {
				p.Source, _ = sourceCol.GetAsString(i)
			}
			if i < len(res.Scores) {
				p.Score = res.Scores[i]
			}
			passages = append(passages, p)
		}
	}
	return passages, nil
}

func (m *MilvusIndex) Insert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	sources := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
		sources[i] = d.Source
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnFloatVector(fieldEmbedding, m.dimension, vectors),
	}
	if _, err := m.client.Insert(ctx, m.collection, "", columns...); err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}
	if err := m.client.Flush(ctx, m.collection, false); err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	return nil
}

// Close closes the client connection.
func (m *MilvusIndex) Close() error {
	return m.client.Close()
}
