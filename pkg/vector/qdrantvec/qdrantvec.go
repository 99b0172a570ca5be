// Package qdrantvec provides a Qdrant-backed vector driver for multi-node
// deployments. Collections are created on startup with cosine distance.
package qdrantvec

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/vector"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "quarry_chunks"

// pointNamespace seeds deterministic point UUIDs. Qdrant point IDs must be
// UUIDs or integers, so the composite chunk ID is hashed into a stable UUID
// and kept verbatim in the payload.
var pointNamespace = uuid.MustParse("8a6e0804-2bd0-4672-b79d-d97027f9071a")

// Driver implements vector.Driver against a Qdrant instance.
type Driver struct {
	client     *qdrant.Client
	collection string
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host. Required.
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334 if zero.
	Port int

	// APIKey authenticates requests. Optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// Collection is the collection name.
	// Defaults to DefaultCollection if empty.
	Collection string

	// Dimensions is the embedding width for the collection. Required.
	Dimensions uint
}

// NewDriver connects to Qdrant and ensures the collection exists.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	port := c.Port
	if port == 0 {
		port = 6334
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: creating collection: %v", vector.ErrConnection, err)
		}
	}

	logger.Info("qdrant vector driver initialized",
		zap.String("host", c.Host),
		zap.String("collection", collection),
		zap.Uint("dimensions", c.Dimensions),
	)

	return &Driver{
		client:     client,
		collection: collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// pointID derives the stable UUID point ID for a chunk ID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Upsert stores entries with their embeddings.
// An entry with an existing ID replaces the stored one.
func (d *Driver) Upsert(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if uint(len(e.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: entry %s has %d dimensions, store expects %d",
				vector.ErrDimensionMismatch, e.ID, len(e.Embedding), d.dimensions)
		}

		payload := map[string]any{
			"chunk_id":    e.ID,
			"document_id": e.DocumentID,
			"chunk_index": int64(e.ChunkIndex),
			"text":        e.Text,
		}
		for k, v := range e.Metadata {
			payload["meta_"+k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(e.ID)),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("upserted entries into qdrant",
		zap.Int("count", len(entries)),
	)

	return nil
}

// Query finds the topK most similar entries to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}

	query := &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if len(filter) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			conditions = append(conditions, qdrant.NewMatch("meta_"+k, v))
		}
		query.Filter = &qdrant.Filter{Must: conditions}
	}

	points, err := d.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	matches := make([]vector.Match, 0, len(points))
	for _, p := range points {
		entry := vector.Entry{
			Metadata: make(map[string]string),
		}
		for k, v := range p.Payload {
			switch k {
			case "chunk_id":
				entry.ID = v.GetStringValue()
			case "document_id":
				entry.DocumentID = v.GetStringValue()
			case "chunk_index":
				entry.ChunkIndex = int(v.GetIntegerValue())
			case "text":
				entry.Text = v.GetStringValue()
			default:
				if meta, ok := cutMetaKey(k); ok {
					entry.Metadata[meta] = v.GetStringValue()
				}
			}
		}

		matches = append(matches, vector.Match{
			Entry: entry,
			Score: p.Score,
		})
	}

	return matches, nil
}

// DeleteByDocument removes every entry belonging to the document.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting document points: %w", err)
	}

	d.logger.Debug("deleted document entries from qdrant",
		zap.String("document_id", documentID),
	)

	return nil
}

// Count reports the number of stored entries.
func (d *Driver) Count(ctx context.Context) (int, error) {
	count, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(count), nil
}

// Clear removes all entries. An empty filter selects every point.
func (d *Driver) Clear(ctx context.Context) error {
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{}),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("clearing points: %w", err)
	}
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.client.Close()
}

func cutMetaKey(k string) (string, bool) {
	const prefix = "meta_"
	if len(k) > len(prefix) && k[:len(prefix)] == prefix {
		return k[len(prefix):], true
	}
	return "", false
}

var _ vector.Driver = (*Driver)(nil)
