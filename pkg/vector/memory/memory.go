// Package memory provides an in-process vector driver backed by a map and
// brute-force cosine search. It is the default store for tests and small
// single-node deployments.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/vector"
)

// record pairs an entry with its insertion sequence number, which breaks
// score ties so repeated identical queries return the same order.
type record struct {
	entry vector.Entry
	seq   uint64
}

// Driver implements vector.Driver with an in-memory index.
type Driver struct {
	mu         sync.RWMutex
	entries    map[string]record
	nextSeq    uint64
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the in-memory driver.
type Config struct {
	// Dimensions is the expected embedding width. Zero disables the check
	// until the first upsert fixes it.
	Dimensions uint
}

// NewDriver creates an empty in-memory vector driver.
func NewDriver(c Config, logger *zap.Logger) *Driver {
	return &Driver{
		entries:    make(map[string]record),
		dimensions: c.Dimensions,
		logger:     logger,
	}
}

// Upsert stores entries, replacing any with the same ID.
func (d *Driver) Upsert(_ context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range entries {
		if d.dimensions == 0 {
			d.dimensions = uint(len(e.Embedding))
		}
		if uint(len(e.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: entry %s has %d dimensions, store expects %d",
				vector.ErrDimensionMismatch, e.ID, len(e.Embedding), d.dimensions)
		}

		// Re-upserting an ID keeps its original position in the sequence.
		seq := d.nextSeq
		if prev, ok := d.entries[e.ID]; ok {
			seq = prev.seq
		} else {
			d.nextSeq++
		}
		d.entries[e.ID] = record{entry: e, seq: seq}
	}

	d.logger.Debug("upserted entries into memory index",
		zap.Int("count", len(entries)),
	)

	return nil
}

// Query scans all entries and returns the topK by cosine similarity.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int, filter map[string]string) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.dimensions != 0 && uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}

	type scored struct {
		match vector.Match
		seq   uint64
	}

	results := make([]scored, 0, len(d.entries))
	for _, rec := range d.entries {
		if !matchesFilter(rec.entry.Metadata, filter) {
			continue
		}
		results = append(results, scored{
			match: vector.Match{
				Entry: rec.entry,
				Score: cosineSimilarity(embedding, rec.entry.Embedding),
			},
			seq: rec.seq,
		})
	}

	// Descending score; insertion order breaks ties so repeated queries are
	// deterministic despite map iteration.
	sort.Slice(results, func(i, j int) bool {
		if results[i].match.Score != results[j].match.Score {
			return results[i].match.Score > results[j].match.Score
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > topK {
		results = results[:topK]
	}

	matches := make([]vector.Match, len(results))
	for i, r := range results {
		matches[i] = r.match
	}

	return matches, nil
}

// DeleteByDocument removes every entry owned by documentID.
func (d *Driver) DeleteByDocument(_ context.Context, documentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, rec := range d.entries {
		if rec.entry.DocumentID == documentID {
			delete(d.entries, id)
			removed++
		}
	}

	d.logger.Debug("deleted document entries from memory index",
		zap.String("document_id", documentID),
		zap.Int("count", removed),
	)

	return nil
}

// Count reports the number of stored entries.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries), nil
}

// Clear removes all entries.
func (d *Driver) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]record)
	d.nextSeq = 0
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ vector.Driver = (*Driver)(nil)
