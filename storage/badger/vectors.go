package badger

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/coder/hnsw"
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/storage"
	"golang.org/x/sync/singleflight"
)

const graphChunkSize = 1 << 20

// vectorIndex is the in-memory vector structure of one revision.
type vectorIndex struct {
	ids  []core.ID
	vecs [][]float32 // unit length, parallel to ids

	mu    sync.Mutex // graph search is not safe for concurrent use
	graph *hnsw.Graph[uint64]
}

// search returns up to k nearest vectors by ascending cosine distance.
// ef candidates are gathered: max(k, k*searchRadius). When the revision holds
// no more than ef vectors, or has no graph, every vector is compared.
func (v *vectorIndex) search(query []float32, k, searchRadius int) []storage.SemanticHit {
	if searchRadius < 1 {
		searchRadius = 1
	}
	ef := max(k, k*searchRadius)

	var hits []storage.SemanticHit
	if v.graph == nil || len(v.ids) <= ef {
		hits = make([]storage.SemanticHit, len(v.ids))
		for i, vec := range v.vecs {
			hits[i] = storage.SemanticHit{Id: v.ids[i], Distance: cosineDistance(query, vec)}
		}
	} else {
		v.mu.Lock()
		v.graph.EfSearch = ef
		nodes := v.graph.Search(query, ef)
		v.mu.Unlock()

		hits = make([]storage.SemanticHit, len(nodes))
		for i, node := range nodes {
			hits[i] = storage.SemanticHit{Id: core.ID(node.Key), Distance: cosineDistance(query, node.Value)}
		}
	}

	slices.SortFunc(hits, func(a, b storage.SemanticHit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// vectorCache holds loaded revisions. Concurrent loads of one revision share a single read.
type vectorCache struct {
	mu      sync.Mutex
	entries map[string]*vectorIndex
	group   singleflight.Group
}

func newVectorCache() *vectorCache {
	return &vectorCache{entries: make(map[string]*vectorIndex)}
}

func (c *vectorCache) get(revision string, load func() (*vectorIndex, error)) (*vectorIndex, error) {
	c.mu.Lock()
	idx, ok := c.entries[revision]
	c.mu.Unlock()
	if ok {
		return idx, nil
	}

	v, err, _ := c.group.Do(revision, func() (any, error) {
		idx, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[revision] = idx
		c.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vectorIndex), nil
}

func (c *vectorCache) clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

func (c *vectorCache) evict(revision string) {
	c.mu.Lock()
	delete(c.entries, revision)
	c.mu.Unlock()
}

// loadVectorIndex reads every vector of the revision and its graph, if one was persisted.
// A stored vector whose length differs from the index dimension is a generation mismatch.
func loadVectorIndex(tx *badger.Txn, info *core.IndexInfo) (*vectorIndex, error) {
	idx := &vectorIndex{}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeVectorPrefix(info.Revision)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		id := idFromKey(item.Key())
		var vec []float32
		err := item.Value(func(val []byte) error {
			var err error
			vec, err = storage.UnmarshalVector(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(vec) != info.Dimension {
			return nil, &storage.GenerationMismatchError{
				Index:    info.Name,
				Revision: info.Revision,
				Stored:   info.Generation().String(),
				Current:  core.Generation{ModelID: info.ModelID, Dimension: len(vec)}.String(),
			}
		}
		idx.ids = append(idx.ids, id)
		idx.vecs = append(idx.vecs, vec)
	}

	graph, err := loadGraph(tx, info.Revision)
	if err != nil {
		return nil, err
	}
	if graph != nil && graph.Len() == len(idx.ids) {
		idx.graph = graph
	}
	return idx, nil
}

func loadGraph(tx *badger.Txn, revision string) (*hnsw.Graph[uint64], error) {
	var buf bytes.Buffer
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeGraphPrefix(revision)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		err := iter.Item().Value(func(val []byte) error {
			buf.Write(val)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if buf.Len() == 0 {
		return nil, nil
	}

	graph := newGraph()
	if err := graph.Import(&buf); err != nil {
		return nil, fmt.Errorf("%w: hnsw graph: %w", storage.ErrSerializationFailed, err)
	}
	return graph, nil
}

// writeGraph exports graph into fixed-size chunks under the revision.
func writeGraph(batch *badger.WriteBatch, revision string, graph *hnsw.Graph[uint64]) error {
	var buf bytes.Buffer
	if err := graph.Export(&buf); err != nil {
		return fmt.Errorf("export hnsw graph: %w", err)
	}
	data := buf.Bytes()
	for chunk := uint32(0); len(data) > 0; chunk++ {
		n := min(graphChunkSize, len(data))
		if err := batch.Set(makeGraphChunkKey(revision, chunk), data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	return g
}

// normalizeVector returns a unit-length copy of vec. A zero vector is returned unchanged.
func normalizeVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		copy(out, vec)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// cosineDistance returns 1 - cos for unit-length vectors.
func cosineDistance(a, b []float32) float32 {
	return 1 - dotProduct(a, b)
}
