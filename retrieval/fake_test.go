package retrieval

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
)

type fakeDoc struct {
	content  string
	distance float64
	source   string
}

// fakeStore serves fixed distances so tests control similarity exactly.
type fakeStore struct {
	mu          sync.Mutex
	collections map[core.CollectionID][]fakeDoc
	failing     map[core.CollectionID]error
	countCalls  int
	queryCalls  int
	queriedK    map[core.CollectionID]int
	listed      []core.CollectionID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: make(map[core.CollectionID][]fakeDoc),
		failing:     make(map[core.CollectionID]error),
		queriedK:    make(map[core.CollectionID]int),
	}
}

func (f *fakeStore) add(collection core.CollectionID, docs ...fakeDoc) *fakeStore {
	f.collections[collection] = append(f.collections[collection], docs...)
	return f
}

func (f *fakeStore) lookup(collection core.CollectionID) ([]fakeDoc, error) {
	if err, ok := f.failing[collection]; ok {
		return nil, err
	}
	docs, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, collection)
	}
	return docs, nil
}

func (f *fakeStore) Count(_ context.Context, collection core.CollectionID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	docs, err := f.lookup(collection)
	return len(docs), err
}

func (f *fakeStore) Query(_ context.Context, collection core.CollectionID, _ []float32, k int) ([]core.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	f.queriedK[collection] = k
	docs, err := f.lookup(collection)
	if err != nil {
		return nil, err
	}

	sorted := slices.Clone(docs)
	slices.SortStableFunc(sorted, func(a, b fakeDoc) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return 0
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}

	hits := make([]core.Hit, len(sorted))
	for i, d := range sorted {
		hits[i] = core.Hit{Chunk: f.chunk(collection, d), Distance: d.distance}
	}
	return hits, nil
}

func (f *fakeStore) ListChunks(_ context.Context, collection core.CollectionID) ([]*core.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, collection)
	docs, err := f.lookup(collection)
	if err != nil {
		return nil, err
	}
	chunks := make([]*core.Chunk, len(docs))
	for i, d := range docs {
		chunks[i] = f.chunk(collection, d)
	}
	return chunks, nil
}

func (f *fakeStore) chunk(collection core.CollectionID, d fakeDoc) *core.Chunk {
	return &core.Chunk{
		Collection: collection,
		Content:    d.content,
		Metadata:   map[string]string{core.MetadataSource: d.source},
	}
}

type recordingMonitor struct {
	started    bool
	skipped    []core.CollectionID
	reasons    []string
	escalated  int
	strategies []string
	finished   []core.Candidate
}

func (m *recordingMonitor) Start(_ string, _ []core.CollectionID) { m.started = true }
func (m *recordingMonitor) CollectionSkipped(c core.CollectionID, reason string) {
	m.skipped = append(m.skipped, c)
	m.reasons = append(m.reasons, reason)
}
func (m *recordingMonitor) Escalated(_ float64, _ int) { m.escalated++ }
func (m *recordingMonitor) StrategyFinished(name string, _ []core.Candidate) {
	m.strategies = append(m.strategies, name)
}
func (m *recordingMonitor) Finish(c []core.Candidate, _ *core.Diagnostics) { m.finished = c }
