package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Turnstyle/ria-hunter-sub000/core/data"
	"github.com/Turnstyle/ria-hunter-sub000/core/db"
)

// fakeDatabase is an in-memory stand-in for the relational store.
type fakeDatabase struct {
	mu         sync.Mutex
	profiles   []data.Profile
	narratives map[int64]data.Narrative

	fetchErr  error
	existsErr error
	upsertErr error
	maxKeyErr error
}

func newFakeDatabase(profileKeys []int64, narrativeKeys []int64) *fakeDatabase {
	f := &fakeDatabase{narratives: map[int64]data.Narrative{}}
	for _, key := range profileKeys {
		f.profiles = append(f.profiles, data.Profile{
			CRDNumber: key,
			LegalName: fmt.Sprintf("Firm %d", key),
			City:      "Austin",
			State:     "TX",
		})
	}
	sort.Slice(f.profiles, func(i, j int) bool { return f.profiles[i].CRDNumber < f.profiles[j].CRDNumber })
	for _, key := range narrativeKeys {
		f.narratives[key] = data.Narrative{CRDNumber: key, NarrativeText: "existing"}
	}
	return f
}

func (f *fakeDatabase) FetchProfileWindow(ctx context.Context, afterKey int64, limit int) ([]data.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var window []data.Profile
	for _, profile := range f.profiles {
		if profile.CRDNumber > afterKey {
			window = append(window, profile)
			if len(window) == limit {
				break
			}
		}
	}
	return window, nil
}

func (f *fakeDatabase) ExistingNarrativeKeys(ctx context.Context, keys []int64) (map[int64]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return nil, f.existsErr
	}
	existing := map[int64]struct{}{}
	for _, key := range keys {
		if _, ok := f.narratives[key]; ok {
			existing[key] = struct{}{}
		}
	}
	return existing, nil
}

func (f *fakeDatabase) FetchNarrativesMissingEmbedding(ctx context.Context, afterKey int64, limit int) ([]data.Narrative, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var keys []int64
	for key, narrative := range f.narratives {
		if key > afterKey && len(narrative.Embedding) == 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var missing []data.Narrative
	for _, key := range keys {
		missing = append(missing, f.narratives[key])
		if len(missing) == limit {
			break
		}
	}
	return missing, nil
}

func (f *fakeDatabase) UpsertNarrative(ctx context.Context, narrative *data.Narrative) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.narratives[narrative.CRDNumber] = *narrative
	return nil
}

func (f *fakeDatabase) MaxProfileKey(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxKeyErr != nil {
		return 0, f.maxKeyErr
	}
	var max int64
	for _, profile := range f.profiles {
		if profile.CRDNumber > max {
			max = profile.CRDNumber
		}
	}
	return max, nil
}

func (f *fakeDatabase) CountProfilesMissingNarrative(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, profile := range f.profiles {
		if _, ok := f.narratives[profile.CRDNumber]; !ok {
			count++
		}
	}
	return count, nil
}

func (f *fakeDatabase) CountNarrativesMissingEmbedding(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, narrative := range f.narratives {
		if len(narrative.Embedding) == 0 {
			count++
		}
	}
	return count, nil
}

func (f *fakeDatabase) Stats(ctx context.Context) (db.Stats, error) {
	return db.Stats{}, nil
}

func (f *fakeDatabase) DuplicateFirmNames(ctx context.Context, limit int) ([]db.DuplicateFirm, error) {
	return nil, nil
}

func (f *fakeDatabase) narrative(key int64) (data.Narrative, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	narrative, ok := f.narratives[key]
	return narrative, ok
}

func (f *fakeDatabase) narrativeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.narratives)
}

func candidateKeys(candidates []Candidate) []int64 {
	keys := make([]int64, 0, len(candidates))
	for _, candidate := range candidates {
		keys = append(keys, candidate.Profile.CRDNumber)
	}
	return keys
}

func TestMissingNarrativeSelectorReturnsPendingKeysInOrder(t *testing.T) {
	database := newFakeDatabase([]int64{1001, 1002, 1050, 1051, 1500, 2000, 2001}, []int64{1001, 1500})
	selector := NewMissingNarrativeSelector(database, 4)

	candidates, filtered, err := selector.NextBatch(context.Background(), 1000, 5)

	require.NoError(t, err)
	assert.Equal(t, []int64{1002, 1050, 1051, 2000, 2001}, candidateKeys(candidates))
	assert.Equal(t, []int64{1001, 1500}, filtered)
}

func TestMissingNarrativeSelectorHonorsBatchSize(t *testing.T) {
	database := newFakeDatabase([]int64{1, 2, 3, 4, 5, 6, 7, 8}, nil)
	selector := NewMissingNarrativeSelector(database, 4)

	candidates, _, err := selector.NextBatch(context.Background(), 0, 3)

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, candidateKeys(candidates))
}

func TestMissingNarrativeSelectorStartsStrictlyAfterCursor(t *testing.T) {
	database := newFakeDatabase([]int64{10, 20, 30}, nil)
	selector := NewMissingNarrativeSelector(database, 4)

	candidates, _, err := selector.NextBatch(context.Background(), 20, 5)

	require.NoError(t, err)
	assert.Equal(t, []int64{30}, candidateKeys(candidates))
}

func TestMissingNarrativeSelectorEmptyWhenAllDone(t *testing.T) {
	database := newFakeDatabase([]int64{1, 2, 3}, []int64{1, 2, 3})
	selector := NewMissingNarrativeSelector(database, 4)

	candidates, filtered, err := selector.NextBatch(context.Background(), 0, 5)

	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, []int64{1, 2, 3}, filtered)
}

func TestMissingNarrativeSelectorSurfacesQueryErrors(t *testing.T) {
	database := newFakeDatabase([]int64{1}, nil)
	database.fetchErr = errors.New("connection reset")
	selector := NewMissingNarrativeSelector(database, 4)

	candidates, _, err := selector.NextBatch(context.Background(), 0, 5)

	require.Error(t, err)
	assert.Empty(t, candidates)
}

func TestMissingEmbeddingSelectorReturnsNarratives(t *testing.T) {
	database := newFakeDatabase(nil, []int64{5, 6, 7})
	embedded := database.narratives[6]
	embedded.Embedding = data.Vector{0.1, 0.2}
	database.narratives[6] = embedded
	selector := NewMissingEmbeddingSelector(database)

	candidates, _, err := selector.NextBatch(context.Background(), 0, 10)

	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7}, candidateKeys(candidates))
	for _, candidate := range candidates {
		require.NotNil(t, candidate.Narrative)
		assert.Equal(t, "existing", candidate.Narrative.NarrativeText)
	}
}
