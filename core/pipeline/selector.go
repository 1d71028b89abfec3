package pipeline

import (
	"context"
	"fmt"

	"github.com/Turnstyle/ria-hunter-sub000/core/data"
	"github.com/Turnstyle/ria-hunter-sub000/core/db"
)

// Candidate is one unit of pending work. In narrative mode only Profile is
// set; in embed mode Narrative carries the existing row whose embedding is
// still missing.
type Candidate struct {
	Profile   data.Profile
	Narrative *data.Narrative
}

// Selector finds entities still missing their derived data, ordered by key
// ascending and strictly after the cursor. An empty batch with a nil error
// means the scanned window held no pending work, which the driver treats as
// a gap, not as completion. filtered lists the scanned keys that already had
// their derived data, ascending; the driver credits them as skipped once the
// cursor passes them.
type Selector interface {
	NextBatch(ctx context.Context, afterKey int64, batchSize int) (candidates []Candidate, filtered []int64, err error)
}

// missingNarrativeSelector over-fetches a multiple of the batch size and
// filters client-side against the set of keys that already have narratives.
// The store is not assumed to push an anti-join server-side.
type missingNarrativeSelector struct {
	database            db.Database
	overfetchMultiplier int
}

func NewMissingNarrativeSelector(database db.Database, overfetchMultiplier int) Selector {
	return &missingNarrativeSelector{database: database, overfetchMultiplier: overfetchMultiplier}
}

func (s *missingNarrativeSelector) NextBatch(ctx context.Context, afterKey int64, batchSize int) ([]Candidate, []int64, error) {
	window, err := s.database.FetchProfileWindow(ctx, afterKey, batchSize*s.overfetchMultiplier)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching profile window after %d: %w", afterKey, err)
	}
	if len(window) == 0 {
		return nil, nil, nil
	}

	keys := make([]int64, 0, len(window))
	for _, profile := range window {
		keys = append(keys, profile.CRDNumber)
	}
	existing, err := s.database.ExistingNarrativeKeys(ctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("checking existing narratives: %w", err)
	}

	candidates := make([]Candidate, 0, batchSize)
	var filtered []int64
	for _, profile := range window {
		if _, done := existing[profile.CRDNumber]; done {
			filtered = append(filtered, profile.CRDNumber)
			continue
		}
		candidates = append(candidates, Candidate{Profile: profile})
		if len(candidates) == batchSize {
			break
		}
	}
	return candidates, filtered, nil
}

// missingEmbeddingSelector relies on the store filtering null embeddings
// server-side, so there is no over-fetch.
type missingEmbeddingSelector struct {
	database db.Database
}

func NewMissingEmbeddingSelector(database db.Database) Selector {
	return &missingEmbeddingSelector{database: database}
}

func (s *missingEmbeddingSelector) NextBatch(ctx context.Context, afterKey int64, batchSize int) ([]Candidate, []int64, error) {
	narratives, err := s.database.FetchNarrativesMissingEmbedding(ctx, afterKey, batchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching narratives missing embeddings after %d: %w", afterKey, err)
	}

	candidates := make([]Candidate, 0, len(narratives))
	for i := range narratives {
		narrative := narratives[i]
		candidates = append(candidates, Candidate{
			Profile:   data.Profile{CRDNumber: narrative.CRDNumber},
			Narrative: &narrative,
		})
	}
	return candidates, nil, nil
}
