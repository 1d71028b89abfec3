package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) Store {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "cp.json"))
}

func TestLoadMissingFileIsZeroed(t *testing.T) {
	cp, err := tempStore(t).Load()
	require.NoError(t, err)
	assert.Equal(t, int64(0), cp.LastProcessedKey)
	assert.Equal(t, int64(0), cp.Processed)
	assert.Empty(t, cp.Errors)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := tempStore(t)
	in := Checkpoint{
		LastProcessedKey: 1050,
		Processed:        20,
		Succeeded:        17,
		Failed:           2,
		Skipped:          1,
		RateLimitHits:    1,
	}
	in.RecordError(1042, "generate", "upstream 503")
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in.LastProcessedKey, out.LastProcessedKey)
	assert.Equal(t, in.Processed, out.Processed)
	assert.Equal(t, in.Succeeded, out.Succeeded)
	assert.Equal(t, in.Failed, out.Failed)
	assert.Equal(t, in.Skipped, out.Skipped)
	assert.Equal(t, in.RateLimitHits, out.RateLimitHits)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, int64(1042), out.Errors[0].Key)
	assert.Equal(t, "generate", out.Errors[0].Stage)
	assert.False(t, out.UpdatedAt.IsZero())
}

func TestSaveOverwrites(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, store.Save(Checkpoint{LastProcessedKey: 100}))
	require.NoError(t, store.Save(Checkpoint{LastProcessedKey: 200}))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(200), out.LastProcessedKey)
}

func TestLoadCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestErrorLogBounded(t *testing.T) {
	var cp Checkpoint
	for i := 0; i < maxErrorLog+25; i++ {
		cp.RecordError(int64(i), "generate", fmt.Sprintf("failure %d", i))
	}
	require.Len(t, cp.Errors, maxErrorLog)
	// oldest entries evicted first
	assert.Equal(t, int64(25), cp.Errors[0].Key)
	assert.Equal(t, int64(maxErrorLog+24), cp.Errors[len(cp.Errors)-1].Key)
}
