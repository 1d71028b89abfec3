package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// maxErrorLog bounds the persisted error log so the checkpoint file cannot
// grow without limit on a bad run.
const maxErrorLog = 50

// Checkpoint is the sole source of truth for resuming a run. It is loaded
// once at startup and written back after every batch.
type Checkpoint struct {
	LastProcessedKey int64        `json:"last_processed_key"`
	Processed        int64        `json:"processed_count"`
	Succeeded        int64        `json:"success_count"`
	Failed           int64        `json:"failure_count"`
	Skipped          int64        `json:"skipped_count"`
	RateLimitHits    int64        `json:"rate_limit_hits"`
	Errors           []ErrorEntry `json:"error_log"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

type ErrorEntry struct {
	Key     int64     `json:"key"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// RecordError appends to the bounded error log, evicting the oldest entry
// once the bound is reached.
func (c *Checkpoint) RecordError(key int64, stage, message string) {
	c.Errors = append(c.Errors, ErrorEntry{Key: key, Stage: stage, Message: message, At: time.Now().UTC()})
	if len(c.Errors) > maxErrorLog {
		c.Errors = c.Errors[len(c.Errors)-maxErrorLog:]
	}
}

type Store interface {
	Load() (Checkpoint, error)
	Save(checkpoint Checkpoint) error
}

type fileStore struct {
	path string
}

func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

// Load returns a zeroed checkpoint when no file exists yet; any other read
// problem is surfaced so a corrupt checkpoint is never silently discarded.
func (s *fileStore) Load() (Checkpoint, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, fmt.Errorf("reading checkpoint %s: %w", s.path, err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(raw, &checkpoint); err != nil {
		return Checkpoint{}, fmt.Errorf("parsing checkpoint %s: %w", s.path, err)
	}
	return checkpoint, nil
}

// Save writes atomically via a temp file and rename so a crash mid-write
// leaves the previous checkpoint intact.
func (s *fileStore) Save(checkpoint Checkpoint) error {
	checkpoint.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing checkpoint %s: %w", s.path, err)
	}
	return nil
}
