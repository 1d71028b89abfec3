package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Turnstyle/ria-hunter-sub000/core/buffer"
	"github.com/Turnstyle/ria-hunter-sub000/core/checkpoint"
	"github.com/Turnstyle/ria-hunter-sub000/core/config"
	"github.com/Turnstyle/ria-hunter-sub000/core/data"
	"github.com/Turnstyle/ria-hunter-sub000/core/db"
	"github.com/Turnstyle/ria-hunter-sub000/core/engine"
	"github.com/Turnstyle/ria-hunter-sub000/core/generator"
	"github.com/Turnstyle/ria-hunter-sub000/core/sink"
	"github.com/Turnstyle/ria-hunter-sub000/core/storage"
)

// Outcome is the terminal state of a run. An orchestrating supervisor maps
// it to an exit code to decide whether to re-run, re-tune, or stop.
type Outcome int

const (
	OutcomeExhausted Outcome = iota
	OutcomeCeiling
	OutcomeReconfigure
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCeiling:
		return "ceiling-reached"
	case OutcomeReconfigure:
		return "needs-reconfiguration"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeCeiling:
		return 2
	case OutcomeReconfigure:
		return 3
	default:
		return 0
	}
}

// Summary is the operator-facing result of a run.
type Summary struct {
	Outcome       Outcome
	Processed     int64
	Succeeded     int64
	Failed        int64
	Skipped       int64
	RateLimitHits int64
	Elapsed       time.Duration
	Throughput    float64
}

// Deps are the injected collaborators. Sink, Buffer and Storage are
// optional; the pipeline persists to the database either way.
type Deps struct {
	Selector    Selector
	Generator   generator.Generator
	Engine      engine.Engine
	Database    db.Database
	Checkpoints checkpoint.Store
	Sink        sink.Sink
	Buffer      buffer.Buffer
	Storage     storage.Storage
	SourceTag   string
}

// Driver runs the batch loop: select a batch, process it sequentially,
// persist the checkpoint, sleep, repeat until a terminal condition. Entities
// are deliberately processed one at a time to stay under provider rate
// limits.
type Driver struct {
	cfg  config.ApplicationConfig
	deps Deps

	limiter   *rate.Limiter
	itemDelay time.Duration
	doublings int
}

func NewDriver(cfg config.ApplicationConfig, deps Deps) *Driver {
	itemDelay := cfg.ItemDelay.Std()
	limit := rate.Inf
	if itemDelay > 0 {
		limit = rate.Every(itemDelay)
	}
	return &Driver{
		cfg:       cfg,
		deps:      deps,
		limiter:   rate.NewLimiter(limit, 1),
		itemDelay: itemDelay,
	}
}

func (d *Driver) Run(ctx context.Context) (Summary, error) {
	logger := ctx.Value("logger").(*slog.Logger).With(slog.String("run_id", uuid.NewString()))
	started := time.Now()

	cp, err := d.deps.Checkpoints.Load()
	if err != nil {
		return Summary{}, err
	}
	baseline := cp
	logger.Info("starting run",
		slog.String("component", "driver"),
		slog.String("mode", d.cfg.Mode),
		slog.Int64("last_processed_key", cp.LastProcessedKey),
		slog.Int64("processed_so_far", cp.Processed))

	d.reportRemaining(ctx, logger)

	maxKey, err := d.deps.Database.MaxProfileKey(ctx)
	if err != nil {
		logger.Warn("could not determine the highest profile key, skip-ahead is unbounded",
			slog.String("component", "driver"),
			slog.String("error", err.Error()))
		maxKey = -1
	}

	var (
		emptyBatches   int
		selectorErrors int
		lastSelectErr  error
		rateLimitRun   int
	)

	for {
		if ctx.Err() != nil {
			return d.finish(logger, &cp, baseline, started, OutcomeInterrupted)
		}
		if d.cfg.MaxProcessed > 0 && cp.Processed-baseline.Processed >= d.cfg.MaxProcessed {
			return d.finish(logger, &cp, baseline, started, OutcomeCeiling)
		}

		candidates, filtered, err := d.deps.Selector.NextBatch(ctx, cp.LastProcessedKey, d.cfg.BatchSize)
		filteredIdx := 0

		if err != nil {
			// A store failure yields an empty attempt. It counts toward the
			// gap heuristic but must never read as "no more candidates", so
			// an unbroken run of failures surfaces as an error instead of a
			// clean exhaustion.
			emptyBatches++
			selectorErrors++
			lastSelectErr = err
			cp.RecordError(cp.LastProcessedKey, "select", err.Error())
			logger.Warn("batch selection failed",
				slog.String("component", "driver"),
				slog.Int("empty_batches", emptyBatches),
				slog.String("error", err.Error()))
			if emptyBatches >= d.cfg.EmptyBatchThreshold && selectorErrors >= d.cfg.EmptyBatchThreshold {
				d.save(logger, &cp)
				return Summary{}, fmt.Errorf("candidate store unavailable: %w", lastSelectErr)
			}
			d.save(logger, &cp)
			if stop := d.sleep(ctx, d.cfg.BatchDelay.Std()); stop {
				return d.finish(logger, &cp, baseline, started, OutcomeInterrupted)
			}
			continue
		}
		selectorErrors = 0

		if len(candidates) == 0 {
			// A window can come back empty because every key in it already
			// has a narrative. The cursor still moves past those keys so each
			// is credited as skipped exactly once.
			if n := len(filtered); n > 0 {
				cp.LastProcessedKey = filtered[n-1]
				creditSkipped(&cp, filtered, &filteredIdx)
			}
			emptyBatches++
			if emptyBatches >= d.cfg.EmptyBatchThreshold {
				return d.finish(logger, &cp, baseline, started, OutcomeExhausted)
			}
			// A contiguous block of already-processed keys looks the same as
			// the end of the table, so nudge the cursor forward and retry.
			next := cp.LastProcessedKey + d.cfg.SkipIncrement
			if maxKey >= 0 && next > maxKey {
				return d.finish(logger, &cp, baseline, started, OutcomeExhausted)
			}
			logger.Info("empty batch, skipping ahead",
				slog.String("component", "driver"),
				slog.Int("empty_batches", emptyBatches),
				slog.Int64("cursor", cp.LastProcessedKey),
				slog.Int64("next_cursor", next))
			cp.LastProcessedKey = next
			creditSkipped(&cp, filtered, &filteredIdx)
			d.save(logger, &cp)
			if stop := d.sleep(ctx, d.cfg.BatchDelay.Std()); stop {
				return d.finish(logger, &cp, baseline, started, OutcomeInterrupted)
			}
			continue
		}
		emptyBatches = 0

		events := make([]data.ProgressEvent, 0, len(candidates))
		for _, candidate := range candidates {
			if ctx.Err() != nil {
				d.publish(ctx, logger, events)
				return d.finish(logger, &cp, baseline, started, OutcomeInterrupted)
			}
			if d.cfg.MaxProcessed > 0 && cp.Processed-baseline.Processed >= d.cfg.MaxProcessed {
				d.publish(ctx, logger, events)
				return d.finish(logger, &cp, baseline, started, OutcomeCeiling)
			}
			if err := d.limiter.Wait(ctx); err != nil {
				d.publish(ctx, logger, events)
				return d.finish(logger, &cp, baseline, started, OutcomeInterrupted)
			}

			rateLimited := d.processOne(ctx, logger, candidate, &cp, &events)
			cp.Processed++
			cp.LastProcessedKey = candidate.Profile.CRDNumber
			creditSkipped(&cp, filtered, &filteredIdx)

			if rateLimited {
				rateLimitRun++
				cp.RateLimitHits++
				if rateLimitRun >= d.cfg.MaxRateLimitHits {
					if d.cfg.RateLimitAction == config.RateLimitActionStop || d.doublings >= d.cfg.MaxBackoffDoublings {
						d.publish(ctx, logger, events)
						return d.finish(logger, &cp, baseline, started, OutcomeReconfigure)
					}
					d.backOff(logger)
					rateLimitRun = 0
				}
			} else {
				rateLimitRun = 0
			}
		}

		d.publish(ctx, logger, events)
		d.save(logger, &cp)
		logger.Info("batch complete",
			slog.String("component", "driver"),
			slog.Int("batch_size", len(candidates)),
			slog.Int64("processed", cp.Processed),
			slog.Int64("succeeded", cp.Succeeded),
			slog.Int64("failed", cp.Failed),
			slog.Int64("cursor", cp.LastProcessedKey))
		if stop := d.sleep(ctx, d.cfg.BatchDelay.Std()); stop {
			return d.finish(logger, &cp, baseline, started, OutcomeInterrupted)
		}
	}
}

// creditSkipped counts the filtered keys the cursor has now passed. Keys
// still ahead of the cursor are left alone; the next window re-fetches them,
// so they are credited exactly once no matter where a run stops.
func creditSkipped(cp *checkpoint.Checkpoint, filtered []int64, idx *int) {
	for *idx < len(filtered) && filtered[*idx] <= cp.LastProcessedKey {
		cp.Skipped++
		*idx++
	}
}

// processOne runs one candidate through generation, embedding and
// persistence, updating the checkpoint counters. It reports whether a
// provider rate limit was hit so the driver can escalate.
func (d *Driver) processOne(ctx context.Context, logger *slog.Logger, candidate Candidate, cp *checkpoint.Checkpoint, events *[]data.ProgressEvent) bool {
	key := candidate.Profile.CRDNumber

	var narrative data.Narrative
	if candidate.Narrative != nil {
		narrative = *candidate.Narrative
	} else {
		text, err := d.deps.Generator.Generate(ctx, candidate.Profile)
		if err != nil {
			cp.Failed++
			cp.RecordError(key, "generate", err.Error())
			logger.Warn("narrative generation failed",
				slog.String("component", "driver"),
				slog.Int64("crd_number", key),
				slog.String("error", err.Error()))
			return generator.IsRateLimit(err)
		}
		narrative = data.Narrative{
			CRDNumber:     key,
			NarrativeText: text,
			Source:        d.deps.SourceTag,
			GeneratedAt:   time.Now().UTC(),
		}
	}

	vector, err := d.deps.Engine.Embed(ctx, narrative.NarrativeText)
	if err != nil {
		if candidate.Narrative != nil {
			// Embed mode exists only to fill the vector, so a failed
			// embedding is a failed entity.
			cp.Failed++
			cp.RecordError(key, "embed", err.Error())
			logger.Warn("embedding failed",
				slog.String("component", "driver"),
				slog.Int64("crd_number", key),
				slog.String("error", err.Error()))
			return generator.IsRateLimit(err)
		}
		// In narrative mode the text is still worth keeping; the embedding
		// can be backfilled by a later embed-mode pass.
		cp.RecordError(key, "embed", err.Error())
		logger.Warn("embedding failed, persisting text without vector",
			slog.String("component", "driver"),
			slog.Int64("crd_number", key),
			slog.String("error", err.Error()))
	} else {
		narrative.Embedding = vector
	}

	if err := d.deps.Database.UpsertNarrative(ctx, &narrative); err != nil {
		cp.Failed++
		cp.RecordError(key, "persist", err.Error())
		logger.Warn("narrative upsert failed",
			slog.String("component", "driver"),
			slog.Int64("crd_number", key),
			slog.String("error", err.Error()))
		return false
	}
	cp.Succeeded++

	d.mirror(ctx, logger, narrative)
	if d.deps.Buffer != nil {
		*events = append(*events, data.ProgressEvent{
			CRDNumber: narrative.CRDNumber,
			Stage:     d.cfg.Mode,
			Source:    narrative.Source,
			At:        time.Now().UTC(),
		})
	}
	return false
}

// mirror pushes the persisted narrative to the optional collaborators. These
// are best-effort; a failure here never fails the entity, the database row
// is already durable.
func (d *Driver) mirror(ctx context.Context, logger *slog.Logger, narrative data.Narrative) {
	if d.deps.Sink != nil && len(narrative.Embedding) > 0 {
		if err := d.deps.Sink.Upsert(ctx, []data.Narrative{narrative}, d.cfg.EmbeddingDimensions); err != nil {
			logger.Warn("could not mirror narrative to vector store",
				slog.String("component", "driver"),
				slog.Int64("crd_number", narrative.CRDNumber),
				slog.String("error", err.Error()))
		}
	}
	if d.deps.Storage != nil && narrative.NarrativeText != "" {
		if err := d.deps.Storage.Upload(ctx, storage.ArtifactKey(narrative.CRDNumber), narrative.NarrativeText); err != nil {
			logger.Warn("could not archive narrative artifact",
				slog.String("component", "driver"),
				slog.Int64("crd_number", narrative.CRDNumber),
				slog.String("error", err.Error()))
		}
	}
}

// publish sends the batch's progress events in one go, mirroring how the
// checkpoint is persisted once per batch.
func (d *Driver) publish(ctx context.Context, logger *slog.Logger, events []data.ProgressEvent) {
	if d.deps.Buffer == nil || len(events) == 0 {
		return
	}
	if err := d.deps.Buffer.EnqueueBatch(ctx, events); err != nil {
		logger.Warn("could not publish progress events",
			slog.String("component", "driver"),
			slog.Int("count", len(events)),
			slog.String("error", err.Error()))
	}
}

// backOff doubles the inter-item delay after a run of rate-limit hits.
func (d *Driver) backOff(logger *slog.Logger) {
	d.doublings++
	if d.itemDelay <= 0 {
		d.itemDelay = time.Second
	} else {
		d.itemDelay *= 2
	}
	d.limiter.SetLimit(rate.Every(d.itemDelay))
	logger.Warn("provider rate limited, backing off",
		slog.String("component", "driver"),
		slog.Duration("item_delay", d.itemDelay),
		slog.Int("doublings", d.doublings))
}

func (d *Driver) reportRemaining(ctx context.Context, logger *slog.Logger) {
	var (
		remaining int64
		err       error
	)
	switch d.cfg.Mode {
	case config.ModeEmbed:
		remaining, err = d.deps.Database.CountNarrativesMissingEmbedding(ctx)
	default:
		remaining, err = d.deps.Database.CountProfilesMissingNarrative(ctx)
	}
	if err != nil {
		logger.Warn("could not count remaining work",
			slog.String("component", "driver"),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("remaining work",
		slog.String("component", "driver"),
		slog.String("mode", d.cfg.Mode),
		slog.Int64("remaining", remaining))
}

// sleep waits for the given delay or until the context is cancelled, in
// which case it reports that the run should stop. The checkpoint is always
// persisted before this is called, so a crash mid-sleep loses nothing.
func (d *Driver) sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() != nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

func (d *Driver) save(logger *slog.Logger, cp *checkpoint.Checkpoint) {
	if err := d.deps.Checkpoints.Save(*cp); err != nil {
		logger.Error("could not persist checkpoint",
			slog.String("component", "driver"),
			slog.String("error", err.Error()))
	}
}

func (d *Driver) finish(logger *slog.Logger, cp *checkpoint.Checkpoint, baseline checkpoint.Checkpoint, started time.Time, outcome Outcome) (Summary, error) {
	d.save(logger, cp)

	elapsed := time.Since(started)
	summary := Summary{
		Outcome:       outcome,
		Processed:     cp.Processed - baseline.Processed,
		Succeeded:     cp.Succeeded - baseline.Succeeded,
		Failed:        cp.Failed - baseline.Failed,
		Skipped:       cp.Skipped - baseline.Skipped,
		RateLimitHits: cp.RateLimitHits - baseline.RateLimitHits,
		Elapsed:       elapsed,
	}
	if elapsed > 0 {
		summary.Throughput = float64(summary.Processed) / elapsed.Seconds()
	}

	logger.Info("run finished",
		slog.String("component", "driver"),
		slog.String("outcome", outcome.String()),
		slog.Int64("processed", summary.Processed),
		slog.Int64("succeeded", summary.Succeeded),
		slog.Int64("failed", summary.Failed),
		slog.Int64("skipped", summary.Skipped),
		slog.Int64("rate_limit_hits", summary.RateLimitHits),
		slog.Duration("elapsed", elapsed),
		slog.Float64("per_second", summary.Throughput))
	return summary, nil
}
