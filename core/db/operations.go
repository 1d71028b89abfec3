package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/Turnstyle/ria-hunter-sub000/core/data"
)

// Stats is the row-count snapshot reported by the audit command.
type Stats struct {
	Profiles          int64
	Narratives        int64
	Embedded          int64
	MissingNarratives int64
	MissingEmbeddings int64
	NullLegalNames    int64
}

// DuplicateFirm is a legal name registered under more than one CRD number.
type DuplicateFirm struct {
	LegalName string `gorm:"column:legal_name"`
	CRDCount  int64  `gorm:"column:crd_count"`
}

func (d *pgDatabase) FetchProfileWindow(ctx context.Context, afterKey int64, limit int) ([]data.Profile, error) {
	var profiles []data.Profile
	err := d.db.WithContext(ctx).
		Where("crd_number > ?", afterKey).
		Order("crd_number ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("fetching profile window after %d: %w", afterKey, err)
	}
	return profiles, nil
}

func (d *pgDatabase) ExistingNarrativeKeys(ctx context.Context, keys []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}
	var found []int64
	err := d.db.WithContext(ctx).
		Model(&data.Narrative{}).
		Where("crd_number IN ?", keys).
		Pluck("crd_number", &found).Error
	if err != nil {
		return nil, fmt.Errorf("checking existing narratives: %w", err)
	}
	for _, key := range found {
		existing[key] = struct{}{}
	}
	return existing, nil
}

func (d *pgDatabase) FetchNarrativesMissingEmbedding(ctx context.Context, afterKey int64, limit int) ([]data.Narrative, error) {
	var narratives []data.Narrative
	err := d.db.WithContext(ctx).
		Where("embedding IS NULL AND crd_number > ?", afterKey).
		Order("crd_number ASC").
		Limit(limit).
		Find(&narratives).Error
	if err != nil {
		return nil, fmt.Errorf("fetching narratives missing embedding after %d: %w", afterKey, err)
	}
	return narratives, nil
}

// UpsertNarrative is idempotent: a conflict on crd_number replaces the
// existing row's text and embedding instead of erroring or duplicating.
func (d *pgDatabase) UpsertNarrative(ctx context.Context, narrative *data.Narrative) error {
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "crd_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"narrative_text", "embedding", "source", "generated_at"}),
		}).
		Create(narrative).Error
	if err != nil {
		return fmt.Errorf("upserting narrative for crd %d: %w", narrative.CRDNumber, err)
	}
	return nil
}

func (d *pgDatabase) MaxProfileKey(ctx context.Context) (int64, error) {
	var maxKey int64
	err := d.db.WithContext(ctx).
		Model(&data.Profile{}).
		Select("COALESCE(MAX(crd_number), 0)").
		Scan(&maxKey).Error
	if err != nil {
		return 0, fmt.Errorf("fetching max profile key: %w", err)
	}
	return maxKey, nil
}

func (d *pgDatabase) CountProfilesMissingNarrative(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Raw(
		`SELECT count(*) FROM ria_profiles p
		 LEFT JOIN ria_narratives n ON n.crd_number = p.crd_number
		 WHERE n.crd_number IS NULL`).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting profiles missing narrative: %w", err)
	}
	return count, nil
}

func (d *pgDatabase) CountNarrativesMissingEmbedding(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&data.Narrative{}).
		Where("embedding IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting narratives missing embedding: %w", err)
	}
	return count, nil
}

func (d *pgDatabase) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := d.db.WithContext(ctx).Model(&data.Profile{}).Count(&stats.Profiles).Error; err != nil {
		return stats, fmt.Errorf("counting profiles: %w", err)
	}
	if err := d.db.WithContext(ctx).Model(&data.Narrative{}).Count(&stats.Narratives).Error; err != nil {
		return stats, fmt.Errorf("counting narratives: %w", err)
	}
	if err := d.db.WithContext(ctx).Model(&data.Narrative{}).Where("embedding IS NOT NULL").Count(&stats.Embedded).Error; err != nil {
		return stats, fmt.Errorf("counting embedded narratives: %w", err)
	}
	var err error
	if stats.MissingNarratives, err = d.CountProfilesMissingNarrative(ctx); err != nil {
		return stats, err
	}
	if stats.MissingEmbeddings, err = d.CountNarrativesMissingEmbedding(ctx); err != nil {
		return stats, err
	}
	if err := d.db.WithContext(ctx).Model(&data.Profile{}).Where("legal_name IS NULL OR legal_name = ''").Count(&stats.NullLegalNames).Error; err != nil {
		return stats, fmt.Errorf("counting null legal names: %w", err)
	}
	return stats, nil
}

func (d *pgDatabase) DuplicateFirmNames(ctx context.Context, limit int) ([]DuplicateFirm, error) {
	var duplicates []DuplicateFirm
	err := d.db.WithContext(ctx).Raw(
		`SELECT legal_name, count(*) AS crd_count FROM ria_profiles
		 WHERE legal_name IS NOT NULL AND legal_name != ''
		 GROUP BY legal_name HAVING count(*) > 1
		 ORDER BY count(*) DESC, legal_name ASC LIMIT ?`, limit).Scan(&duplicates).Error
	if err != nil {
		return nil, fmt.Errorf("finding duplicate firm names: %w", err)
	}
	return duplicates, nil
}
