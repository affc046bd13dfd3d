package repository

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/petlink/petlink/internal/model"
)

// ScanEventRepository provides database access for pet scan events.
type ScanEventRepository struct {
	repo *Repository
}

// NewScanEventRepository creates a new ScanEventRepository.
func NewScanEventRepository(repo *Repository) *ScanEventRepository {
	return &ScanEventRepository{repo: repo}
}

// BulkInsert inserts multiple scan events with idempotency via ON CONFLICT DO NOTHING.
func (r *ScanEventRepository) BulkInsert(ctx context.Context, events []*model.ScanEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO pet_scans (
			id, event_id, pet_code, referrer, user_agent,
			visitor_hash, country_code, scanned_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.PetCode,
			nullableString(event.Referrer),
			nullableString(event.UserAgent),
			event.VisitorHash,
			nullableString(event.CountryCode),
			event.ScannedAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert scan %d: %w", i, err)
		}
	}

	return nil
}

// ListRecent returns the most recent scans of a pet made at or after since,
// newest first. Pass the pet's creation time so scans of an earlier pet that
// held the same code stay out.
func (r *ScanEventRepository) ListRecent(ctx context.Context, petCode string, since time.Time, limit int) ([]*model.ScanEvent, error) {
	query := `
		SELECT id, pet_code, COALESCE(referrer, ''), COALESCE(user_agent, ''),
		       visitor_hash, COALESCE(country_code, ''), scanned_at
		FROM pet_scans
		WHERE pet_code = $1 AND scanned_at >= $2
		ORDER BY scanned_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.repo.pool.Query(ctx, query, petCode, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	events := make([]*model.ScanEvent, 0, limit)
	for rows.Next() {
		var e model.ScanEvent
		if err := rows.Scan(&e.ID, &e.PetCode, &e.Referrer, &e.UserAgent, &e.VisitorHash, &e.CountryCode, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}

	return events, nil
}

// DeleteForPet removes the scan history of a pet.
func (r *ScanEventRepository) DeleteForPet(ctx context.Context, petCode string) error {
	if _, err := r.repo.pool.Exec(ctx, `DELETE FROM pet_scans WHERE pet_code = $1`, petCode); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}
	return nil
}

// Summarize aggregates a list of scans.
func Summarize(events []*model.ScanEvent) *model.ScanSummary {
	summary := &model.ScanSummary{
		Referrers: make(map[string]int64),
		Recent:    events,
	}
	seen := make(map[string]bool)

	for _, event := range events {
		summary.Total++

		if event.VisitorHash != "" && !seen[event.VisitorHash] {
			seen[event.VisitorHash] = true
			summary.UniqueVisitors++
		}

		if event.Referrer != "" {
			summary.Referrers[referrerHost(event.Referrer)]++
		} else {
			summary.Referrers["(direct)"]++
		}
	}

	return summary
}

func referrerHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(unknown)"
	}
	return u.Hostname()
}
