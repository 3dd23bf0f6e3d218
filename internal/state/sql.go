package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"feedwatch/relay/internal/database"
	"feedwatch/relay/internal/models"
	"feedwatch/relay/internal/timestamp"
)

// upsertWatermark never moves a stored watermark backwards, even when a
// stale State is saved.
const upsertWatermark = `
	INSERT INTO watermarks (feed_url, watermark, watermark_ns, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT (feed_url) DO UPDATE SET
		watermark = excluded.watermark,
		watermark_ns = excluded.watermark_ns,
		updated_at = CURRENT_TIMESTAMP
	WHERE watermarks.watermark_ns < excluded.watermark_ns`

// overwriteWatermark replaces a row whose stored watermark could not be read.
const overwriteWatermark = `
	INSERT INTO watermarks (feed_url, watermark, watermark_ns, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT (feed_url) DO UPDATE SET
		watermark = excluded.watermark,
		watermark_ns = excluded.watermark_ns,
		updated_at = CURRENT_TIMESTAMP`

// SQLStore keeps State in the 'watermarks' table of SQLite or PostgreSQL.
type SQLStore struct {
	db *database.DB

	mu      sync.Mutex
	corrupt map[string]bool // Rows skipped by Load, overwritten by the next Save
}

// NewSQLStore creates a store on an open, migrated database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db, corrupt: make(map[string]bool)}
}

// Load reads all watermarks. A failed query yields an empty State. Rows with
// an unparseable watermark are skipped and replaced on the next Save, whatever
// their stored watermark_ns.
func (s *SQLStore) Load(ctx context.Context) *State {
	var rows []models.WatermarkRow
	err := s.db.SelectContext(ctx, &rows, "SELECT feed_url, watermark, watermark_ns FROM watermarks")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load watermarks, starting fresh")
		return New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := New()
	for _, row := range rows {
		t, err := timestamp.ParseState(row.Watermark)
		if err != nil {
			log.Warn().Err(err).Str("feed", row.FeedURL).Msg("Skipping corrupt watermark row")
			s.corrupt[row.FeedURL] = true
			continue
		}
		st.Set(row.FeedURL, t)
	}
	return st
}

// Save upserts every watermark in one transaction.
func (s *SQLStore) Save(ctx context.Context, st *State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertWatermark))
	if err != nil {
		return fmt.Errorf("failed to prepare watermark upsert: %w", err)
	}
	defer stmt.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	var repaired []string
	for _, feedURL := range st.FeedURLs() {
		t, _ := st.Get(feedURL)
		query := stmt
		if s.corrupt[feedURL] {
			query, err = tx.PreparexContext(ctx, tx.Rebind(overwriteWatermark))
			if err != nil {
				return fmt.Errorf("failed to prepare watermark overwrite: %w", err)
			}
			defer query.Close()
			repaired = append(repaired, feedURL)
		}
		if _, err := query.ExecContext(ctx, feedURL, timestamp.FormatState(t), t.UnixNano()); err != nil {
			return fmt.Errorf("failed to save watermark for %s: %w", feedURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit watermarks: %w", err)
	}
	for _, feedURL := range repaired {
		delete(s.corrupt, feedURL)
		log.Info().Str("feed", feedURL).Msg("Replaced corrupt watermark row")
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
