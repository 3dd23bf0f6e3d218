package process

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"feedwatch/relay/internal/models"
	"feedwatch/relay/internal/state"
)

// CycleReport summarizes one pass over all feeds.
type CycleReport struct {
	ID        string
	Feeds     int
	Changed   []string         // Feeds whose watermark moved
	Errors    map[string]error // Per-feed failures, keyed by feed URL
	Delivered int64
	SaveErr   error
	Duration  time.Duration
}

// Processor runs cycles over a fixed feed table.
type Processor struct {
	driver *Driver
	store  state.Store
	feeds  []models.Feed
}

// NewProcessor creates a Processor. The feed table is copied.
func NewProcessor(driver *Driver, store state.Store, feeds []models.Feed) (*Processor, error) {
	if driver == nil {
		return nil, fmt.Errorf("driver cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("state store cannot be nil")
	}
	return &Processor{
		driver: driver,
		store:  store,
		feeds:  append([]models.Feed(nil), feeds...),
	}, nil
}

// RunCycle loads the watermarks, processes every feed in order and saves the
// watermarks if any of them moved. Feed and save failures are logged and
// reported, never returned: one feed cannot stop the others.
func (p *Processor) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:     uuid.NewString(),
		Feeds:  len(p.feeds),
		Errors: make(map[string]error),
	}
	logger := log.With().Str("cycle_id", report.ID).Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	deliveredBefore, _ := p.driver.Stats()

	st := p.store.Load(ctx)
	logger.Info().Int("feeds", len(p.feeds)).Int("watermarks", st.Len()).Msg("Starting processing cycle")

	for _, f := range p.feeds {
		if ctx.Err() != nil {
			logger.Info().Err(ctx.Err()).Msg("Cycle cancelled, skipping remaining feeds")
			break
		}

		changed, err := p.driver.ProcessFeed(ctx, f, st)
		if err != nil {
			report.Errors[f.URL] = err
			logger.Error().Err(err).Str("feed", f.URL).Msg("Error processing feed")
		}
		if changed {
			report.Changed = append(report.Changed, f.URL)
		}
	}

	if len(report.Changed) > 0 {
		// Progress already delivered is saved even when the cycle was cancelled.
		if err := p.store.Save(context.WithoutCancel(ctx), st); err != nil {
			report.SaveErr = err
			logger.Error().Err(err).Msg("Failed to save watermarks")
		} else {
			logger.Debug().Strs("feeds", report.Changed).Msg("Watermarks saved")
		}
	}

	deliveredAfter, _ := p.driver.Stats()
	report.Delivered = deliveredAfter - deliveredBefore
	report.Duration = time.Since(start)

	logger.Info().
		Int64("delivered", report.Delivered).
		Int("changed_feeds", len(report.Changed)).
		Int("failed_feeds", len(report.Errors)).
		Dur("duration", report.Duration).
		Msg("Processing cycle finished")

	return report
}
