// Package process runs the incremental delivery of feed items: one feed at a
// time, batch by batch, advancing the feed's watermark as batches succeed.
package process

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"feedwatch/relay/internal/feed"
	"feedwatch/relay/internal/models"
	"feedwatch/relay/internal/notify"
	"feedwatch/relay/internal/sanitize"
	"feedwatch/relay/internal/selector"
	"feedwatch/relay/internal/state"
	"feedwatch/relay/internal/timestamp"
)

const (
	// DefaultBatchSize is the webhook's limit of embeds per message.
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
)

// FeedSource fetches and parses one feed.
type FeedSource interface {
	Fetch(ctx context.Context, url string) (*feed.Document, error)
}

// Options tunes a Driver.
type Options struct {
	BatchSize     int
	BatchDelay    time.Duration // Minimum spacing between webhook calls, 0 disables pacing
	FirstRunLimit int
}

// Driver delivers new items of a feed and advances its watermark.
type Driver struct {
	source        FeedSource
	notifier      notify.Notifier
	pacer         *rate.Limiter
	batchSize     int
	firstRunLimit int

	delivered     atomic.Int64
	failedBatches atomic.Int64
}

// NewDriver creates a Driver.
func NewDriver(source FeedSource, notifier notify.Notifier, opts Options) (*Driver, error) {
	if source == nil {
		return nil, fmt.Errorf("feed source cannot be nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FirstRunLimit <= 0 {
		opts.FirstRunLimit = selector.DefaultFirstRunLimit
	}

	limit := rate.Inf
	if opts.BatchDelay > 0 {
		limit = rate.Every(opts.BatchDelay)
	}

	return &Driver{
		source:        source,
		notifier:      notifier,
		pacer:         rate.NewLimiter(limit, 1),
		batchSize:     opts.BatchSize,
		firstRunLimit: opts.FirstRunLimit,
	}, nil
}

// ProcessFeed delivers the items of f that are newer than its watermark in st.
// Batches go out in order; the first failed batch stops the feed for this
// cycle. The watermark in st is advanced through the last delivered batch and
// changed reports whether it moved. Nothing is persisted here.
func (d *Driver) ProcessFeed(ctx context.Context, f models.Feed, st *state.State) (changed bool, err error) {
	logger := loggerFrom(ctx).With().Str("feed", f.URL).Logger()

	doc, err := d.source.Fetch(ctx, f.URL)
	if err != nil {
		return false, fmt.Errorf("failed to fetch feed: %w", err)
	}

	dated, skipped := timestamp.DateItems(doc.Items)
	if skipped > 0 {
		logger.Debug().Int("skipped", skipped).Msg("Ignoring items without a usable publish date")
	}

	last, seen := st.Get(f.URL)
	sel := selector.Select(dated, last, seen, d.firstRunLimit)
	if sel.Empty() {
		logger.Debug().Int("items", len(doc.Items)).Msg("No new items")
		return false, nil
	}

	title := doc.Title
	if title == "" {
		title = f.DisplayName()
	}

	batches := selector.Batches(sel.Items, d.batchSize)
	logger.Info().
		Int("new_items", len(sel.Items)).
		Int("batches", len(batches)).
		Bool("first_run", !seen).
		Time("newest", sel.Newest).
		Msg("Delivering new items")

	current := last
	var dispatchErr error
	for i, batch := range batches {
		if err := d.pacer.Wait(ctx); err != nil {
			dispatchErr = fmt.Errorf("pacing interrupted before batch %d/%d: %w", i+1, len(batches), err)
			break
		}

		msg := notify.Message{FeedTitle: title, Color: f.Color, Cards: cards(batch)}
		if err := d.notifier.Notify(ctx, msg); err != nil {
			d.failedBatches.Add(1)
			dispatchErr = fmt.Errorf("failed to deliver batch %d/%d: %w", i+1, len(batches), err)
			break
		}

		for j, item := range batch {
			if item.PublishedAt.After(current) {
				current = item.PublishedAt
			}
			logger.Info().Str("title", msg.Cards[j].Title).Str("link", item.Link).Msg("Sent update")
		}
		changed = true
		d.delivered.Add(int64(len(batch)))
	}

	if changed {
		st.Set(f.URL, current)
	}
	return changed, dispatchErr
}

// Stats returns the items delivered and batches rejected since creation.
func (d *Driver) Stats() (delivered, failedBatches int64) {
	return d.delivered.Load(), d.failedBatches.Load()
}

func cards(batch []models.DatedItem) []notify.Card {
	out := make([]notify.Card, len(batch))
	for i, item := range batch {
		out[i] = notify.Card{
			Title:       sanitize.Title(item.Title),
			Link:        item.Link,
			Description: sanitize.Description(item.Description),
		}
	}
	return out
}

// loggerFrom returns the logger attached to ctx, or the global logger.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
