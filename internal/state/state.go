// Package state holds the per-feed watermarks and persists them.
package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"feedwatch/relay/internal/database"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// State maps feed URLs to the publish time of the most recently delivered
// item. It is not safe for concurrent use; one cycle owns it at a time.
type State struct {
	lastSeen map[string]time.Time
}

// New returns an empty state.
func New() *State {
	return &State{lastSeen: make(map[string]time.Time)}
}

// Get returns the watermark of a feed. ok is false when the feed has never
// been delivered.
func (s *State) Get(feedURL string) (t time.Time, ok bool) {
	t, ok = s.lastSeen[feedURL]
	return t, ok
}

// Set overwrites the watermark of a feed. Callers keep it monotonic.
func (s *State) Set(feedURL string, t time.Time) {
	s.lastSeen[feedURL] = t
}

// Len returns the number of feeds with a watermark.
func (s *State) Len() int {
	return len(s.lastSeen)
}

// FeedURLs returns the feeds with a watermark, sorted.
func (s *State) FeedURLs() []string {
	urls := make([]string, 0, len(s.lastSeen))
	for u := range s.lastSeen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Store loads and saves State.
type Store interface {
	// Load never fails: a missing or unreadable source yields an empty State.
	Load(ctx context.Context) *State
	Save(ctx context.Context, st *State) error
	Close() error
}

// Options selects and configures a Store backend.
type Options struct {
	Backend     string
	Path        string // State file for "file", database file for "sqlite"
	DatabaseURL string // Connection URL for "postgres"
	ReadOnly    bool
}

// Open creates the Store selected by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.Path), nil
	case BackendSQLite, BackendPostgres:
		driver, dsn := database.DriverSQLite, opts.Path
		if opts.Backend == BackendPostgres {
			driver, dsn = database.DriverPostgres, opts.DatabaseURL
		}
		dbCfg := database.NewConfig(driver, dsn)
		dbCfg.ReadOnly = opts.ReadOnly
		db, err := database.NewDB(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", opts.Backend)
	}
}
