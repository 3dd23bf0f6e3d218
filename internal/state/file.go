package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"feedwatch/relay/internal/timestamp"
)

// fileDocument is the on-disk layout of the state file.
type fileDocument struct {
	LastSeen map[string]string `json:"last_seen"`
}

// FileStore keeps State in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state file. A missing file, malformed JSON or any
// unparseable watermark yields an empty State.
func (s *FileStore) Load(ctx context.Context) *State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", s.path).Msg("No state file, starting fresh")
		} else {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to read state file, starting fresh")
		}
		return New()
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Corrupt state file, starting fresh")
		return New()
	}

	st := New()
	for feedURL, raw := range doc.LastSeen {
		t, err := timestamp.ParseState(raw)
		if err != nil {
			log.Warn().Err(err).Str("path", s.path).Str("feed", feedURL).Msg("Corrupt state file, starting fresh")
			return New()
		}
		st.Set(feedURL, t)
	}
	return st
}

// Save writes the state file through a temporary file and a rename, so a
// crash never leaves a truncated document behind.
func (s *FileStore) Save(ctx context.Context, st *State) error {
	doc := fileDocument{LastSeen: make(map[string]string, st.Len())}
	for feedURL, t := range st.lastSeen {
		doc.LastSeen[feedURL] = timestamp.FormatState(t)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
