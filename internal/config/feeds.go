package config

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"feedwatch/relay/internal/models"
)

// DefaultFeeds returns the compiled-in feed table.
func DefaultFeeds() []models.Feed {
	return []models.Feed{
		{URL: "https://archlinux.org/feeds/packages/x86_64/core/", Color: 1791981, Name: "Arch Linux: Core packages"},
		{URL: "https://archlinux.org/feeds/news/", Color: 13438481, Name: "Arch Linux: News"},
	}
}

// feedsDocument is the YAML layout of a feed table file.
type feedsDocument struct {
	Feeds []models.Feed `yaml:"feeds"`
}

// LoadFeeds resolves the feed table. An empty location yields DefaultFeeds;
// otherwise location is a local path or an http(s) URL to a .yaml, .yml or
// .csv file.
func LoadFeeds(ctx context.Context, location string) ([]models.Feed, error) {
	if location == "" {
		return DefaultFeeds(), nil
	}

	data, ext, err := readFeedsSource(ctx, location)
	if err != nil {
		return nil, err
	}

	var feeds []models.Feed
	switch ext {
	case ".yaml", ".yml":
		feeds, err = parseFeedsYAML(data)
	case ".csv":
		feeds, err = parseFeedsCSV(strings.NewReader(string(data)))
	default:
		return nil, fmt.Errorf("unsupported feed table format %q (want .yaml, .yml or .csv)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed table %s: %w", location, err)
	}

	if err := validateFeeds(feeds); err != nil {
		return nil, fmt.Errorf("invalid feed table %s: %w", location, err)
	}

	log.Debug().Str("source", location).Int("feeds", len(feeds)).Msg("Loaded feed table")
	return feeds, nil
}

func readFeedsSource(ctx context.Context, location string) ([]byte, string, error) {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		data, err := downloadFeeds(ctx, location)
		if err != nil {
			return nil, "", err
		}
		return data, strings.ToLower(path.Ext(u.Path)), nil
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read feed table: %w", err)
	}
	return data, strings.ToLower(path.Ext(location)), nil
}

func downloadFeeds(ctx context.Context, location string) ([]byte, error) {
	log.Info().Str("url", location).Msg("Downloading feed table")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download feed table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download feed table: HTTP status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed table: %w", err)
	}
	return data, nil
}

func parseFeedsYAML(data []byte) ([]models.Feed, error) {
	var doc feedsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Feeds, nil
}

// parseFeedsCSV reads a table with a header row. "url" is required, "color"
// (decimal or #RRGGBB) and "name" are optional.
func parseFeedsCSV(r io.Reader) ([]models.Feed, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	urlIdx := findColumnIndex(header, "url")
	if urlIdx < 0 {
		return nil, fmt.Errorf("required column 'url' not found in CSV header")
	}
	colorIdx := findColumnIndex(header, "color")
	nameIdx := findColumnIndex(header, "name")

	var feeds []models.Feed
	line := 1 // Header was already read
	for {
		line++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}

		f := models.Feed{
			URL:  cell(record, urlIdx),
			Name: cell(record, nameIdx),
		}
		if raw := cell(record, colorIdx); raw != "" {
			f.Color, err = ParseColor(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}

// ParseColor accepts a decimal RGB integer or a #RRGGBB / 0xRRGGBB hex string.
func ParseColor(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	base := 10
	switch {
	case strings.HasPrefix(s, "#"):
		s, base = s[1:], 16
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		s, base = s[2:], 16
	}
	v, err := strconv.ParseInt(s, base, 32)
	if err != nil || v < 0 || v > 0xFFFFFF {
		return 0, fmt.Errorf("invalid color %q", raw)
	}
	return int(v), nil
}

func validateFeeds(feeds []models.Feed) error {
	if len(feeds) == 0 {
		return fmt.Errorf("no feeds defined")
	}
	seen := make(map[string]bool, len(feeds))
	for i, f := range feeds {
		if f.URL == "" {
			return fmt.Errorf("feed %d has an empty URL", i+1)
		}
		if seen[f.URL] {
			return fmt.Errorf("duplicate feed URL %s", f.URL)
		}
		if f.Color < 0 || f.Color > 0xFFFFFF {
			return fmt.Errorf("feed %s has an invalid color %d", f.URL, f.Color)
		}
		seen[f.URL] = true
	}
	return nil
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), columnName) {
			return i
		}
	}
	return -1
}

func cell(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}
