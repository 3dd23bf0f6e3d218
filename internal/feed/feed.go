// Package feed fetches feed documents over HTTP and parses them into raw items.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"feedwatch/relay/internal/models"
)

const (
	defaultUserAgent = "feedwatch-relay/1.0"
	defaultTimeout   = 20 * time.Second
	maxDocumentSize  = 10 << 20
)

// Document is a parsed feed: its channel title and items in source order.
type Document struct {
	Title string
	Items []models.RawItem
}

// StatusError reports a non-2xx response from the feed server.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed %s returned HTTP %d", e.URL, e.StatusCode)
}

// Source fetches and parses feeds.
type Source struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
}

// NewSource creates a Source. A zero timeout uses the default.
func NewSource(timeout time.Duration, userAgent string) *Source {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Source{
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
	}
}

// Fetch downloads and parses the feed at url.
func (s *Source) Fetch(ctx context.Context, url string) (*Document, error) {
	body, err := s.download(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.Parse(body)
}

func (s *Source) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Parse parses a feed document. RSS, Atom and JSON Feed are accepted.
func (s *Source) Parse(data []byte) (*Document, error) {
	parsed, err := s.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	doc := &Document{
		Title: parsed.Title,
		Items: make([]models.RawItem, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		published := item.Published
		if published == "" {
			// Atom entries may only carry <updated>.
			published = item.Updated
		}
		description := item.Description
		if description == "" {
			description = item.Content
		}
		doc.Items = append(doc.Items, models.RawItem{
			Title:       item.Title,
			Link:        item.Link,
			Description: description,
			Published:   published,
		})
	}
	return doc, nil
}
