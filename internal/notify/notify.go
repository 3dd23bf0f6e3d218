// Package notify delivers batches of feed items to a webhook endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUsername is the sender display name shown in the destination channel.
const DefaultUsername = "Arch Linux Bot"

// Card is one sanitized item ready for display.
type Card struct {
	Title       string
	Link        string
	Description string
}

// Message is a batch of cards from one feed.
type Message struct {
	FeedTitle string
	Color     int
	Cards     []Card
}

// Notifier delivers a Message. A nil error means the endpoint accepted it.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d: %s", e.StatusCode, e.Body)
}

type webhookPayload struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Description string      `json:"description"`
	Color       int         `json:"color"`
	Footer      embedFooter `json:"footer"`
	Timestamp   string      `json:"timestamp"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// Webhook posts Discord-compatible embed payloads.
type Webhook struct {
	url      string
	username string
	client   *http.Client
	now      func() time.Time
}

// NewWebhook creates a Webhook notifier for url.
func NewWebhook(url, username string, timeout time.Duration) *Webhook {
	if username == "" {
		username = DefaultUsername
	}
	return &Webhook{
		url:      url,
		username: username,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// Notify posts msg as a single webhook call with one embed per card.
func (w *Webhook) Notify(ctx context.Context, msg Message) error {
	issued := w.now().UTC().Format(time.RFC3339)
	payload := webhookPayload{
		Username: w.username,
		Embeds:   make([]embed, 0, len(msg.Cards)),
	}
	for _, card := range msg.Cards {
		payload.Embeds = append(payload.Embeds, embed{
			Title:       card.Title,
			URL:         card.Link,
			Description: card.Description,
			Color:       msg.Color,
			Footer:      embedFooter{Text: "Source: " + msg.FeedTitle},
			Timestamp:   issued,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
