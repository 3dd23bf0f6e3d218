package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/relay/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadFeedsDefaults(t *testing.T) {
	feeds, err := LoadFeeds(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "https://archlinux.org/feeds/packages/x86_64/core/", feeds[0].URL)
	assert.Equal(t, 1791981, feeds[0].Color)
	assert.Equal(t, "https://archlinux.org/feeds/news/", feeds[1].URL)
	assert.Equal(t, 13438481, feeds[1].Color)
}

func TestLoadFeedsYAML(t *testing.T) {
	p := writeFile(t, "feeds.yaml", `
feeds:
  - url: https://example.com/a.xml
    color: 255
  - url: https://example.com/b.xml
    color: 65280
    name: Bee
`)
	feeds, err := LoadFeeds(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []models.Feed{
		{URL: "https://example.com/a.xml", Color: 255},
		{URL: "https://example.com/b.xml", Color: 65280, Name: "Bee"},
	}, feeds)
}

func TestLoadFeedsCSV(t *testing.T) {
	p := writeFile(t, "feeds.csv", "URL,Color,Name\nhttps://example.com/a.xml,#1B57ED,Arch\n\nhttps://example.com/b.xml,,\n")
	feeds, err := LoadFeeds(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []models.Feed{
		{URL: "https://example.com/a.xml", Color: 0x1B57ED, Name: "Arch"},
		{URL: "https://example.com/b.xml"},
	}, feeds)
}

func TestLoadFeedsRejectsBadTables(t *testing.T) {
	tests := map[string]struct {
		name    string
		content string
	}{
		"no url column":  {"feeds.csv", "link,color\nhttps://example.com,1\n"},
		"bad color":      {"feeds.csv", "url,color\nhttps://example.com,purple\n"},
		"duplicate url":  {"feeds.yml", "feeds:\n  - url: https://x\n  - url: https://x\n"},
		"empty url":      {"feeds.yml", "feeds:\n  - color: 3\n"},
		"empty table":    {"feeds.yaml", "feeds: []\n"},
		"unknown format": {"feeds.toml", "x = 1\n"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFeeds(context.Background(), writeFile(t, tt.name, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFeeds(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFeedsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feeds.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("url,color\nhttps://example.com/feed,42\n"))
	}))
	defer srv.Close()

	feeds, err := LoadFeeds(context.Background(), srv.URL+"/feeds.csv")
	require.NoError(t, err)
	assert.Equal(t, []models.Feed{{URL: "https://example.com/feed", Color: 42}}, feeds)

	_, err = LoadFeeds(context.Background(), srv.URL+"/other.csv")
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]int{"1791981": 1791981, "#1B57ED": 0x1B57ED, "0xCD0E11": 0xCD0E11} {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "#GGGGGG", "-1", "16777216"} {
		_, err := ParseColor(in)
		assert.Error(t, err, in)
	}
}
