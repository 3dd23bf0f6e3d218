package models

// Feed describes one monitored feed. The URL is its stable identifier and the
// key of its watermark.
type Feed struct {
	URL   string `yaml:"url"`
	Color int    `yaml:"color"`
	Name  string `yaml:"name,omitempty"` // Display fallback when the channel has no title
}

// DisplayName returns the name used in notification footers when the feed
// document does not carry its own title.
func (f Feed) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.URL
}
