package models

// WatermarkRow represents a row in the 'watermarks' table
type WatermarkRow struct {
	FeedURL     string `db:"feed_url" json:"feed_url"`
	Watermark   string `db:"watermark" json:"watermark"`       // RFC 3339 with offset, as persisted
	WatermarkNS int64  `db:"watermark_ns" json:"watermark_ns"` // Unix nanoseconds, used for ordering in SQL
}
