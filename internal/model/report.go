package model

import (
	"fmt"
	"strings"
)

// Category tags a line of observable output.
type Category string

const (
	CategoryChannel     Category = "CHANNEL"
	CategoryCommChannel Category = "COMM_CHANNEL"
	CategorySend        Category = "SEND"
	CategoryRecv        Category = "RECV"
	CategoryLate        Category = "LATE"
)

// IsCount reports whether the category carries a running aggregate rather
// than a passthrough topology declaration.
func (c Category) IsCount() bool {
	switch c {
	case CategorySend, CategoryRecv, CategoryLate:
		return true
	}
	return false
}

// ParseCategory accepts category names case-insensitively, e.g. "late" or "LATE".
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(s)) {
	case CategoryChannel:
		return CategoryChannel, nil
	case CategoryCommChannel:
		return CategoryCommChannel, nil
	case CategorySend:
		return CategorySend, nil
	case CategoryRecv:
		return CategoryRecv, nil
	case CategoryLate:
		return CategoryLate, nil
	}
	return "", fmt.Errorf("unknown report category: %q", s)
}

// Report is one emitted update: either a topology declaration (Subject,
// Diff) or the new running value of a count for Key.
type Report struct {
	Category Category
	Key      Key
	Value    int64
	Subject  string
	Diff     int64
}

// Line renders the report as a single human-readable output line.
func (r Report) Line() string {
	if r.Category.IsCount() {
		return fmt.Sprintf("%s\t%s -> %d", r.Category, r.Key, r.Value)
	}
	return fmt.Sprintf("%s\t(%s, %s)\t%+d", r.Category, r.Subject, r.Key.Bucket, r.Diff)
}

// ReportDoc is the JSON shape of a report used by the API and published updates.
type ReportDoc struct {
	Category      Category `json:"category"`
	Channel       int      `json:"channel"`
	BucketSeconds float64  `json:"bucket_seconds"`
	Value         int64    `json:"value"`
	Subject       string   `json:"subject,omitempty"`
	Diff          int64    `json:"diff,omitempty"`
}

// Doc converts the report to its JSON shape.
func (r Report) Doc() ReportDoc {
	return ReportDoc{
		Category:      r.Category,
		Channel:       r.Key.Channel,
		BucketSeconds: r.Key.Bucket.Seconds(),
		Value:         r.Value,
		Subject:       r.Subject,
		Diff:          r.Diff,
	}
}
