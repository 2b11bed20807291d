// Package record defines the normalized content model shared by every stage
// of an aggregation run.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a content source.
type Platform string

const (
	YouTube   Platform = "youtube"
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
)

// AllPlatforms lists platforms in canonical output order.
var AllPlatforms = []Platform{YouTube, Instagram, TikTok}

// ParsePlatform resolves a case-insensitive platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q (want youtube, instagram or tiktok)", s)
	}
	return p, nil
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case YouTube, Instagram, TikTok:
		return true
	}
	return false
}

// Rank is the position of p in canonical order. Unknown platforms sort last.
func (p Platform) Rank() int {
	for i, known := range AllPlatforms {
		if p == known {
			return i
		}
	}
	return len(AllPlatforms)
}

// Label is the display name of p.
func (p Platform) Label() string {
	switch p {
	case YouTube:
		return "YouTube"
	case Instagram:
		return "Instagram"
	case TikTok:
		return "TikTok"
	}
	return string(p)
}

// ContentRecord is one normalized piece of content. Optional metrics are
// pointers so that "not provided" stays distinct from zero.
type ContentRecord struct {
	Platform       Platform  `json:"platform"`
	SourceAccount  *string   `json:"source_account"`
	ExternalID     string    `json:"external_id"`
	CaptionOrTitle string    `json:"caption_or_title"`
	PublishedAt    time.Time `json:"published_at"`
	ViewCount      int64     `json:"view_count"`
	LikeCount      *int64    `json:"like_count"`
	CommentCount   *int64    `json:"comment_count"`
	ShareCount     *int64    `json:"share_count"`
	URL            string    `json:"url"`
	EngagementRate *float64  `json:"engagement_rate"`
}

// Key identifies a record within one run.
type Key struct {
	Platform   Platform
	ExternalID string
}

// Key returns the dedup identity of r.
func (r ContentRecord) Key() Key {
	return Key{Platform: r.Platform, ExternalID: r.ExternalID}
}

// FieldNames lists the serialized field names in declaration order.
var FieldNames = []string{
	"platform",
	"source_account",
	"external_id",
	"caption_or_title",
	"published_at",
	"view_count",
	"like_count",
	"comment_count",
	"share_count",
	"url",
	"engagement_rate",
}
