package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MalformedRecordError reports a raw item that lacks a required field.
type MalformedRecordError struct {
	Platform Platform
	Field    string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: malformed item: %s %s", e.Platform, e.Field, e.Reason)
}

// IsMalformed reports whether err is a MalformedRecordError.
func IsMalformed(err error) bool {
	var m *MalformedRecordError
	return errors.As(err, &m)
}

// Normalize maps one raw platform item to a ContentRecord.
//
// Optional metrics missing from the item stay nil. comment_count is never
// populated. A missing or unparsable external id or publish time yields a
// *MalformedRecordError.
func Normalize(platform Platform, raw json.RawMessage) (ContentRecord, error) {
	item, err := decodeItem(raw)
	if err != nil {
		return ContentRecord{}, &MalformedRecordError{Platform: platform, Field: "item", Reason: err.Error()}
	}

	switch platform {
	case YouTube:
		return normalizeYouTube(item)
	case Instagram:
		return normalizeInstagram(item)
	case TikTok:
		return normalizeTikTok(item)
	}
	return ContentRecord{}, fmt.Errorf("normalize: unknown platform %q", platform)
}

// WithSourceAccount returns a copy of r attributed to handle.
func (r ContentRecord) WithSourceAccount(handle string) ContentRecord {
	handle = NormalizeHandle(handle)
	if handle == "" {
		r.SourceAccount = nil
		return r
	}
	r.SourceAccount = &handle
	return r
}

// YouTube items are videos.list resources with snippet and statistics parts.
func normalizeYouTube(item map[string]any) (ContentRecord, error) {
	id, ok := firstString(item, "id", "id.videoId")
	if !ok {
		return ContentRecord{}, &MalformedRecordError{Platform: YouTube, Field: "external_id", Reason: "missing"}
	}
	published, err := requiredTime(YouTube, item, "snippet.publishedAt")
	if err != nil {
		return ContentRecord{}, err
	}

	title, _ := firstString(item, "snippet.title")
	rec := ContentRecord{
		Platform:       YouTube,
		ExternalID:     id,
		CaptionOrTitle: title,
		PublishedAt:    published,
		ViewCount:      valueOrZero(firstCount(item, "statistics.viewCount")),
		LikeCount:      firstCount(item, "statistics.likeCount"),
		URL:            "https://www.youtube.com/watch?v=" + id,
	}
	rec.EngagementRate = engagement(rec.ViewCount, rec.LikeCount, nil)
	return rec, nil
}

// Instagram items are reel objects from the instagram360 RapidAPI service.
func normalizeInstagram(item map[string]any) (ContentRecord, error) {
	code, hasCode := firstString(item, "code", "shortcode")
	id, ok := firstString(item, "code", "shortcode", "pk", "id")
	if !ok {
		return ContentRecord{}, &MalformedRecordError{Platform: Instagram, Field: "external_id", Reason: "missing"}
	}
	published, err := requiredTime(Instagram, item, "taken_at", "taken_at_date", "taken_at_timestamp")
	if err != nil {
		return ContentRecord{}, err
	}

	caption, _ := firstString(item, "caption.text", "caption", "edge_media_to_caption.edges.0.node.text")
	url, hasURL := firstString(item, "url", "permalink")
	switch {
	case hasCode:
		url = "https://www.instagram.com/reel/" + code + "/"
	case !hasURL:
		if owner, ok := firstString(item, "user.username", "owner.username"); ok {
			url = "https://www.instagram.com/" + owner + "/"
		}
	}

	rec := ContentRecord{
		Platform:       Instagram,
		ExternalID:     id,
		CaptionOrTitle: caption,
		PublishedAt:    published,
		ViewCount:      valueOrZero(firstCount(item, "play_count", "ig_play_count", "video_view_count", "view_count")),
		LikeCount:      firstCount(item, "like_count", "edge_liked_by.count"),
		URL:            url,
	}
	rec.EngagementRate = engagement(rec.ViewCount, rec.LikeCount, nil)
	return rec, nil
}

// TikTok items come from the tiktok-api6 RapidAPI service, whose field
// names differ between its search and user endpoints.
func normalizeTikTok(item map[string]any) (ContentRecord, error) {
	id, ok := firstString(item, "video_id", "aweme_id", "id")
	if !ok {
		return ContentRecord{}, &MalformedRecordError{Platform: TikTok, Field: "external_id", Reason: "missing"}
	}
	published, err := requiredTime(TikTok, item, "create_time", "createTime", "createTimeISO")
	if err != nil {
		return ContentRecord{}, err
	}

	caption, _ := firstString(item, "description", "desc", "text", "title")
	author, _ := firstString(item, "author.uniqueId", "author.unique_id", "author.username", "author", "authorMeta.name", "username")

	url, ok := firstString(item, "share_url", "shareUrl", "webVideoUrl")
	if !ok {
		if author != "" {
			url = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", author, id)
		} else {
			url = "https://www.tiktok.com/video/" + id
		}
	}

	rec := ContentRecord{
		Platform:       TikTok,
		ExternalID:     id,
		CaptionOrTitle: caption,
		PublishedAt:    published,
		ViewCount: valueOrZero(firstCount(item,
			"statistics.number_of_plays", "stats.playCount", "stats.views", "statistics.playCount", "playCount", "plays", "views")),
		LikeCount: firstCount(item,
			"statistics.number_of_hearts", "stats.diggCount", "stats.likes", "statistics.diggCount", "diggCount", "likes"),
		ShareCount: firstCount(item,
			"statistics.number_of_reposts", "stats.shareCount", "stats.shares", "statistics.shareCount", "shareCount", "shares"),
		URL: url,
	}
	rec.EngagementRate = engagement(rec.ViewCount, rec.LikeCount, rec.ShareCount)
	return rec, nil
}

// engagement returns (likes + extra) / views as a percentage rounded to two
// decimals, or nil when views are zero or likes are unknown.
func engagement(views int64, likes, extra *int64) *float64 {
	if views <= 0 || likes == nil {
		return nil
	}
	total := *likes
	if extra != nil {
		total += *extra
	}
	rate := math.Round(float64(total)/float64(views)*100*100) / 100
	return &rate
}

func decodeItem(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var item map[string]any
	if err := dec.Decode(&item); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if item == nil {
		return nil, errors.New("decode: not an object")
	}
	return item, nil
}

// lookup resolves a dotted path. Numeric segments index into arrays.
func lookup(item map[string]any, path string) (any, bool) {
	var cur any = item
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

func firstString(item map[string]any, paths ...string) (string, bool) {
	for _, p := range paths {
		v, ok := lookup(item, p)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		case json.Number:
			return s.String(), true
		}
	}
	return "", false
}

// firstCount returns the first path holding a non-negative integer, given
// either as a JSON number or a decimal string.
func firstCount(item map[string]any, paths ...string) *int64 {
	for _, p := range paths {
		v, ok := lookup(item, p)
		if !ok {
			continue
		}
		if n, ok := parseCount(v); ok {
			return &n
		}
	}
	return nil
}

func parseCount(v any) (int64, bool) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.ReplaceAll(strings.TrimSpace(x), ",", "")
	default:
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func valueOrZero(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func requiredTime(platform Platform, item map[string]any, paths ...string) (time.Time, error) {
	sawField := false
	for _, p := range paths {
		v, ok := lookup(item, p)
		if !ok {
			continue
		}
		sawField = true
		if ts, ok := parseTimestamp(v); ok {
			return ts, nil
		}
	}
	reason := "missing"
	if sawField {
		reason = "unparsable"
	}
	return time.Time{}, &MalformedRecordError{Platform: platform, Field: "published_at", Reason: reason}
}

// parseTimestamp accepts unix seconds (number or digit string) and the
// common textual layouts. Results are always UTC.
func parseTimestamp(v any) (time.Time, bool) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	default:
		return time.Time{}, false
	}
	if s == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs <= 0 {
			return time.Time{}, false
		}
		// Millisecond epochs show up in some TikTok payloads.
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), true
		}
		return time.Unix(secs, 0).UTC(), true
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
