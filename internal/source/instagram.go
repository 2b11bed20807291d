package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/socialspy/internal/record"
)

const (
	instagramHost    = "instagram360.p.rapidapi.com"
	instagramBaseURL = "https://" + instagramHost
)

// InstagramClient fetches reels through the instagram360 RapidAPI service.
// Its endpoints take no time filter, so windowing happens client-side.
type InstagramClient struct {
	apiKey string
	opts   options
	req    *requester
	now    func() time.Time
}

// NewInstagram creates an Instagram client. An empty key is accepted; every
// Fetch then fails fast with an auth error.
func NewInstagram(apiKey string, opts ...Option) *InstagramClient {
	o := buildOptions(defaultOptions(instagramBaseURL), opts)
	return &InstagramClient{
		apiKey: strings.TrimSpace(apiKey),
		opts:   o,
		req:    newRequester(record.Instagram, o, classifyStatus),
		now:    time.Now,
	}
}

func (c *InstagramClient) Platform() record.Platform {
	return record.Instagram
}

func (c *InstagramClient) Fetch(ctx context.Context, target record.Target, window record.TimeWindow) FetchOutcome {
	if c.apiKey == "" {
		return failed(record.Instagram, target, 0, missingKey(record.Instagram))
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.fetchTimeout)
	defer cancel()

	var endpoint string
	params := url.Values{}
	switch target.Kind {
	case record.TargetKeyword:
		endpoint = "/searchreels/"
		params.Set("keyword", target.Value)
	case record.TargetAccount:
		endpoint = "/userreels/"
		params.Set("username_or_id", record.NormalizeHandle(target.Value))
	default:
		return failed(record.Instagram, target, 0, fmt.Errorf("instagram: unsupported target kind %q", target.Kind))
	}

	cutoff, bounded := window.Cutoff(c.now())
	// Search results are not ordered by date, so only account listings can
	// stop early.
	stopAtCutoff := bounded && target.Kind == record.TargetAccount

	var items []json.RawMessage
	pages := 0
	token := ""
	for pages < c.opts.maxPages {
		if token != "" {
			params.Set("pagination_token", token)
		}
		page, next, err := c.fetchPage(ctx, endpoint, params)
		if err != nil {
			return failed(record.Instagram, target, pages, err)
		}
		pages++
		items = append(items, page...)

		token = next
		if token == "" || len(page) == 0 {
			break
		}
		if stopAtCutoff && allBefore(page, cutoff, "taken_at", "taken_at_date") {
			break
		}
	}
	return succeeded(record.Instagram, target, items, pages)
}

func (c *InstagramClient) fetchPage(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, string, error) {
	header := http.Header{}
	header.Set("x-rapidapi-key", c.apiKey)
	header.Set("x-rapidapi-host", instagramHost)

	body, err := c.req.get(ctx, c.opts.baseURL+endpoint+"?"+params.Encode(), header)
	if err != nil {
		return nil, "", err
	}

	var resp instagramResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("instagram: decode response: %w", err)
	}
	if msg := apiErrorText(resp.Error); msg != "" {
		return nil, "", fmt.Errorf("instagram: api error: %s", msg)
	}

	items := make([]json.RawMessage, 0, len(resp.Data.Items))
	for _, raw := range resp.Data.Items {
		items = append(items, unwrapMedia(raw))
	}

	next := resp.Data.PaginationToken
	if next == "" {
		next = resp.PaginationToken
	}
	return items, next, nil
}

// unwrapMedia returns the inner object for items shaped {"media": {...}}.
func unwrapMedia(raw json.RawMessage) json.RawMessage {
	var wrapper struct {
		Media json.RawMessage `json:"media"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Media) > 0 && wrapper.Media[0] == '{' {
		return wrapper.Media
	}
	return raw
}

// allBefore reports whether every item in page carries a timestamp older
// than cutoff. Items without a readable timestamp count as in-window.
func allBefore(page []json.RawMessage, cutoff time.Time, fields ...string) bool {
	for _, raw := range page {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return false
		}
		ts, ok := rawTimestamp(m, fields...)
		if !ok || !ts.Before(cutoff) {
			return false
		}
	}
	return len(page) > 0
}

func rawTimestamp(m map[string]json.RawMessage, fields ...string) (time.Time, bool) {
	for _, f := range fields {
		v, ok := m[f]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			if secs, err := n.Int64(); err == nil && secs > 0 {
				if secs > 1e12 {
					return time.UnixMilli(secs), true
				}
				return time.Unix(secs, 0), true
			}
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
				if ts, err := time.Parse(layout, s); err == nil {
					return ts, true
				}
			}
		}
	}
	return time.Time{}, false
}

// apiErrorText extracts a message from an "error" field that may be a
// string, an object, or absent.
func apiErrorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return snippet(raw)
}

type instagramResponse struct {
	Data struct {
		Items           []json.RawMessage `json:"items"`
		PaginationToken string            `json:"pagination_token"`
	} `json:"data"`
	PaginationToken string          `json:"pagination_token"`
	Error           json.RawMessage `json:"error"`
}
