package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/socialspy/internal/record"
)

const (
	tiktokHost        = "tiktok-api6.p.rapidapi.com"
	tiktokBaseURL     = "https://" + tiktokHost
	tiktokPageSize    = 30
	tiktokMinInterval = 2 * time.Second
)

// TikTokClient fetches videos through the tiktok-api6 RapidAPI service.
// The service throttles aggressively, so requests from one client are
// spaced by tiktokMinInterval unless overridden.
type TikTokClient struct {
	apiKey string
	opts   options
	req    *requester
	now    func() time.Time
}

// NewTikTok creates a TikTok client. An empty key is accepted; every Fetch
// then fails fast with an auth error.
func NewTikTok(apiKey string, opts ...Option) *TikTokClient {
	defaults := defaultOptions(tiktokBaseURL)
	defaults.minInterval = tiktokMinInterval
	o := buildOptions(defaults, opts)
	return &TikTokClient{
		apiKey: strings.TrimSpace(apiKey),
		opts:   o,
		req:    newRequester(record.TikTok, o, classifyStatus),
		now:    time.Now,
	}
}

func (c *TikTokClient) Platform() record.Platform {
	return record.TikTok
}

func (c *TikTokClient) Fetch(ctx context.Context, target record.Target, window record.TimeWindow) FetchOutcome {
	if c.apiKey == "" {
		return failed(record.TikTok, target, 0, missingKey(record.TikTok))
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.fetchTimeout)
	defer cancel()

	var endpoint string
	params := url.Values{}
	switch target.Kind {
	case record.TargetKeyword:
		endpoint = "/search/general/query"
		params.Set("query", target.Value)
	case record.TargetAccount:
		endpoint = "/user/videos"
		params.Set("username", record.NormalizeHandle(target.Value))
	default:
		return failed(record.TikTok, target, 0, fmt.Errorf("tiktok: unsupported target kind %q", target.Kind))
	}
	params.Set("count", strconv.Itoa(tiktokPageSize))

	cutoff, bounded := window.Cutoff(c.now())
	stopAtCutoff := bounded && target.Kind == record.TargetAccount

	var items []json.RawMessage
	pages := 0
	offset := 0
	for pages < c.opts.maxPages {
		params.Set("offset", strconv.Itoa(offset))
		page, err := c.fetchPage(ctx, endpoint, params)
		if err != nil {
			return failed(record.TikTok, target, pages, err)
		}
		pages++
		author := page.author
		if author == "" && target.Kind == record.TargetAccount {
			author = record.NormalizeHandle(target.Value)
		}
		items = append(items, withAuthor(page.items, author)...)

		if !page.hasMore || len(page.items) == 0 {
			break
		}
		if stopAtCutoff && allBefore(page.items, cutoff, "create_time", "createTime") {
			break
		}
		next := page.nextOffset
		if next <= offset {
			next = offset + len(page.items)
		}
		offset = next
	}
	return succeeded(record.TikTok, target, items, pages)
}

type tiktokPage struct {
	items      []json.RawMessage
	hasMore    bool
	nextOffset int
	author     string
}

func (c *TikTokClient) fetchPage(ctx context.Context, endpoint string, params url.Values) (tiktokPage, error) {
	header := http.Header{}
	header.Set("x-rapidapi-key", c.apiKey)
	header.Set("x-rapidapi-host", tiktokHost)

	body, err := c.req.get(ctx, c.opts.baseURL+endpoint+"?"+params.Encode(), header)
	if err != nil {
		return tiktokPage{}, err
	}
	return parseTikTokPage(body)
}

// parseTikTokPage finds the video list, which the service returns under
// different keys depending on the endpoint.
func parseTikTokPage(body []byte) (tiktokPage, error) {
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		return tiktokPage{}, fmt.Errorf("tiktok: decode response: %w", err)
	}
	if msg := apiErrorText(resp["error"]); msg != "" {
		return tiktokPage{}, fmt.Errorf("tiktok: api error: %s", msg)
	}

	var page tiktokPage
	for _, key := range []string{"videos", "data", "itemList", "item_list"} {
		raw, ok := resp[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil {
			page.items = list
			break
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			if err := json.Unmarshal(nested["videos"], &list); err == nil && list != nil {
				page.items = list
				readPaging(nested, &page)
				break
			}
		}
	}
	readPaging(resp, &page)
	for _, key := range []string{"username", "author_name"} {
		var name string
		if err := json.Unmarshal(resp[key], &name); err == nil && strings.TrimSpace(name) != "" {
			page.author = strings.TrimSpace(name)
			break
		}
	}
	return page, nil
}

// withAuthor sets username on items that carry no author of their own, so
// their URLs can be built as /@<author>/video/<id>. The user endpoint
// reports the owner once per page instead of per video.
func withAuthor(items []json.RawMessage, author string) []json.RawMessage {
	if author == "" {
		return items
	}
	out := make([]json.RawMessage, len(items))
	for i, raw := range items {
		out[i] = raw
		var item map[string]json.RawMessage
		if err := json.Unmarshal(raw, &item); err != nil || item == nil {
			continue
		}
		if hasAny(item, "author", "authorMeta", "username") {
			continue
		}
		name, _ := json.Marshal(author)
		item["username"] = name
		if patched, err := json.Marshal(item); err == nil {
			out[i] = patched
		}
	}
	return out
}

func hasAny(item map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if v, ok := item[k]; ok && string(v) != "null" {
			return true
		}
	}
	return false
}

func readPaging(m map[string]json.RawMessage, page *tiktokPage) {
	for _, key := range []string{"has_more", "hasMore"} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			page.hasMore = page.hasMore || b
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			page.hasMore = page.hasMore || n != 0
		}
	}
	for _, key := range []string{"cursor", "offset", "next_offset"} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if v, err := n.Int64(); err == nil && int(v) > page.nextOffset {
				page.nextOffset = int(v)
			}
		}
	}
}
