package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/socialspy/internal/record"
)

const (
	youtubeBaseURL    = "https://www.googleapis.com/youtube/v3"
	youtubeFeedURL    = "https://www.youtube.com/feeds/videos.xml"
	youtubePageSize   = 50
	youtubeVideoBatch = 50
)

// YouTubeClient talks to the YouTube Data API v3.
//
// Keyword targets use search.list with publishedAfter. Account targets list
// the channel's uploads playlist, or its public Atom feed when RSS listing
// is enabled. Both paths finish with videos.list to get statistics.
type YouTubeClient struct {
	apiKey string
	opts   options
	req    *requester
	now    func() time.Time
}

// WithRSSListing lists YouTube account uploads from the channel Atom feed
// instead of the quota-consuming playlistItems endpoint.
func WithRSSListing(enabled bool) Option {
	return func(o *options) { o.rssListing = enabled }
}

// WithFeedURL overrides the YouTube channel feed URL.
func WithFeedURL(u string) Option {
	return func(o *options) { o.feedURL = u }
}

// NewYouTube creates a YouTube client. An empty key is accepted; every
// Fetch then fails fast with an auth error.
func NewYouTube(apiKey string, opts ...Option) *YouTubeClient {
	defaults := defaultOptions(youtubeBaseURL)
	defaults.feedURL = youtubeFeedURL
	o := buildOptions(defaults, opts)
	return &YouTubeClient{
		apiKey: strings.TrimSpace(apiKey),
		opts:   o,
		req:    newRequester(record.YouTube, o, classifyYouTube),
		now:    time.Now,
	}
}

func (c *YouTubeClient) Platform() record.Platform {
	return record.YouTube
}

func (c *YouTubeClient) Fetch(ctx context.Context, target record.Target, window record.TimeWindow) FetchOutcome {
	if c.apiKey == "" {
		return failed(record.YouTube, target, 0, missingKey(record.YouTube))
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.fetchTimeout)
	defer cancel()

	cutoff, bounded := window.Cutoff(c.now())

	var (
		ids   []string
		pages int
		err   error
	)
	switch target.Kind {
	case record.TargetKeyword:
		ids, pages, err = c.searchVideoIDs(ctx, target.Value, cutoff, bounded)
	case record.TargetAccount:
		ids, pages, err = c.accountVideoIDs(ctx, target.Value, cutoff, bounded)
	default:
		err = fmt.Errorf("youtube: unsupported target kind %q", target.Kind)
	}
	if err != nil {
		return failed(record.YouTube, target, pages, err)
	}

	items, n, err := c.videoDetails(ctx, ids)
	pages += n
	if err != nil {
		return failed(record.YouTube, target, pages, err)
	}
	return succeeded(record.YouTube, target, items, pages)
}

func (c *YouTubeClient) searchVideoIDs(ctx context.Context, keyword string, cutoff time.Time, bounded bool) ([]string, int, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", keyword)
	params.Set("order", "relevance")
	params.Set("maxResults", fmt.Sprint(youtubePageSize))
	if bounded {
		params.Set("publishedAfter", cutoff.UTC().Format(time.RFC3339))
	}

	var ids []string
	pages := 0
	token := ""
	for pages < c.opts.maxPages {
		if token != "" {
			params.Set("pageToken", token)
		}
		var resp youtubeSearchResponse
		if err := c.getJSON(ctx, "search", params, &resp); err != nil {
			return nil, pages, err
		}
		pages++
		for _, item := range resp.Items {
			if item.ID.VideoID != "" {
				ids = append(ids, item.ID.VideoID)
			}
		}
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	return ids, pages, nil
}

func (c *YouTubeClient) accountVideoIDs(ctx context.Context, handle string, cutoff time.Time, bounded bool) ([]string, int, error) {
	channelID, uploads, pages, err := c.resolveChannel(ctx, handle)
	if err != nil {
		return nil, pages, err
	}

	var ids []string
	var n int
	if c.opts.rssListing {
		ids, n, err = c.feedVideoIDs(ctx, channelID, cutoff, bounded)
	} else {
		ids, n, err = c.playlistVideoIDs(ctx, uploads, cutoff, bounded)
	}
	return ids, pages + n, err
}

// resolveChannel maps a handle, legacy username, or UC channel id to the
// channel id and its uploads playlist.
func (c *YouTubeClient) resolveChannel(ctx context.Context, handle string) (string, string, int, error) {
	handle = record.NormalizeHandle(handle)
	if isChannelID(handle) {
		return handle, uploadsPlaylist(handle), 0, nil
	}

	pages := 0
	lookups := []url.Values{
		{"part": {"contentDetails"}, "forHandle": {"@" + handle}},
		{"part": {"contentDetails"}, "forUsername": {handle}},
	}
	for _, params := range lookups {
		var resp youtubeChannelsResponse
		if err := c.getJSON(ctx, "channels", params, &resp); err != nil {
			return "", "", pages, err
		}
		pages++
		if len(resp.Items) > 0 {
			ch := resp.Items[0]
			uploads := ch.ContentDetails.RelatedPlaylists.Uploads
			if uploads == "" {
				uploads = uploadsPlaylist(ch.ID)
			}
			return ch.ID, uploads, pages, nil
		}
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "channel")
	params.Set("q", handle)
	params.Set("maxResults", "1")
	var search youtubeSearchResponse
	if err := c.getJSON(ctx, "search", params, &search); err != nil {
		return "", "", pages, err
	}
	pages++
	if len(search.Items) == 0 || search.Items[0].ID.ChannelID == "" {
		return "", "", pages, fmt.Errorf("youtube: channel not found for %q", handle)
	}
	id := search.Items[0].ID.ChannelID
	return id, uploadsPlaylist(id), pages, nil
}

// playlistVideoIDs walks the uploads playlist newest first and stops after
// the first page that ends before the cutoff.
func (c *YouTubeClient) playlistVideoIDs(ctx context.Context, playlistID string, cutoff time.Time, bounded bool) ([]string, int, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", fmt.Sprint(youtubePageSize))

	var ids []string
	pages := 0
	token := ""
	for pages < c.opts.maxPages {
		if token != "" {
			params.Set("pageToken", token)
		}
		var resp youtubePlaylistItemsResponse
		if err := c.getJSON(ctx, "playlistItems", params, &resp); err != nil {
			return nil, pages, err
		}
		pages++

		reachedCutoff := false
		for _, item := range resp.Items {
			published, err := time.Parse(time.RFC3339, item.ContentDetails.VideoPublishedAt)
			if bounded && err == nil && published.Before(cutoff) {
				reachedCutoff = true
				continue
			}
			if item.ContentDetails.VideoID != "" {
				ids = append(ids, item.ContentDetails.VideoID)
			}
		}
		token = resp.NextPageToken
		if token == "" || reachedCutoff {
			break
		}
	}
	return ids, pages, nil
}

// feedVideoIDs reads the channel's public Atom feed, which lists the 15
// most recent uploads and costs no API quota.
func (c *YouTubeClient) feedVideoIDs(ctx context.Context, channelID string, cutoff time.Time, bounded bool) ([]string, int, error) {
	feedURL := c.opts.feedURL + "?channel_id=" + url.QueryEscape(channelID)
	body, err := c.req.get(ctx, feedURL, http.Header{"Accept": {"application/atom+xml"}})
	if err != nil {
		return nil, 1, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, 1, fmt.Errorf("youtube: parse channel feed: %w", err)
	}

	var ids []string
	for _, item := range feed.Items {
		if bounded && item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
			continue
		}
		if id := feedVideoID(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, 1, nil
}

func feedVideoID(item *gofeed.Item) string {
	if ext, ok := item.Extensions["yt"]["videoId"]; ok && len(ext) > 0 && ext[0].Value != "" {
		return ext[0].Value
	}
	return strings.TrimPrefix(item.GUID, "yt:video:")
}

// videoDetails fetches snippet and statistics for ids in batches of 50 and
// returns the raw resources.
func (c *YouTubeClient) videoDetails(ctx context.Context, ids []string) ([]json.RawMessage, int, error) {
	ids = uniqueStrings(ids)
	var items []json.RawMessage
	pages := 0
	for start := 0; start < len(ids); start += youtubeVideoBatch {
		end := min(start+youtubeVideoBatch, len(ids))
		params := url.Values{}
		params.Set("part", "snippet,statistics")
		params.Set("id", strings.Join(ids[start:end], ","))

		var resp youtubeVideosResponse
		if err := c.getJSON(ctx, "videos", params, &resp); err != nil {
			return nil, pages, err
		}
		pages++
		items = append(items, resp.Items...)
	}
	return items, pages, nil
}

func (c *YouTubeClient) getJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("key", c.apiKey)

	body, err := c.req.get(ctx, c.opts.baseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("youtube: decode %s response: %w", endpoint, err)
	}
	return nil
}

// classifyYouTube inspects the error reason in the body since quota
// exhaustion and rate limiting share status 403.
func classifyYouTube(p record.Platform, status int, body []byte) error {
	var apiErr youtubeErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	reason := ""
	if len(apiErr.Error.Errors) > 0 {
		reason = apiErr.Error.Errors[0].Reason
	}

	switch reason {
	case "quotaExceeded", "dailyLimitExceeded":
		return &AuthSourceError{Platform: p, StatusCode: status, Reason: "quota exceeded"}
	case "keyInvalid", "keyExpired", "accessNotConfigured", "ipRefererBlocked", "forbidden":
		return &AuthSourceError{Platform: p, StatusCode: status, Reason: "invalid API key (" + reason + ")"}
	case "rateLimitExceeded", "userRateLimitExceeded", "backendError":
		return &TransientSourceError{Platform: p, StatusCode: status, Reason: reason}
	}

	if status == http.StatusBadRequest && strings.Contains(apiErr.Error.Message, "API key") {
		return &AuthSourceError{Platform: p, StatusCode: status, Reason: "invalid API key"}
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%s: not found (status %d)", p, status)
	}
	return classifyStatus(p, status, body)
}

func isChannelID(s string) bool {
	return len(s) == 24 && strings.HasPrefix(s, "UC")
}

// uploadsPlaylist derives the uploads playlist id (UU...) from a channel id.
func uploadsPlaylist(channelID string) string {
	if isChannelID(channelID) {
		return "UU" + channelID[2:]
	}
	return channelID
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

type youtubeSearchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			Kind      string `json:"kind"`
			VideoID   string `json:"videoId"`
			ChannelID string `json:"channelId"`
		} `json:"id"`
	} `json:"items"`
}

type youtubeChannelsResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type youtubePlaylistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID          string `json:"videoId"`
			VideoPublishedAt string `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type youtubeVideosResponse struct {
	Items []json.RawMessage `json:"items"`
}

type youtubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}
