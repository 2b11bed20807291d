package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/socialspy/internal/record"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func httpClient(rt roundTripFunc) Option {
	return WithHTTPClient(&http.Client{Transport: rt})
}

func fastRetry() Option {
	return WithRetry(3, time.Millisecond, 2*time.Millisecond)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

var (
	keyword = record.Target{Kind: record.TargetKeyword, Value: "test"}
	account = record.Target{Kind: record.TargetAccount, Value: "@someone"}
)

func TestMissingKeyFailsFast(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return response(200, `{}`), nil
	})

	clients := []Client{
		NewYouTube("", httpClient(rt)),
		NewInstagram(" ", httpClient(rt)),
		NewTikTok("", httpClient(rt)),
	}
	for _, c := range clients {
		out := c.Fetch(context.Background(), keyword, record.AllTime)
		if out.Succeeded {
			t.Fatalf("%s: expected failure without key", c.Platform())
		}
		if out.ErrorKind != ErrorAuth {
			t.Errorf("%s: kind = %q, want auth", c.Platform(), out.ErrorKind)
		}
		if !strings.Contains(out.ErrorDetail, "check your API key") {
			t.Errorf("%s: detail = %q", c.Platform(), out.ErrorDetail)
		}
		if out.Platform != c.Platform() || out.Target != keyword {
			t.Errorf("%s: outcome not attributed: %+v", c.Platform(), out)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("made %d requests without a key", calls.Load())
	}
}

func TestRetryTransientThenSucceed(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return response(http.StatusTooManyRequests, `{"message":"slow down"}`), nil
		}
		return response(200, `{"data":{"items":[{"code":"a","taken_at":1767225600}]}}`), nil
	})

	c := NewInstagram("key", httpClient(rt), fastRetry())
	out := c.Fetch(context.Background(), keyword, record.AllTime)
	if !out.Succeeded {
		t.Fatalf("expected success after retries: %s", out.ErrorDetail)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if len(out.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(out.Items))
	}
}

func TestRetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return response(http.StatusBadGateway, `bad gateway`), nil
	})

	c := NewTikTok("key", httpClient(rt), fastRetry(), WithMinInterval(0))
	out := c.Fetch(context.Background(), keyword, record.AllTime)
	if out.Succeeded {
		t.Fatal("expected failure")
	}
	if out.ErrorKind != ErrorTransient {
		t.Errorf("kind = %q, want transient", out.ErrorKind)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want attempt cap 3", calls.Load())
	}
	if out.ErrorDetail == "" {
		t.Error("failed outcome must carry error detail")
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})

	out := NewInstagram("key", httpClient(rt), fastRetry()).Fetch(context.Background(), keyword, record.AllTime)
	if out.ErrorKind != ErrorTransient || calls.Load() != 3 {
		t.Fatalf("kind = %q after %d calls", out.ErrorKind, calls.Load())
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"You are not subscribed to this API."}`},
		{"forbidden", http.StatusForbidden, `{"message":"You are not subscribed to this API."}`},
		{"quota exhausted", http.StatusTooManyRequests, `{"message":"You have exceeded the MONTHLY quota for Requests on your current plan, BASIC."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
				calls.Add(1)
				return response(tt.status, tt.body), nil
			})
			out := NewTikTok("key", httpClient(rt), fastRetry(), WithMinInterval(0)).
				Fetch(context.Background(), account, record.AllTime)
			if out.ErrorKind != ErrorAuth {
				t.Fatalf("kind = %q, want auth", out.ErrorKind)
			}
			if calls.Load() != 1 {
				t.Fatalf("calls = %d, auth errors must not be retried", calls.Load())
			}
			if !strings.Contains(out.ErrorDetail, "check your API key") {
				t.Fatalf("detail = %q", out.ErrorDetail)
			}
		})
	}
}

func TestBurstRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return response(http.StatusTooManyRequests, `{"message":"Too many requests"}`), nil
	})

	out := NewInstagram("key", httpClient(rt), fastRetry()).Fetch(context.Background(), keyword, record.AllTime)
	if out.ErrorKind != ErrorTransient || calls.Load() != 3 {
		t.Fatalf("kind = %q after %d calls", out.ErrorKind, calls.Load())
	}
}

func TestFetchTimeout(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	start := time.Now()
	out := NewInstagram("key", httpClient(rt), fastRetry(), WithFetchTimeout(50*time.Millisecond)).
		Fetch(context.Background(), keyword, record.AllTime)
	if out.Succeeded {
		t.Fatal("expected timeout failure")
	}
	if out.ErrorKind != ErrorTimeout {
		t.Fatalf("kind = %q (%s), want timeout", out.ErrorKind, out.ErrorDetail)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("fetch did not respect its deadline: %v", time.Since(start))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ErrorNone},
		{&AuthSourceError{Platform: record.YouTube, Reason: "x"}, ErrorAuth},
		{&TransientSourceError{Platform: record.YouTube, StatusCode: 503}, ErrorTransient},
		{context.DeadlineExceeded, ErrorTimeout},
		{&TransientSourceError{Platform: record.TikTok, Err: context.DeadlineExceeded}, ErrorTimeout},
		{errors.New("boom"), ErrorOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRequesterPacing(t *testing.T) {
	var stamps []time.Time
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		stamps = append(stamps, time.Now())
		return response(200, `{"videos":[{"video_id":"1","create_time":1767225600}],"has_more":true,"cursor":1}`), nil
	})

	c := NewTikTok("key", httpClient(rt), WithMaxPages(2), WithMinInterval(40*time.Millisecond))
	out := c.Fetch(context.Background(), keyword, record.AllTime)
	if !out.Succeeded || out.Pages != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(stamps) != 2 {
		t.Fatalf("requests = %d", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < 30*time.Millisecond {
		t.Fatalf("requests not paced: gap %v", gap)
	}
}

func TestPacingPastDeadlineIsTimeout(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return response(200, `{"videos":[{"video_id":"1","create_time":1767225600}],"has_more":true,"cursor":1}`), nil
	})

	start := time.Now()
	c := NewTikTok("key", httpClient(rt), fastRetry(), WithMaxPages(3),
		WithMinInterval(2*time.Second), WithFetchTimeout(500*time.Millisecond))
	out := c.Fetch(context.Background(), keyword, record.AllTime)
	if out.Succeeded {
		t.Fatal("expected failure when the next slot lies past the deadline")
	}
	if out.ErrorKind != ErrorTimeout {
		t.Fatalf("kind = %q (%s), want timeout", out.ErrorKind, out.ErrorDetail)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if time.Since(start) > time.Second {
		t.Fatalf("limiter waited instead of failing: %v", time.Since(start))
	}
}
