package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/time/rate"

	"github.com/ppiankov/socialspy/internal/logging"
	"github.com/ppiankov/socialspy/internal/record"
)

const (
	defaultMaxAttempts  = 3
	defaultBackoffBase  = 1 * time.Second
	defaultBackoffMax   = 8 * time.Second
	defaultFetchTimeout = 45 * time.Second
	defaultMaxPages     = 3
	maxResponseBytes    = 16 << 20
	maxErrorBodyBytes   = 4 << 10
	userAgent           = "socialspy/1.0 (+https://github.com/ppiankov/socialspy)"
)

// HTTPClient is the subset of *http.Client used by the platform clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a platform client.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	baseURL      string
	maxAttempts  int
	backoffBase  time.Duration
	backoffMax   time.Duration
	fetchTimeout time.Duration
	maxPages     int
	minInterval  time.Duration
	logger       logging.Logger

	// YouTube only.
	feedURL    string
	rssListing bool
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithRetry sets the attempt cap and exponential backoff bounds for
// transient failures.
func WithRetry(maxAttempts int, base, maxDelay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.backoffBase = base
		o.backoffMax = maxDelay
	}
}

// WithFetchTimeout bounds a single Fetch call, pagination included.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

// WithMaxPages caps how many result pages one Fetch may request.
func WithMaxPages(n int) Option {
	return func(o *options) { o.maxPages = n }
}

// WithMinInterval spaces consecutive requests of one client instance.
func WithMinInterval(d time.Duration) Option {
	return func(o *options) { o.minInterval = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(defaults options, opts []Option) options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}
	if o.backoffBase <= 0 {
		o.backoffBase = defaultBackoffBase
	}
	if o.backoffMax < o.backoffBase {
		o.backoffMax = o.backoffBase
	}
	if o.fetchTimeout <= 0 {
		o.fetchTimeout = defaultFetchTimeout
	}
	if o.maxPages < 1 {
		o.maxPages = 1
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.fetchTimeout}
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

func defaultOptions(baseURL string) options {
	return options{
		baseURL:      baseURL,
		maxAttempts:  defaultMaxAttempts,
		backoffBase:  defaultBackoffBase,
		backoffMax:   defaultBackoffMax,
		fetchTimeout: defaultFetchTimeout,
		maxPages:     defaultMaxPages,
	}
}

// statusClassifier turns a non-200 response into a typed error.
type statusClassifier func(p record.Platform, status int, body []byte) error

// requester performs paced GET requests with retry on transient errors.
// Each platform client owns one; nothing is shared between platforms.
type requester struct {
	platform record.Platform
	client   HTTPClient
	limiter  *rate.Limiter
	executor failsafe.Executor[[]byte]
	classify statusClassifier
	logger   logging.Logger
}

func newRequester(p record.Platform, o options, classify statusClassifier) *requester {
	limit := rate.Inf
	if o.minInterval > 0 {
		limit = rate.Every(o.minInterval)
	}

	r := &requester{
		platform: p,
		client:   o.httpClient,
		limiter:  rate.NewLimiter(limit, 1),
		classify: classify,
		logger:   o.logger,
	}

	policy := retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return IsTransient(err)
		}).
		WithMaxAttempts(o.maxAttempts).
		WithBackoff(o.backoffBase, o.backoffMax).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[[]byte]) {
			r.logger.WithFields(logging.Fields{
				"platform": string(p),
				"attempt":  e.Attempts(),
				"error":    errString(e.LastError()),
			}).Debug("retrying request")
		}).
		Build()
	r.executor = failsafe.With[[]byte](policy)
	return r
}

// get fetches url and returns the body of a 200 response.
func (r *requester) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	body, err := r.executor.WithContext(ctx).Get(func() ([]byte, error) {
		return r.do(ctx, url, header)
	})
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return nil, fmt.Errorf("%s: %w", r.platform, ctx.Err())
	}
	return body, err
}

func (r *requester) do(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: rate limiter: %w", r.platform, ctx.Err())
		}
		// The limiter refuses up front when the next slot lies past the deadline.
		return nil, fmt.Errorf("%s: rate limiter: %v: %w", r.platform, err, context.DeadlineExceeded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", r.platform, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", r.platform, ctx.Err())
		}
		return nil, &TransientSourceError{Platform: r.platform, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, r.classify(r.platform, resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", r.platform, ctx.Err())
		}
		return nil, &TransientSourceError{Platform: r.platform, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// classifyStatus is the default mapping shared by the RapidAPI clients.
func classifyStatus(p record.Platform, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return &AuthSourceError{Platform: p, StatusCode: status, Reason: "unauthorized"}
	case status == http.StatusForbidden:
		return &AuthSourceError{Platform: p, StatusCode: status, Reason: "forbidden or not subscribed"}
	case status == http.StatusTooManyRequests:
		// RapidAPI answers 429 both for bursts and for an exhausted plan.
		if strings.Contains(strings.ToLower(rapidAPIMessage(body)), "quota") {
			return &AuthSourceError{Platform: p, StatusCode: status, Reason: "quota exceeded"}
		}
		return &TransientSourceError{Platform: p, StatusCode: status, Reason: "rate limited"}
	case status >= 500:
		return &TransientSourceError{Platform: p, StatusCode: status}
	}
	return fmt.Errorf("%s: unexpected status %d: %s", p, status, snippet(body))
}

func rapidAPIMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return ""
	}
	return apiErr.Message
}

func snippet(body []byte) string {
	const limit = 200
	s := string(body)
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
