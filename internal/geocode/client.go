package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultURL is the Google Geocoding JSON endpoint
const DefaultURL = "https://maps.googleapis.com/maps/api/geocode/json"

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

type apiResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Results      []apiResult `json:"results"`
}

type apiResult struct {
	Geometry struct {
		Location *Location `json:"location"`
		Viewport *Viewport `json:"viewport"`
	} `json:"geometry"`
	AddressComponents []apiComponent `json:"address_components"`
}

type apiComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Client queries the geocoding API. Each uncached call is preceded by a
// random pause in [minWait, maxWait] to stay under the API's rate limits.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	minWait    time.Duration
	maxWait    time.Duration
	limiter    *rate.Limiter
	cache      Cache
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(g *Client) { g.httpClient = c }
}

// WithBaseURL points the client at another endpoint
func WithBaseURL(u string) Option {
	return func(g *Client) { g.baseURL = u }
}

// WithAPIKey sets the API key sent with each request
func WithAPIKey(key string) Option {
	return func(g *Client) { g.apiKey = key }
}

// WithWait sets the jitter window slept before each call
func WithWait(minWait, maxWait time.Duration) Option {
	return func(g *Client) {
		g.minWait = minWait
		g.maxWait = maxWait
	}
}

// WithRateLimit caps outbound requests per second. Zero or less disables it.
func WithRateLimit(qps float64) Option {
	return func(g *Client) {
		if qps <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
}

// WithCache enables the response cache
func WithCache(c Cache) Option {
	return func(g *Client) { g.cache = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(g *Client) { g.logger = l }
}

// NewClient creates a geocoding client
func NewClient(opts ...Option) *Client {
	g := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultURL,
		minWait:    time.Second,
		maxWait:    5 * time.Second,
		logger:     zap.NewNop(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewClientFromConfig builds a client from application settings, connecting
// the Redis response cache when one is configured
func NewClientFromConfig(cfg config.GeocoderConfig, logger *zap.Logger) (*Client, error) {
	opts := []Option{
		WithBaseURL(cfg.URL),
		WithAPIKey(cfg.APIKey),
		WithWait(cfg.MinWait, cfg.MaxWait),
		WithRateLimit(cfg.MaxQPS),
		WithLogger(logger),
	}
	if cfg.CacheURL != "" {
		cache, err := NewRedisCache(cfg.CacheURL, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCache(cache))
	}
	return NewClient(opts...), nil
}

// Geocode looks up q and returns the first match. ZERO_RESULTS gives an empty
// Result and no error; any other non-OK status gives an *Error. Callers are
// expected to stop their batch on error rather than retry.
func (g *Client) Geocode(ctx context.Context, q Query) (*Result, error) {
	key := cacheKey(q)
	if g.cache != nil {
		cached, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			g.logger.Warn("geocode cache read failed", zap.Error(err))
		} else if ok {
			g.logger.Debug("geocode cache hit", zap.String("key", key[:12]))
			return cached, nil
		}
	}

	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	result, err := g.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, result); err != nil {
			g.logger.Warn("geocode cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// Close releases the response cache when it holds a connection
func (g *Client) Close() error {
	if c, ok := g.cache.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (g *Client) wait(ctx context.Context) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "geocode: rate limit")
		}
	}
	if err := g.sleep(ctx, g.jitter()); err != nil {
		return eris.Wrap(err, "geocode: wait")
	}
	return nil
}

func (g *Client) jitter() time.Duration {
	if g.maxWait <= g.minWait {
		return g.minWait
	}
	span := int64(g.maxWait - g.minWait)
	return g.minWait + time.Duration(rand.Int64N(span+1))
}

func (g *Client) fetch(ctx context.Context, q Query) (*Result, error) {
	params := url.Values{
		"address": {strings.TrimSpace(q.Address)},
	}
	if components := q.Components(); components != "" {
		params.Set("components", components)
	}
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	reqURL := g.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Status: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	return parseResponse(apiResp)
}

func parseResponse(apiResp apiResponse) (*Result, error) {
	if apiResp.Status != statusOK && apiResp.Status != statusZeroResults {
		return nil, &Error{Status: apiResp.Status, Message: apiResp.ErrorMessage}
	}

	result := &Result{}
	if len(apiResp.Results) == 0 {
		return result, nil
	}

	first := apiResp.Results[0]
	result.Point = first.Geometry.Location
	result.Viewport = first.Geometry.Viewport

	for _, c := range first.AddressComponents {
		typ := componentType(c.Types)
		if !keptComponents[typ] {
			continue
		}
		if result.Components == nil {
			result.Components = make(map[string]string)
		}
		result.Components[typ] = c.ShortName
	}

	return result, nil
}

// componentType is the first type that is not the generic "political" tag
func componentType(types []string) string {
	for _, t := range types {
		if t != "political" {
			return t
		}
	}
	return ""
}

// cacheKey returns SHA-256 hex of the normalized query
func cacheKey(q Query) string {
	normalized := strings.ToLower(strings.TrimSpace(q.Address)) + "|" + strings.ToLower(q.Components())
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
