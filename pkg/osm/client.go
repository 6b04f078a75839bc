// Package osm provides utilities for interacting with OpenStreetMap APIs.
package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent is the default User-Agent string, required by the
	// usage policies of both Nominatim and Overpass.
	DefaultUserAgent = "NEREID-fetch/1.0"

	// Default API endpoints. NEREID runs its own mirrors of both services.
	DefaultOverpassBaseURL  = "https://overpass.yuiseki.net/api/interpreter"
	DefaultNominatimBaseURL = "https://nominatim.yuiseki.net"

	// Per-request deadlines
	overpassRequestTimeout  = 60 * time.Second
	nominatimRequestTimeout = 30 * time.Second
)

var (
	// Global HTTP client with connection pooling. Deadlines are set per
	// request via context, so the client itself carries no timeout.
	httpClient *http.Client

	// Rate limiters for each service
	nominatimLimiter *rate.Limiter
	overpassLimiter  *rate.Limiter

	// Mutable client settings
	userAgent        string
	overpassBaseURL  string
	nominatimBaseURL string
	settingsLock     sync.RWMutex
)

// init initializes the global HTTP client and rate limiters
func init() {
	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	initRateLimiters()

	SetUserAgent(DefaultUserAgent)
	SetOverpassBaseURL(DefaultOverpassBaseURL)
	SetNominatimBaseURL(DefaultNominatimBaseURL)
}

// initRateLimiters initializes the rate limiters with default values
func initRateLimiters() {
	// Default to 1 request per second with burst of 1
	nominatimLimiter = rate.NewLimiter(rate.Limit(1), 1)
	overpassLimiter = rate.NewLimiter(rate.Limit(1), 1)
}

// UpdateNominatimRateLimits updates the Nominatim rate limiter
func UpdateNominatimRateLimits(rps float64, burst int) {
	nominatimLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UpdateOverpassRateLimits updates the Overpass rate limiter
func UpdateOverpassRateLimits(rps float64, burst int) {
	overpassLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	settingsLock.Lock()
	defer settingsLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	settingsLock.RLock()
	defer settingsLock.RUnlock()
	return userAgent
}

// SetOverpassBaseURL sets the Overpass interpreter endpoint
func SetOverpassBaseURL(u string) {
	settingsLock.Lock()
	defer settingsLock.Unlock()
	overpassBaseURL = u
}

// GetOverpassBaseURL returns the current Overpass interpreter endpoint
func GetOverpassBaseURL() string {
	settingsLock.RLock()
	defer settingsLock.RUnlock()
	return overpassBaseURL
}

// SetNominatimBaseURL sets the Nominatim endpoint
func SetNominatimBaseURL(u string) {
	settingsLock.Lock()
	defer settingsLock.Unlock()
	nominatimBaseURL = u
}

// GetNominatimBaseURL returns the current Nominatim endpoint
func GetNominatimBaseURL() string {
	settingsLock.RLock()
	defer settingsLock.RUnlock()
	return nominatimBaseURL
}

// hostFromURL extracts the host from a URL string
func hostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}

// waitForRateLimit waits for the appropriate rate limiter based on the request URL
func waitForRateLimit(ctx context.Context, req *http.Request) error {
	var limiter *rate.Limiter

	switch req.URL.Host {
	case hostFromURL(GetNominatimBaseURL()):
		limiter = nominatimLimiter
	case hostFromURL(GetOverpassBaseURL()):
		limiter = overpassLimiter
	default:
		return nil // No rate limiting for unknown hosts
	}

	return limiter.Wait(ctx)
}

// DoRequest performs an HTTP request with the configured User-Agent and rate limiting
func DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", GetUserAgent())

	if err := waitForRateLimit(ctx, req); err != nil {
		return nil, err
	}

	return httpClient.Do(req)
}

// NewRequestWithUserAgent creates a new HTTP GET request with the proper
// User-Agent header already set.
func NewRequestWithUserAgent(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	// Required by Nominatim's usage policy
	req.Header.Set("User-Agent", GetUserAgent())

	return req, nil
}

// Client represents an OSM API client
type Client struct {
	logger *slog.Logger
}

// NewClient creates a new OSM API client
func NewClient() *Client {
	return &Client{
		logger: slog.Default(),
	}
}

// SetLogger sets the logger for the client
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// QueryOverpass executes an Overpass QL program and decodes the JSON response.
func (c *Client) QueryOverpass(ctx context.Context, query string) (*OverpassResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, overpassRequestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("data", query)
	reqURL := GetOverpassBaseURL() + "?" + params.Encode()

	req, err := NewRequestWithUserAgent(ctx, http.MethodGet, reqURL)
	if err != nil {
		return nil, fmt.Errorf("create overpass request: %w", err)
	}

	c.logger.Debug("querying Overpass", "url", GetOverpassBaseURL(), "query", query)

	resp, err := DoRequest(ctx, req)
	if err != nil {
		return nil, NewError(ErrNetworkError, fmt.Sprintf("overpass request failed: %v", err)).
			WithQuery(query)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ServiceError("Overpass", resp.StatusCode,
			fmt.Sprintf("HTTP status %d", resp.StatusCode)).WithQuery(query)
	}

	var out OverpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewError(ErrParseError, fmt.Sprintf("failed to decode Overpass response: %v", err)).
			WithQuery(query)
	}

	c.logger.Debug("overpass response decoded", "elements", len(out.Elements))
	return &out, nil
}

// SearchNominatim performs a free-text place search against Nominatim and
// returns the decoded result list. At most one result is requested.
func (c *Client) SearchNominatim(ctx context.Context, query string) ([]NominatimPlace, error) {
	ctx, cancel := context.WithTimeout(ctx, nominatimRequestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("q", query)
	reqURL := GetNominatimBaseURL() + "/search.php?" + params.Encode()

	req, err := NewRequestWithUserAgent(ctx, http.MethodGet, reqURL)
	if err != nil {
		return nil, fmt.Errorf("create nominatim request: %w", err)
	}

	c.logger.Debug("searching Nominatim", "url", GetNominatimBaseURL(), "query", query)

	resp, err := DoRequest(ctx, req)
	if err != nil {
		return nil, NewError(ErrNetworkError, fmt.Sprintf("nominatim request failed: %v", err)).
			WithQuery(query)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ServiceError("Nominatim", resp.StatusCode,
			fmt.Sprintf("HTTP status %d", resp.StatusCode)).WithQuery(query)
	}

	var places []NominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, NewError(ErrParseError, fmt.Sprintf("failed to decode Nominatim response: %v", err)).
			WithQuery(query)
	}

	c.logger.Debug("nominatim response decoded", "results", len(places))
	return places, nil
}

// CheckOverpassHealth checks if the Overpass API is available
func CheckOverpassHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := NewRequestWithUserAgent(ctx, http.MethodGet, GetOverpassBaseURL())
	if err != nil {
		return fmt.Errorf("failed to create overpass health check request: %w", err)
	}

	// A minimal query to check that the interpreter is responsive
	req.URL.RawQuery = "data=[out:json];out meta;"

	resp, err := DoRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("overpass health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("overpass health check returned status %d", resp.StatusCode)
	}

	return nil
}

// CheckNominatimHealth checks if the Nominatim service is available
func CheckNominatimHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := NewRequestWithUserAgent(ctx, http.MethodGet, GetNominatimBaseURL()+"/status.php")
	if err != nil {
		return fmt.Errorf("failed to create nominatim health check request: %w", err)
	}

	resp, err := DoRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("nominatim health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim health check returned status %d", resp.StatusCode)
	}

	return nil
}
