// Package directory resolves employees in an Okta-compatible identity
// directory and classifies every failure as terminal or transient.
package directory

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"user-onboarding/internal/circuitbreaker"
	"user-onboarding/internal/common/errors"
	commonhttp "user-onboarding/internal/common/http"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/metrics"
	"user-onboarding/internal/models"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// Fetcher is what the enrichment processor needs from the directory.
type Fetcher interface {
	Fetch(ctx context.Context, email string) (*models.DirectoryUser, error)
	FetchByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.DirectoryUser, error)
}

// Config holds directory API settings
type Config struct {
	BaseURL    string
	Token      string
	AuthScheme string        // "SSWS" (default) or "Bearer"
	Timeout    time.Duration // per HTTP call
	MaxPages   int           // cap on rel="next" pages followed per listing

	// RateLimit is requests per second across all lanes; zero disables it.
	RateLimit float64
	Burst     int

	BreakerEnabled bool
	Breaker        circuitbreaker.Config
}

// DefaultConfig returns the defaults applied to unset fields
func DefaultConfig() Config {
	return Config{
		AuthScheme: "SSWS",
		Timeout:    10 * time.Second,
		MaxPages:   10,
		Burst:      1,
		Breaker:    circuitbreaker.DefaultConfig(),
	}
}

// Client calls the directory's users, groups and appLinks endpoints.
type Client struct {
	config     Config
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.GoBreakerAdapter
	metrics    *metrics.Metrics
	logger     logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, used with httptest servers.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithMetrics records call latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(client *Client) {
		client.metrics = m
	}
}

var _ Fetcher = (*Client)(nil)

// NewClient validates the configuration and builds a client. Missing or
// malformed settings return a Configuration error, which is fatal at startup.
func NewClient(config Config, logger logging.Logger, opts ...Option) (*Client, error) {
	defaults := DefaultConfig()
	if config.AuthScheme == "" {
		config.AuthScheme = defaults.AuthScheme
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if strings.TrimSpace(config.Token) == "" {
		return nil, errors.ConfigError("directory API token is not configured")
	}
	base, err := parseBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		baseURL:    base,
		httpClient: commonhttp.NewHTTPClient(commonhttp.WithMaxIdleConnsPerHost(32)),
		logger:     logger.WithFields(logging.String("component", "directory")),
	}
	if config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst)
	}
	if config.BreakerEnabled {
		c.breaker = circuitbreaker.NewGoBreaker("directory", config.Breaker, c.logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health fails while the circuit breaker is open, so the health endpoint
// shows a directory outage before requests start dead-lettering.
func (c *Client) Health(ctx context.Context) error {
	if c.breaker == nil || !c.breaker.IsOpen() {
		return nil
	}
	counts := c.breaker.Counts()
	return errors.APIError(fmt.Sprintf("directory circuit breaker open after %d consecutive failures",
		counts.ConsecutiveFailures), nil)
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return nil, errors.ConfigError("directory base URL is not configured")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.ConfigError(fmt.Sprintf("directory base URL %q is malformed", raw))
	}
	return u, nil
}

// Fetch resolves email to a directory user with groups and applications.
// All three calls must succeed; there is no partial result.
func (c *Client) Fetch(ctx context.Context, email string) (*models.DirectoryUser, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.ValidationError("email is required for directory lookup")
	}
	return c.resolve(ctx, "profile.email", email, logging.MaskEmail(email))
}

// FetchByEmployeeNumber is used when the HR record carries no email.
func (c *Client) FetchByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.DirectoryUser, error) {
	if strings.TrimSpace(employeeNumber) == "" {
		return nil, errors.ValidationError("employee number is required for directory lookup")
	}
	return c.resolve(ctx, "profile.employeeNumber", employeeNumber, logging.HashID(employeeNumber))
}

func (c *Client) resolve(ctx context.Context, attribute, value, logValue string) (*models.DirectoryUser, error) {
	found, err := c.findUser(ctx, attribute, value, logValue)
	if err != nil {
		return nil, err
	}

	groups, err := c.listGroups(ctx, found.ID)
	if err != nil {
		return nil, err
	}

	apps, err := c.listAppLinks(ctx, found.ID)
	if err != nil {
		return nil, err
	}

	profile := models.DirectoryProfile{
		Login:          firstNonEmpty(found.Profile.Login, found.Profile.Email),
		Email:          firstNonEmpty(found.Profile.Email, found.Profile.Login),
		FirstName:      found.Profile.FirstName,
		LastName:       found.Profile.LastName,
		EmployeeNumber: found.Profile.EmployeeNumber,
	}

	c.logger.Debug("Directory user resolved",
		logging.String("lookup", logValue),
		logging.Int("groups", len(groups)),
		logging.Int("applications", len(apps)),
	)

	return &models.DirectoryUser{
		ID:           found.ID,
		Profile:      profile,
		Groups:       groups,
		Applications: apps,
	}, nil
}

func (c *Client) findUser(ctx context.Context, attribute, value, logValue string) (*userResource, error) {
	query := url.Values{}
	query.Set("search", fmt.Sprintf("%s eq %q", attribute, value))
	endpoint := c.endpoint("/api/v1/users") + "?" + query.Encode()

	body, _, err := c.get(ctx, "search", endpoint)
	if err != nil {
		return nil, err
	}

	var users []userResource
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, errors.APIError("directory returned an undecodable user search response", err)
	}
	if len(users) == 0 {
		return nil, errors.NotFoundError("directory user").WithContext("lookup", logValue)
	}
	if users[0].ID == "" {
		return nil, errors.APIError("directory user record has no id", nil)
	}
	return &users[0], nil
}

func (c *Client) listGroups(ctx context.Context, userID string) ([]string, error) {
	names := []string{}
	err := c.paginate(ctx, "groups", c.endpoint("/api/v1/users/"+url.PathEscape(userID)+"/groups"), func(body []byte) error {
		var groups []groupResource
		if err := json.Unmarshal(body, &groups); err != nil {
			return errors.APIError("directory returned an undecodable groups response", err)
		}
		for _, g := range groups {
			if name := g.name(); name != "" {
				names = append(names, name)
			}
		}
		return nil
	})
	return names, err
}

func (c *Client) listAppLinks(ctx context.Context, userID string) ([]string, error) {
	labels := []string{}
	err := c.paginate(ctx, "app_links", c.endpoint("/api/v1/users/"+url.PathEscape(userID)+"/appLinks"), func(body []byte) error {
		var links []appLinkResource
		if err := json.Unmarshal(body, &links); err != nil {
			return errors.APIError("directory returned an undecodable appLinks response", err)
		}
		for _, l := range links {
			if label := firstNonEmpty(l.Label, l.AppName); label != "" {
				labels = append(labels, label)
			}
		}
		return nil
	})
	return labels, err
}

// paginate follows rel="next" links until none remain. A listing longer than
// MaxPages is a Configuration error: a truncated list must never be merged.
func (c *Client) paginate(ctx context.Context, call, endpoint string, page func([]byte) error) error {
	next := endpoint
	for i := 0; i < c.config.MaxPages && next != ""; i++ {
		body, header, err := c.get(ctx, call, next)
		if err != nil {
			return err
		}
		if err := page(body); err != nil {
			return err
		}
		next = c.resolveNext(header.Get("Link"))
	}
	if next != "" {
		c.logger.Warn("Directory pagination cap reached",
			logging.String("call", call),
			logging.Int("max_pages", c.config.MaxPages),
		)
		return errors.ConfigError(fmt.Sprintf("directory %s listing exceeds %d pages", call, c.config.MaxPages)).
			WithContext("call", call)
	}
	return nil
}

func (c *Client) resolveNext(linkHeader string) string {
	next := nextLink(linkHeader)
	if next == "" {
		return ""
	}
	u, err := c.baseURL.Parse(next)
	if err != nil {
		return ""
	}
	return u.String()
}

// get performs one bounded GET, going through the limiter and breaker.
func (c *Client) get(ctx context.Context, call, endpoint string) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, errors.APIError("directory rate limiter wait aborted", err)
		}
	}

	var (
		body   []byte
		header http.Header
	)
	do := func() error {
		var err error
		body, header, err = c.roundTrip(ctx, call, endpoint)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, do)
	} else {
		err = do()
	}
	return body, header, err
}

func (c *Client) roundTrip(ctx context.Context, call, endpoint string) ([]byte, http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, errors.ConfigError(fmt.Sprintf("cannot build directory request: %v", err))
	}
	req.Header.Set("Authorization", c.config.AuthScheme+" "+c.config.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveDirectoryCall(call, "error", time.Since(start))
		return nil, nil, transportError(call, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveDirectoryCall(call, statusClass(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, nil, transportError(call, err)
	}

	if err := classifyStatus(call, resp.StatusCode); err != nil {
		return nil, nil, err
	}
	return body, resp.Header, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func transportError(call string, err error) error {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.APIError(fmt.Sprintf("directory %s request timed out", call), err).
			WithContext("reason", "timeout")
	}
	return errors.APIError(fmt.Sprintf("directory %s request failed", call), err).
		WithContext("reason", "connection")
}

// classifyStatus maps a directory HTTP status to a failure kind.
func classifyStatus(call string, status int) error {
	code := fmt.Sprintf("%d", status)
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return errors.NotFoundError("directory user").WithCode(code).WithContext("call", call)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.ConfigError("directory rejected the API credentials").WithCode(code).WithContext("call", call)
	case status == http.StatusTooManyRequests:
		return errors.APIError("directory rate limit exceeded", nil).WithCode(code).WithContext("call", call)
	case status >= 500:
		return errors.APIError("directory server error", nil).WithCode(code).WithContext("call", call)
	case status >= 400:
		return errors.ValidationError("directory rejected the request").WithCode(code).WithContext("call", call)
	default:
		return errors.APIError("unexpected directory response", nil).WithCode(code).WithContext("call", call)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "ok"
	default:
		return "other"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
