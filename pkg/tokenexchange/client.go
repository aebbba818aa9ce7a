package tokenexchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/osvaldoandrade/zumo/internal/metrics"
	"github.com/osvaldoandrade/zumo/internal/tracing"
	"github.com/osvaldoandrade/zumo/pkg/auth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderSessionToken carries the caller's session token upstream.
	HeaderSessionToken = "x-zumo-auth"
	UserAgent          = "MobileAppNetServerSdk"

	apiVersion = "2015-01-14"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// API selects the token service endpoint.
type API string

const (
	// APIAuthMe calls GET /.auth/me?provider={provider}.
	APIAuthMe API = "authMe"
	// APITokens calls GET /api/tokens?tokenName={provider}&api-version=2015-01-14.
	APITokens API = "apiTokens"
)

type Config struct {
	BaseURL string
	API     API
	Timeout time.Duration
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client trades a session token for the upstream provider token held by the
// token service. It is safe for concurrent use and never retries.
type Client struct {
	base   *url.URL
	api    API
	http   Doer
	logger *slog.Logger
	tracer trace.Tracer
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrConfiguration)
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrConfiguration, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL must be an absolute http(s) URL: %q", ErrConfiguration, raw)
	}

	api := cfg.API
	switch api {
	case "":
		api = APIAuthMe
	case APIAuthMe, APITokens:
	default:
		return nil, fmt.Errorf("%w: unknown token API %q", ErrConfiguration, api)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		base:   base,
		api:    api,
		http:   &http.Client{Timeout: timeout},
		logger: slog.Default(),
		tracer: otel.Tracer("zumo/tokenexchange"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchProviderToken makes one request to the token service. It returns nil
// and no error when the service holds no token for the provider, and an
// *UpstreamError for any non-2xx answer.
func (c *Client) FetchProviderToken(ctx context.Context, sessionToken, providerName string) (*TokenEntry, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: sessionToken is required", ErrInvalidArgument)
	}
	if providerName == "" {
		return nil, fmt.Errorf("%w: providerName is required", ErrInvalidArgument)
	}

	ctx, span := c.tracer.Start(ctx, "tokenexchange.FetchProviderToken",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("zumo.provider", providerName),
			attribute.String("zumo.token_api", string(c.api)),
		),
	)
	defer span.End()

	start := time.Now()
	entry, err := c.fetch(ctx, sessionToken, providerName)
	metrics.TokenExchangeLatencySeconds.WithLabelValues(strings.ToLower(providerName)).Observe(time.Since(start).Seconds())
	metrics.TokenExchangeTotal.WithLabelValues(strings.ToLower(providerName), outcome(entry, err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("token exchange failed", "provider", providerName, "err", err)
		return nil, err
	}
	return entry, nil
}

func (c *Client) fetch(ctx context.Context, sessionToken, providerName string) (*TokenEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(providerName), nil)
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set(HeaderSessionToken, sessionToken)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: body, Response: resp}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read token response: %w", readErr)
	}

	if c.api == APITokens {
		return decodeTokenResult(body, providerName, c.logger)
	}
	return decodeMe(body, providerName)
}

func (c *Client) requestURL(providerName string) string {
	u := *c.base
	q := url.Values{}
	switch c.api {
	case APITokens:
		u.Path = strings.TrimSuffix(u.Path, "/") + "/api/tokens"
		q.Set("tokenName", providerName)
		q.Set("api-version", apiVersion)
	default:
		u.Path = strings.TrimSuffix(u.Path, "/") + "/.auth/me"
		q.Set("provider", strings.ToLower(providerName))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeMe accepts a single entry or the list form the service returns when
// several providers are linked. "{}" and "[]" mean no token.
func decodeMe(body []byte, providerName string) (*TokenEntry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var entries []meEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
		for i := range entries {
			if strings.EqualFold(entries[i].Provider, providerName) {
				return entries[i].toEntry(providerName), nil
			}
		}
		return nil, nil
	}

	var m meEntry
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if m.empty() {
		return nil, nil
	}
	return m.toEntry(providerName), nil
}

func decodeTokenResult(body []byte, providerName string, logger *slog.Logger) (*TokenEntry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var r tokenResult
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if r.empty() {
		return nil, nil
	}
	entry, err := r.toEntry(providerName, auth.ClaimTypeNameIdentifier)
	if err != nil {
		logger.Debug("token expiration ignored", "provider", providerName, "err", err)
	}
	return entry, nil
}

func outcome(entry *TokenEntry, err error) string {
	switch {
	case err != nil && StatusCode(err) != 0:
		return "upstream_error"
	case err != nil:
		return "error"
	case entry == nil:
		return "not_found"
	case !IsValid(entry):
		return "invalid"
	default:
		return "found"
	}
}
