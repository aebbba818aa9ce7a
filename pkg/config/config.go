package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/osvaldoandrade/zumo/internal/tracing"
	"github.com/osvaldoandrade/zumo/pkg/auth"
	"gopkg.in/yaml.v3"
)

// Authentication modes decide whether the token middleware is installed.
const (
	AuthModeAlways    = "always"
	AuthModeLocalOnly = "localOnly"
	AuthModeNever     = "never"
)

const defaultClockSkewSeconds = 300

// Token service APIs.
const (
	TokenAPIAuthMe    = "authMe"
	TokenAPIAPITokens = "apiTokens"
)

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Identity RateLimitBucketConfig `yaml:"identity"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	SigningKey                   string `yaml:"signingKey"`
	Issuer                       string `yaml:"issuer"`
	Audience                     string `yaml:"audience"`
	IssuerFromHost               bool   `yaml:"issuerFromHost"`
	SkipTokenSignatureValidation bool   `yaml:"skipTokenSignatureValidation"`
	ClockSkewSeconds             *int   `yaml:"clockSkewSeconds"`

	AuthMode        string `yaml:"authMode"`
	WebsiteHostname string `yaml:"websiteHostname"`

	TokenBaseURL                string `yaml:"tokenBaseUrl"`
	TokenAPI                    string `yaml:"tokenApi"`
	TokenExchangeTimeoutSeconds int    `yaml:"tokenExchangeTimeoutSeconds"`

	RedisAddr     string          `yaml:"redisAddr"`
	RedisPassword string          `yaml:"redisPassword"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`

	Tracing TracingConfig `yaml:"tracing"`
}

// LoadConfig reads filePath, then applies environment overrides and defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfigOptional is LoadConfig for deployments configured purely through
// the environment: an empty path or a missing file yields env and defaults.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) == "" {
		return fromEnv(), nil
	}
	cfg, err := LoadConfig(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fromEnv(), nil
	}
	return cfg, err
}

func fromEnv() *Config {
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c
}

func (c *Config) applyEnv() {
	envInt("PORT", &c.Port)
	envString("ZUMO_ENV", &c.Env)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FORMAT", &c.LogFormat)

	// The hosting platform injects the key as WEBSITE_AUTH_SIGNING_KEY; an
	// explicit ZUMO_SIGNING_KEY wins.
	envString("WEBSITE_AUTH_SIGNING_KEY", &c.SigningKey)
	envString("ZUMO_SIGNING_KEY", &c.SigningKey)
	envString("ZUMO_ISSUER", &c.Issuer)
	envString("ZUMO_AUDIENCE", &c.Audience)
	envBool("ZUMO_ISSUER_FROM_HOST", &c.IssuerFromHost)
	envBool("ZUMO_SKIP_TOKEN_SIGNATURE_VALIDATION", &c.SkipTokenSignatureValidation)
	envIntPtr("ZUMO_CLOCK_SKEW_SECONDS", &c.ClockSkewSeconds)

	envString("ZUMO_AUTH_MODE", &c.AuthMode)
	envString("WEBSITE_HOSTNAME", &c.WebsiteHostname)

	envString("EMA_RUNTIME_URL", &c.TokenBaseURL)
	envString("ZUMO_TOKEN_API", &c.TokenAPI)
	envInt("ZUMO_TOKEN_EXCHANGE_TIMEOUT_SECONDS", &c.TokenExchangeTimeoutSeconds)

	envString("REDIS_ADDR", &c.RedisAddr)
	envString("REDIS_PASSWORD", &c.RedisPassword)
	envInt("RATE_LIMIT_IDENTITY_RPM", &c.RateLimit.Identity.RequestsPerMinute)
	envInt("RATE_LIMIT_IDENTITY_BURST", &c.RateLimit.Identity.BurstSize)

	envBool("TRACING_ENABLED", &c.Tracing.Enabled)
	envString("OTEL_SERVICE_NAME", &c.Tracing.ServiceName)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.OTLPEndpoint)
	envBool("OTEL_EXPORTER_OTLP_INSECURE", &c.Tracing.OTLPInsecure)
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		c.Tracing.SampleRatio = tracing.ParseSampleRatio(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.AuthMode == "" {
		c.AuthMode = AuthModeAlways
	}
	if c.TokenAPI == "" {
		c.TokenAPI = TokenAPIAuthMe
	}
	if c.TokenExchangeTimeoutSeconds <= 0 {
		c.TokenExchangeTimeoutSeconds = 30
	}
	// An explicit 0 is kept: it disables the lifetime tolerance.
	if c.ClockSkewSeconds == nil {
		skew := defaultClockSkewSeconds
		c.ClockSkewSeconds = &skew
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "zumo"
	}
}

func (c *Config) Validate() error {
	var errs []string
	dev := strings.EqualFold(strings.TrimSpace(c.Env), "dev")

	switch c.AuthMode {
	case AuthModeAlways, AuthModeLocalOnly, AuthModeNever:
	default:
		errs = append(errs, fmt.Sprintf("authMode must be one of %s, %s, %s", AuthModeAlways, AuthModeLocalOnly, AuthModeNever))
	}

	if c.AuthenticationEnabled() && !c.SkipTokenSignatureValidation {
		if strings.TrimSpace(c.SigningKey) == "" {
			errs = append(errs, "signingKey is required unless skipTokenSignatureValidation is set")
		}
	}
	if c.SkipTokenSignatureValidation && !dev && c.WebsiteHostname == "" {
		errs = append(errs, "skipTokenSignatureValidation is only allowed behind the hosting gateway (websiteHostname) in non-dev")
	}
	if c.ClockSkewSeconds != nil && *c.ClockSkewSeconds < 0 {
		errs = append(errs, "clockSkewSeconds must be >= 0")
	}

	if c.TokenBaseURL != "" {
		u, err := url.Parse(c.TokenBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "tokenBaseUrl must be a valid http(s) URL")
		}
	}
	switch c.TokenAPI {
	case TokenAPIAuthMe, TokenAPIAPITokens:
	default:
		errs = append(errs, fmt.Sprintf("tokenApi must be %s or %s", TokenAPIAuthMe, TokenAPIAPITokens))
	}

	b := c.RateLimit.Identity
	if b.RequestsPerMinute < 0 || b.BurstSize < 0 {
		errs = append(errs, "rateLimit.identity values must be >= 0")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AuthenticationEnabled reports whether the token middleware should run.
// In localOnly mode it runs only outside the hosting platform, where no
// gateway authenticates requests.
func (c *Config) AuthenticationEnabled() bool {
	switch c.AuthMode {
	case AuthModeNever:
		return false
	case AuthModeLocalOnly:
		return strings.TrimSpace(c.WebsiteHostname) == ""
	default:
		return true
	}
}

// ValidationMode is the validator registry key for this config.
func (c *Config) ValidationMode() string {
	if c.SkipTokenSignatureValidation {
		return auth.ModeTrusted
	}
	return auth.ModeSigned
}

// ValidatorConfig builds the registry entry for the configured validator.
func (c *Config) ValidatorConfig() (auth.ProviderConfig, error) {
	raw, err := json.Marshal(struct {
		SigningKey       string `json:"signingKey,omitempty"`
		Issuer           string `json:"issuer,omitempty"`
		Audience         string `json:"audience,omitempty"`
		IssuerFromHost   bool   `json:"issuerFromHost,omitempty"`
		ClockSkewSeconds *int   `json:"clockSkewSeconds,omitempty"`
	}{
		SigningKey:       c.SigningKey,
		Issuer:           c.Issuer,
		Audience:         c.Audience,
		IssuerFromHost:   c.IssuerFromHost,
		ClockSkewSeconds: c.ClockSkewSeconds,
	})
	if err != nil {
		return auth.ProviderConfig{}, err
	}
	return auth.ProviderConfig{Type: c.ValidationMode(), Config: raw}, nil
}

func (c *Config) ClockSkew() time.Duration {
	if c.ClockSkewSeconds == nil {
		return defaultClockSkewSeconds * time.Second
	}
	return time.Duration(*c.ClockSkewSeconds) * time.Second
}

func (c *Config) TokenExchangeTimeout() time.Duration {
	return time.Duration(c.TokenExchangeTimeoutSeconds) * time.Second
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envIntPtr(key string, dst **int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = &n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
