package signed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/token"
)

type validatorConfig struct {
	// SigningKey is the shared secret the HMAC key is derived from.
	SigningKey string `json:"signingKey"`

	// Issuer and Audience default to the single-tenant protocol URI.
	Issuer   string `json:"issuer,omitempty"`
	Audience string `json:"audience,omitempty"`

	// IssuerFromHost derives issuer and audience from the request host.
	IssuerFromHost bool `json:"issuerFromHost,omitempty"`

	ClockSkewSeconds *int `json:"clockSkewSeconds,omitempty"`
}

// Validator checks the token signature with a key derived from the
// configured signing key before trusting any claim.
type Validator struct {
	secret         string
	issuer         string
	audience       string
	issuerFromHost bool
	codec          *token.Codec
}

// NewValidator creates a signature-checking validator
func NewValidator(cfg auth.Config) (*Validator, error) {
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, errors.New("signed auth: signingKey is required")
	}
	if _, err := token.DeriveKey(cfg.SigningKey); err != nil {
		return nil, fmt.Errorf("signed auth: invalid signingKey: %w", err)
	}
	opts := []token.Option{token.WithIssuer(cfg.Issuer), token.WithAudience(cfg.Audience)}
	if cfg.ClockSkew != nil {
		opts = append(opts, token.WithClockSkew(*cfg.ClockSkew))
	}
	codec := token.NewCodec(opts...)
	return &Validator{
		secret:         cfg.SigningKey,
		issuer:         codec.Issuer(),
		audience:       codec.Audience(),
		issuerFromHost: cfg.IssuerFromHost,
		codec:          codec,
	}, nil
}

func NewValidatorFromJSON(raw json.RawMessage) (auth.Validator, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, errors.New("signed auth: missing config")
	}
	var cfg validatorConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("signed auth: invalid config: %w", err)
	}
	acfg := auth.Config{
		SigningKey:     cfg.SigningKey,
		Issuer:         strings.TrimSpace(cfg.Issuer),
		Audience:       strings.TrimSpace(cfg.Audience),
		IssuerFromHost: cfg.IssuerFromHost,
	}
	if cfg.ClockSkewSeconds != nil {
		if *cfg.ClockSkewSeconds < 0 {
			return nil, errors.New("signed auth: clockSkewSeconds must be >= 0")
		}
		skew := time.Duration(*cfg.ClockSkewSeconds) * time.Second
		acfg.ClockSkew = &skew
	}
	return NewValidator(acfg)
}

// Validate verifies signature, audience, issuer and lifetime.
func (v *Validator) Validate(tokenString string, host string) (*auth.ClaimSet, error) {
	issuer, audience := v.issuer, v.audience
	if v.issuerFromHost && host != "" {
		issuer = auth.IssuerForHost(host)
		audience = issuer
	}
	return v.codec.Validate(tokenString, audience, issuer, v.secret)
}

func init() {
	auth.RegisterProvider(auth.ModeSigned, NewValidatorFromJSON)
}
