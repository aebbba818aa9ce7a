package trusted

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/token"
)

// Validator accepts tokens whose signature was already verified by an
// upstream gateway. It must only be used when the service is not reachable
// except through that gateway.
type Validator struct {
	issuer         string
	audience       string
	issuerFromHost bool
	codec          *token.Codec
}

type validatorConfig struct {
	Issuer           string `json:"issuer,omitempty"`
	Audience         string `json:"audience,omitempty"`
	IssuerFromHost   bool   `json:"issuerFromHost,omitempty"`
	ClockSkewSeconds *int   `json:"clockSkewSeconds,omitempty"`
}

func NewValidator(cfg auth.Config) *Validator {
	opts := []token.Option{token.WithIssuer(cfg.Issuer), token.WithAudience(cfg.Audience)}
	if cfg.ClockSkew != nil {
		opts = append(opts, token.WithClockSkew(*cfg.ClockSkew))
	}
	codec := token.NewCodec(opts...)
	return &Validator{
		issuer:         codec.Issuer(),
		audience:       codec.Audience(),
		issuerFromHost: cfg.IssuerFromHost,
		codec:          codec,
	}
}

func NewValidatorFromJSON(raw json.RawMessage) (auth.Validator, error) {
	var cfg validatorConfig
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.New("trusted auth: invalid config: " + err.Error())
		}
	}
	acfg := auth.Config{
		Issuer:         strings.TrimSpace(cfg.Issuer),
		Audience:       strings.TrimSpace(cfg.Audience),
		IssuerFromHost: cfg.IssuerFromHost,
	}
	if cfg.ClockSkewSeconds != nil {
		if *cfg.ClockSkewSeconds < 0 {
			return nil, errors.New("trusted auth: clockSkewSeconds must be >= 0")
		}
		skew := time.Duration(*cfg.ClockSkewSeconds) * time.Second
		acfg.ClockSkew = &skew
	}
	return NewValidator(acfg), nil
}

// Validate decodes the token and checks audience, issuer and lifetime
// without verifying the signature.
func (v *Validator) Validate(tokenString string, host string) (*auth.ClaimSet, error) {
	issuer, audience := v.issuer, v.audience
	if v.issuerFromHost && host != "" {
		issuer = auth.IssuerForHost(host)
		audience = issuer
	}
	return v.codec.ParsePrevalidated(tokenString, audience, issuer)
}

func init() {
	auth.RegisterProvider(auth.ModeTrusted, NewValidatorFromJSON)
}
