package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/osvaldoandrade/zumo/pkg/auth"
)

const (
	// ZumoIssuer is the issuer and audience of single-tenant tokens.
	ZumoIssuer   = "urn:microsoft:windows-azure:zumo"
	ZumoAudience = ZumoIssuer

	// ProtocolVersion is written to every token as the "ver" claim.
	ProtocolVersion = "3"

	DefaultClockSkew = 5 * time.Minute
)

// Registered claim names.
const (
	ClaimIssuer    = "iss"
	ClaimAudience  = "aud"
	ClaimExpires   = "exp"
	ClaimNotBefore = "nbf"
	ClaimVersion   = "ver"
)

// inboundClaimTypes maps short JWT claim names to the long-form claim types
// exposed on decoded claim sets.
var inboundClaimTypes = map[string]string{
	"nameid":      auth.ClaimTypeNameIdentifier,
	"unique_name": auth.ClaimTypeName,
	"email":       auth.ClaimTypeEmail,
	"role":        auth.ClaimTypeRole,
}

// Token is a signed token together with the values it was built from.
type Token struct {
	Raw       string
	Issuer    string
	Audience  string
	NotBefore time.Time
	Expires   *time.Time
	Claims    []auth.Claim
}

func (t *Token) String() string {
	if t == nil {
		return ""
	}
	return t.Raw
}

// Lifetime is a convenience for passing a token lifetime.
func Lifetime(d time.Duration) *time.Duration {
	return &d
}

// Codec creates and validates HS256 tokens.
type Codec struct {
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
	keys      *KeyCache
}

type Option func(*Codec)

// WithIssuer sets the issuer written by CreateToken and expected by TryValidate.
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		if issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithAudience sets the audience written by CreateToken and expected by TryValidate.
func WithAudience(audience string) Option {
	return func(c *Codec) {
		if audience != "" {
			c.audience = audience
		}
	}
}

// WithClockSkew sets the tolerance applied to both lifetime bounds.
func WithClockSkew(skew time.Duration) Option {
	return func(c *Codec) {
		if skew >= 0 {
			c.clockSkew = skew
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func WithKeyCache(keys *KeyCache) Option {
	return func(c *Codec) {
		if keys != nil {
			c.keys = keys
		}
	}
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		issuer:    ZumoIssuer,
		audience:  ZumoAudience,
		clockSkew: DefaultClockSkew,
		now:       time.Now,
		keys:      NewKeyCache(defaultKeyCacheSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Issuer() string   { return c.issuer }
func (c *Codec) Audience() string { return c.audience }

// CreateToken signs claims into a token. The protocol version claim is added
// and a NameIdentifier claim is rewritten to "uid". A nil lifetime produces a
// token without an expiry.
func (c *Codec) CreateToken(claims []auth.Claim, lifetime *time.Duration, secret string) (*Token, error) {
	if claims == nil {
		return nil, fmt.Errorf("%w: claims are required", ErrInvalidArgument)
	}
	if lifetime != nil && *lifetime < 0 {
		return nil, fmt.Errorf("%w: lifetime must be greater than or equal to %s", ErrInvalidRange, time.Duration(0))
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrInvalidArgument)
	}

	final := make([]auth.Claim, 0, len(claims)+1)
	final = append(final, claims...)
	final = append(final, auth.Claim{Type: ClaimVersion, Value: ProtocolVersion})

	for i, cl := range final {
		if cl.Type == auth.ClaimTypeNameIdentifier {
			final = append(final[:i], final[i+1:]...)
			final = append(final, auth.Claim{Type: auth.ClaimTypeUID, Value: cl.Value})
			break
		}
	}

	return c.CreateTokenFromClaims(final, secret, c.audience, c.issuer, lifetime)
}

// CreateTokenFromClaims signs exactly the given claims with an explicit
// audience and issuer.
func (c *Codec) CreateTokenFromClaims(claims []auth.Claim, secret, audience, issuer string, lifetime *time.Duration) (*Token, error) {
	if lifetime != nil && *lifetime < 0 {
		return nil, fmt.Errorf("%w: lifetime must be greater than or equal to %s", ErrInvalidRange, time.Duration(0))
	}
	key, err := c.keys.Key(secret)
	if err != nil {
		return nil, err
	}

	issuedAt := c.now().UTC().Truncate(time.Second)
	var expires *time.Time
	if lifetime != nil {
		exp := issuedAt.Add(*lifetime)
		expires = &exp
	}

	payload := jwt.MapClaims{}
	for _, cl := range claims {
		switch existing := payload[cl.Type].(type) {
		case nil:
			payload[cl.Type] = cl.Value
		case string:
			payload[cl.Type] = []string{existing, cl.Value}
		case []string:
			payload[cl.Type] = append(existing, cl.Value)
		}
	}
	payload[ClaimIssuer] = issuer
	payload[ClaimAudience] = audience
	payload[ClaimNotBefore] = issuedAt.Unix()
	if expires != nil {
		payload[ClaimExpires] = expires.Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{
		Raw:       signed,
		Issuer:    issuer,
		Audience:  audience,
		NotBefore: issuedAt,
		Expires:   expires,
		Claims:    append([]auth.Claim(nil), claims...),
	}, nil
}

// Validate verifies the token's signature, audience, issuer and, when the
// token carries an expiry, its lifetime. The returned error wraps one of the
// package's validation errors.
func (c *Codec) Validate(tokenString, audience, issuer, secret string) (*auth.ClaimSet, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidArgument)
	}
	key, err := c.keys.Key(secret)
	if err != nil {
		return nil, err
	}
	return c.decode(tokenString, audience, issuer, key)
}

// TryValidate validates against the codec's issuer and audience and reports
// only whether the token is valid.
func (c *Codec) TryValidate(tokenString, secret string) (*auth.ClaimSet, bool) {
	claims, err := c.Validate(tokenString, c.audience, c.issuer, secret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// ParsePrevalidated decodes a token whose signature was already verified by
// an upstream gateway. Every other check Validate performs still applies, so
// both produce the same claim set for a valid token.
func (c *Codec) ParsePrevalidated(tokenString, audience, issuer string) (*auth.ClaimSet, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidArgument)
	}
	return c.decode(tokenString, audience, issuer, nil)
}

func (c *Codec) TryParsePrevalidated(tokenString string) (*auth.ClaimSet, bool) {
	claims, err := c.ParsePrevalidated(tokenString, c.audience, c.issuer)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// decode skips signature verification when key is nil.
func (c *Codec) decode(tokenString, audience, issuer string, key []byte) (*auth.ClaimSet, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
		// Unused trailing bits in a segment must be zero, otherwise several
		// encodings of one signature would all verify.
		jwt.WithStrictDecoding(),
	)

	payload := jwt.MapClaims{}
	if key == nil {
		if _, _, err := parser.ParseUnverified(tokenString, payload); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	} else {
		_, err := parser.ParseWithClaims(tokenString, payload, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		switch {
		case err == nil:
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
		}
	}

	if err := checkAudience(payload, audience); err != nil {
		return nil, err
	}
	iss, err := payload.GetIssuer()
	if err != nil || iss != issuer {
		return nil, fmt.Errorf("%w: %q", ErrIssuerMismatch, iss)
	}
	if err := c.checkLifetime(payload); err != nil {
		return nil, err
	}

	return auth.NewClaimSet(claimsFromPayload(payload)...), nil
}

func checkAudience(payload jwt.MapClaims, audience string) error {
	auds, err := payload.GetAudience()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAudienceMismatch, err)
	}
	for _, aud := range auds {
		if aud == audience {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrAudienceMismatch, []string(auds))
}

// checkLifetime only applies when the token has an expiry; tokens created
// without a lifetime never expire.
func (c *Codec) checkLifetime(payload jwt.MapClaims) error {
	exp, err := payload.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if exp == nil {
		return nil
	}
	now := c.now().UTC()

	nbf, err := payload.GetNotBefore()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if nbf != nil && now.Add(c.clockSkew).Before(nbf.Time) {
		return fmt.Errorf("%w: valid from %s", ErrNotYetValid, nbf.Time.UTC().Format(time.RFC3339))
	}
	if now.Add(-c.clockSkew).After(exp.Time) {
		return fmt.Errorf("%w: expired at %s", ErrExpired, exp.Time.UTC().Format(time.RFC3339))
	}
	return nil
}

func claimsFromPayload(payload jwt.MapClaims) []auth.Claim {
	names := make([]string, 0, len(payload))
	for name := range payload {
		names = append(names, name)
	}
	sort.Strings(names)

	var claims []auth.Claim
	for _, name := range names {
		claimType := name
		if long, ok := inboundClaimTypes[name]; ok {
			claimType = long
		}
		switch v := payload[name].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := claimValue(item); ok {
					claims = append(claims, auth.Claim{Type: claimType, Value: s})
				}
			}
		default:
			if s, ok := claimValue(v); ok {
				claims = append(claims, auth.Claim{Type: claimType, Value: s})
			}
		}
	}
	return claims
}

func claimValue(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

var defaultCodec = NewCodec()

// ValidateToken validates a token against the default single-tenant issuer
// and audience, returning the specific validation failure.
func ValidateToken(tokenString, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidArgument)
	}
	_, err := defaultCodec.Validate(tokenString, ZumoAudience, ZumoIssuer, secret)
	return err
}
