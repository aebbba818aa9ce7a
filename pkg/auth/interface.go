package auth

import (
	"errors"
	"time"
)

// Well-known claim types.
const (
	ClaimTypeNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimTypeName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	ClaimTypeEmail          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	ClaimTypeRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	ClaimTypeObjectID       = "http://schemas.microsoft.com/identity/claims/objectidentifier"
	ClaimTypeTenantID       = "http://schemas.microsoft.com/identity/claims/tenantid"

	// ClaimTypeUID is the short alias the token protocol uses for the user id.
	ClaimTypeUID = "uid"
)

// ErrInvalidArgument is returned for missing or malformed required arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// Claim is a single typed assertion about an identity.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimSet is an ordered, read-only collection of claims together with the
// authentication state of the identity they describe.
type ClaimSet struct {
	claims        []Claim
	authenticated bool
}

// NewClaimSet returns an authenticated claim set holding a copy of claims.
func NewClaimSet(claims ...Claim) *ClaimSet {
	return &ClaimSet{claims: append([]Claim(nil), claims...), authenticated: true}
}

// AnonymousClaims returns an empty, unauthenticated claim set.
func AnonymousClaims() *ClaimSet {
	return &ClaimSet{}
}

func (s *ClaimSet) IsAuthenticated() bool {
	return s != nil && s.authenticated
}

// Claims returns a copy of the claims in insertion order.
func (s *ClaimSet) Claims() []Claim {
	if s == nil {
		return nil
	}
	return append([]Claim(nil), s.claims...)
}

func (s *ClaimSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.claims)
}

// FindFirst returns the value of the first claim of the given type.
func (s *ClaimSet) FindFirst(claimType string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, c := range s.claims {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

// FindAll returns every value recorded under claimType.
func (s *ClaimSet) FindAll(claimType string) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, c := range s.claims {
		if c.Type == claimType {
			out = append(out, c.Value)
		}
	}
	return out
}

func (s *ClaimSet) HasClaim(claimType, value string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.claims {
		if c.Type == claimType && c.Value == value {
			return true
		}
	}
	return false
}

// Roles returns the values of all role claims.
func (s *ClaimSet) Roles() []string {
	return s.FindAll(ClaimTypeRole)
}

// Validator turns a bearer token into a claim set. The host is the request
// host, used by validators that derive issuer and audience per tenant.
type Validator interface {
	Validate(token string, host string) (*ClaimSet, error)
}

// Config contains validator configuration
type Config struct {
	SigningKey     string        `json:"signingKey"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
	IssuerFromHost bool          `json:"issuerFromHost"`
	// ClockSkew is nil for the codec default; zero enforces exact bounds.
	ClockSkew *time.Duration `json:"clockSkew,omitempty"`
}

// IssuerForHost is the issuer and audience value used when they are derived
// from the incoming request host.
func IssuerForHost(host string) string {
	return "https://" + host + "/"
}
