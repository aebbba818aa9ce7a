package auth

import (
	"context"
	"encoding/json"
	"fmt"
)

// Principal is the identity resolved for a single request.
//
// ID and SessionToken are empty unless the claims are authenticated and carry
// a user id of the form "provider:id".
type Principal struct {
	ID           string
	SessionToken string
	Claims       *ClaimSet
}

// IsAuthenticated reports whether the principal's claims are authenticated.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.Claims.IsAuthenticated()
}

// Provider returns the provider part of the principal id.
func (p *Principal) Provider() string {
	if p == nil {
		return ""
	}
	provider, _, _ := ParseUserID(p.ID)
	return provider
}

// String redacts the session token.
func (p *Principal) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Principal{ID:%q Authenticated:%t}", p.ID, p.IsAuthenticated())
}

// MarshalJSON redacts the session token so principals can be logged or
// returned to clients.
func (p *Principal) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	type safePrincipal struct {
		ID              string  `json:"id,omitempty"`
		IsAuthenticated bool    `json:"isAuthenticated"`
		SessionToken    string  `json:"sessionToken,omitempty"`
		Claims          []Claim `json:"claims"`
	}
	token := ""
	if p.SessionToken != "" {
		token = "REDACTED"
	}
	claims := p.Claims.Claims()
	if claims == nil {
		claims = []Claim{}
	}
	return json.Marshal(safePrincipal{
		ID:              p.ID,
		IsAuthenticated: p.IsAuthenticated(),
		SessionToken:    token,
		Claims:          claims,
	})
}

// BuildPrincipal maps a claim set to a principal. For authenticated claims the
// user id is taken from the NameIdentifier claim, falling back to "uid". When
// no well-formed id is found the principal is anonymous (no ID, no session
// token) but keeps the claims and their authentication state.
func BuildPrincipal(claims *ClaimSet, sessionToken string) *Principal {
	if claims == nil {
		claims = AnonymousClaims()
	}
	p := &Principal{Claims: claims}
	if !claims.IsAuthenticated() {
		return p
	}

	userID, ok := claims.FindFirst(ClaimTypeNameIdentifier)
	if !ok {
		userID, ok = claims.FindFirst(ClaimTypeUID)
	}
	if !ok || userID == "" {
		return p
	}
	if _, _, valid := ParseUserID(userID); !valid {
		return p
	}
	p.ID = userID
	p.SessionToken = sessionToken
	return p
}

type principalContextKey struct{}

// WithPrincipal stores the principal on the context. Storing nil shadows any
// principal set by an outer layer.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}
