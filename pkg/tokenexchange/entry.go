package tokenexchange

import (
	"fmt"
	"strings"
	"time"
)

// Property names carried by the api/tokens response.
const (
	PropertyAccessToken           = "AccessToken"
	PropertyRefreshToken          = "RefreshToken"
	PropertyAccessTokenSecret     = "AccessTokenSecret"
	PropertyAccessTokenExpiration = "AccessTokenExpiration"
	PropertyObjectID              = "ObjectId"
	PropertyTenantID              = "TenantId"
)

// expirationLayouts are tried in order for AccessTokenExpiration. Besides
// RFC 3339 the token service has been seen to emit RFC 1123 and the
// invariant-culture "MM/dd/yyyy HH:mm:ss zzz" form.
var expirationLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"01/02/2006 15:04:05 -07:00",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
}

// TokenEntry is the upstream provider token held by the token service for a
// session.
type TokenEntry struct {
	Provider          string            `json:"provider"`
	UserID            string            `json:"userId"`
	AccessToken       string            `json:"accessToken,omitempty"`
	RefreshToken      string            `json:"refreshToken,omitempty"`
	AccessTokenSecret string            `json:"accessTokenSecret,omitempty"`
	ExpiresOn         *time.Time        `json:"expiresOn,omitempty"`
	Claims            map[string]string `json:"claims,omitempty"`
	Diagnostics       string            `json:"diagnostics,omitempty"`

	// TenantID and ObjectID are only set by the api/tokens response, which
	// reports them as properties rather than claims.
	TenantID string `json:"tenantId,omitempty"`
	ObjectID string `json:"objectId,omitempty"`
}

// IsValid reports whether entry holds a usable upstream token: it is present
// and carries no diagnostics.
func IsValid(entry *TokenEntry) bool {
	return entry != nil && strings.TrimSpace(entry.Diagnostics) == ""
}

type userClaim struct {
	Type  string `json:"typ"`
	Value string `json:"val"`
}

// meEntry is the /.auth/me wire format.
type meEntry struct {
	Provider          string      `json:"provider_name"`
	UserID            string      `json:"user_id"`
	AccessToken       string      `json:"access_token"`
	RefreshToken      string      `json:"refresh_token"`
	AccessTokenSecret string      `json:"access_token_secret"`
	ExpiresOn         *time.Time  `json:"expires_on"`
	UserClaims        []userClaim `json:"user_claims"`
	Diagnostics       string      `json:"diagnostics"`
}

func (m *meEntry) empty() bool {
	return m.Provider == "" && m.UserID == "" && m.AccessToken == "" && m.RefreshToken == "" &&
		m.AccessTokenSecret == "" && m.ExpiresOn == nil && m.UserClaims == nil && m.Diagnostics == ""
}

func (m *meEntry) toEntry(provider string) *TokenEntry {
	e := &TokenEntry{
		Provider:          m.Provider,
		UserID:            m.UserID,
		AccessToken:       m.AccessToken,
		RefreshToken:      m.RefreshToken,
		AccessTokenSecret: m.AccessTokenSecret,
		ExpiresOn:         m.ExpiresOn,
		Diagnostics:       m.Diagnostics,
	}
	if e.Provider == "" {
		e.Provider = provider
	}
	if m.UserClaims != nil {
		e.Claims = make(map[string]string, len(m.UserClaims))
		for _, c := range m.UserClaims {
			e.Claims[c.Type] = c.Value
		}
	}
	return e
}

// tokenResult is the api/tokens wire format.
type tokenResult struct {
	Claims      map[string]string `json:"claims"`
	Diagnostics string            `json:"diagnostics"`
	Properties  map[string]string `json:"properties"`
}

func (r *tokenResult) empty() bool {
	return r.Claims == nil && r.Diagnostics == "" && r.Properties == nil
}

// toEntry normalizes the response. An unreadable expiration is left unset
// and reported through the returned error; the entry is still usable.
func (r *tokenResult) toEntry(provider string, userIDClaim string) (*TokenEntry, error) {
	e := &TokenEntry{
		Provider:          provider,
		AccessToken:       r.Properties[PropertyAccessToken],
		RefreshToken:      r.Properties[PropertyRefreshToken],
		AccessTokenSecret: r.Properties[PropertyAccessTokenSecret],
		TenantID:          r.Properties[PropertyTenantID],
		ObjectID:          r.Properties[PropertyObjectID],
		Claims:            r.Claims,
		Diagnostics:       r.Diagnostics,
	}
	if r.Claims != nil {
		e.UserID = r.Claims[userIDClaim]
	}
	if raw := strings.TrimSpace(r.Properties[PropertyAccessTokenExpiration]); raw != "" {
		t, err := parseExpiration(raw)
		if err != nil {
			return e, err
		}
		e.ExpiresOn = &t
	}
	return e, nil
}

func parseExpiration(raw string) (time.Time, error) {
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized %s %q", PropertyAccessTokenExpiration, raw)
}
