package tokenexchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/osvaldoandrade/zumo/pkg/auth"
)

func newTestClient(t *testing.T, api API, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, API: api})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchProviderToken_Request(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, APIAuthMe, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"provider_name":"facebook",
			"user_id":"1234",
			"access_token":"fb-access",
			"expires_on":"2030-01-02T03:04:05Z",
			"user_claims":[{"typ":"name","val":"Jane"},{"typ":"email","val":"jane@example.com"}]
		}`))
	})

	entry, err := c.FetchProviderToken(context.Background(), "session-token", "Facebook")
	if err != nil {
		t.Fatalf("FetchProviderToken: %v", err)
	}

	if got.Method != http.MethodGet || got.URL.Path != "/.auth/me" {
		t.Fatalf("unexpected request %s %s", got.Method, got.URL.Path)
	}
	if p := got.URL.Query().Get("provider"); p != "facebook" {
		t.Fatalf("expected lowercased provider, got %q", p)
	}
	if h := got.Header.Get("x-zumo-auth"); h != "session-token" {
		t.Fatalf("expected session token header, got %q", h)
	}
	if ua := got.Header.Get("User-Agent"); ua != UserAgent {
		t.Fatalf("expected user agent %q, got %q", UserAgent, ua)
	}

	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	want := &TokenEntry{
		Provider:    "facebook",
		UserID:      "1234",
		AccessToken: "fb-access",
		ExpiresOn:   &expires,
		Claims:      map[string]string{"name": "Jane", "email": "jane@example.com"},
	}
	if diff := cmp.Diff(want, entry); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
	if !IsValid(entry) {
		t.Fatalf("expected valid entry")
	}
}

func TestFetchProviderToken_EmptyObjectIsNotFound(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, ``, `[{"provider_name":"google","user_id":"1"}]`} {
		c := newTestClient(t, APIAuthMe, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		entry, err := c.FetchProviderToken(context.Background(), "s", "facebook")
		if err != nil {
			t.Fatalf("body %q: unexpected error %v", body, err)
		}
		if entry != nil {
			t.Fatalf("body %q: expected nil entry, got %+v", body, entry)
		}
	}
}

func TestFetchProviderToken_ListPicksProvider(t *testing.T) {
	c := newTestClient(t, APIAuthMe, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"provider_name":"google","user_id":"g1","access_token":"g"},
			{"provider_name":"twitter","user_id":"t1","access_token":"t","access_token_secret":"ts"}
		]`))
	})
	entry, err := c.FetchProviderToken(context.Background(), "s", "Twitter")
	if err != nil {
		t.Fatalf("FetchProviderToken: %v", err)
	}
	if entry == nil || entry.UserID != "t1" || entry.AccessTokenSecret != "ts" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestFetchProviderToken_UpstreamError(t *testing.T) {
	c := newTestClient(t, APIAuthMe, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"expired"}`))
	})

	_, err := c.FetchProviderToken(context.Background(), "s", "google")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusUnauthorized || upstream.Response == nil {
		t.Fatalf("unexpected upstream error %+v", upstream)
	}
	if string(upstream.Body) != `{"error":"expired"}` {
		t.Fatalf("unexpected body %q", upstream.Body)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("StatusCode helper returned %d", StatusCode(err))
	}
}

func TestFetchProviderToken_InvalidArguments(t *testing.T) {
	calls := 0
	c := newTestClient(t, APIAuthMe, func(w http.ResponseWriter, r *http.Request) { calls++ })

	if _, err := c.FetchProviderToken(context.Background(), "", "facebook"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty session token, got %v", err)
	}
	if _, err := c.FetchProviderToken(context.Background(), "s", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty provider, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}

func TestFetchProviderToken_ContextCanceled(t *testing.T) {
	c := newTestClient(t, APIAuthMe, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.FetchProviderToken(ctx, "s", "facebook"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFetchProviderToken_MalformedBody(t *testing.T) {
	c := newTestClient(t, APIAuthMe, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"provider_name":`))
	})
	if _, err := c.FetchProviderToken(context.Background(), "s", "facebook"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFetchProviderToken_APITokens(t *testing.T) {
	var path, tokenName, version string
	c := newTestClient(t, APITokens, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		tokenName = r.URL.Query().Get("tokenName")
		version = r.URL.Query().Get("api-version")
		_, _ = w.Write([]byte(`{
			"claims":{"` + auth.ClaimTypeNameIdentifier + `":"g-42","` + auth.ClaimTypeTenantID + `":"t"},
			"properties":{"AccessToken":"a","RefreshToken":"r","AccessTokenExpiration":"2031-05-06T07:08:09Z"}
		}`))
	})

	entry, err := c.FetchProviderToken(context.Background(), "s", "Google")
	if err != nil {
		t.Fatalf("FetchProviderToken: %v", err)
	}
	if path != "/api/tokens" || tokenName != "Google" || version != "2015-01-14" {
		t.Fatalf("unexpected request path=%q tokenName=%q version=%q", path, tokenName, version)
	}
	if entry.Provider != "Google" || entry.UserID != "g-42" || entry.AccessToken != "a" || entry.RefreshToken != "r" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.ExpiresOn == nil || !entry.ExpiresOn.Equal(time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %v", entry.ExpiresOn)
	}
}

func TestFetchProviderToken_APITokensAadProperties(t *testing.T) {
	c := newTestClient(t, APITokens, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"claims":{"` + auth.ClaimTypeNameIdentifier + `":"u1"},
			"properties":{"AccessToken":"at","ObjectId":"obj-1","TenantId":"ten-1"}
		}`))
	})

	entry, err := c.FetchProviderToken(context.Background(), "s", "Aad")
	if err != nil {
		t.Fatalf("FetchProviderToken: %v", err)
	}
	if entry.UserID != "u1" || entry.AccessToken != "at" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.TenantID != "ten-1" || entry.ObjectID != "obj-1" {
		t.Fatalf("expected tenant/object ids from properties, got tenant=%q object=%q", entry.TenantID, entry.ObjectID)
	}
}

func TestFetchProviderToken_APITokensExpirationFormats(t *testing.T) {
	want := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
	tests := []struct {
		raw  string
		want *time.Time
	}{
		{"2031-05-06T07:08:09Z", &want},
		{"2031-05-06T09:08:09.000+02:00", &want},
		{"Tue, 06 May 2031 07:08:09 GMT", &want},
		{"Tue, 06 May 2031 09:08:09 +0200", &want},
		{"05/06/2031 07:08:09 +00:00", &want},
		{"2031-05-06T07:08:09", &want},
		{"next tuesday", nil},
	}
	for _, tt := range tests {
		raw := tt.raw
		c := newTestClient(t, APITokens, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"properties":{"AccessToken":"a","AccessTokenExpiration":"` + raw + `"}}`))
		})
		entry, err := c.FetchProviderToken(context.Background(), "s", "Google")
		if err != nil {
			t.Fatalf("%q: FetchProviderToken: %v", raw, err)
		}
		if entry == nil || entry.AccessToken != "a" {
			t.Fatalf("%q: unexpected entry %+v", raw, entry)
		}
		switch {
		case tt.want == nil && entry.ExpiresOn != nil:
			t.Errorf("%q: expected no expiry, got %v", raw, entry.ExpiresOn)
		case tt.want != nil && (entry.ExpiresOn == nil || !entry.ExpiresOn.Equal(*tt.want)):
			t.Errorf("%q: expected %v, got %v", raw, tt.want, entry.ExpiresOn)
		}
	}
}

func TestFetchProviderToken_APITokensDiagnostics(t *testing.T) {
	c := newTestClient(t, APITokens, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"diagnostics":"no token stored for this user"}`))
	})
	entry, err := c.FetchProviderToken(context.Background(), "s", "Twitter")
	if err != nil {
		t.Fatalf("FetchProviderToken: %v", err)
	}
	if entry == nil || IsValid(entry) {
		t.Fatalf("expected invalid entry, got %+v", entry)
	}
}

type recordingDoer struct {
	req *http.Request
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	return nil, errors.New("offline")
}

func TestWithHTTPClient(t *testing.T) {
	d := &recordingDoer{}
	c, err := NewClient(Config{BaseURL: "https://example.azurewebsites.net/app/"}, WithHTTPClient(d))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.FetchProviderToken(context.Background(), "s", "MicrosoftAccount"); err == nil {
		t.Fatalf("expected transport error")
	}
	if d.req == nil {
		t.Fatalf("expected injected doer to be used")
	}
	if got := d.req.URL.String(); got != "https://example.azurewebsites.net/app/.auth/me?provider=microsoftaccount" {
		t.Fatalf("unexpected URL %s", got)
	}
}

func TestNewClient_Configuration(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{BaseURL: "   "},
		{BaseURL: "not a url"},
		{BaseURL: "ftp://example.com"},
		{BaseURL: "https://example.com", API: "bogus"},
	} {
		if _, err := NewClient(cfg); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("config %+v: expected ErrConfiguration, got %v", cfg, err)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		entry *TokenEntry
		want  bool
	}{
		{"nil", nil, false},
		{"no diagnostics", &TokenEntry{Provider: "facebook"}, true},
		{"blank diagnostics", &TokenEntry{Diagnostics: "   "}, true},
		{"diagnostics", &TokenEntry{Diagnostics: "token expired"}, false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.entry); got != tt.want {
			t.Errorf("%s: IsValid = %t, want %t", tt.name, got, tt.want)
		}
	}
}
