package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/zumo/internal/middleware"
	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/tokenexchange"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFetcher struct {
	entry *tokenexchange.TokenEntry
	err   error
}

func (s *stubFetcher) FetchProviderToken(context.Context, string, string) (*tokenexchange.TokenEntry, error) {
	return s.entry, s.err
}

func newContext(t *testing.T, rec *httptest.ResponseRecorder, provider string) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/.auth/identities/"+provider, nil)
	c.Params = gin.Params{{Key: "provider", Value: provider}}
	p := auth.BuildPrincipal(auth.NewClaimSet(auth.Claim{Type: auth.ClaimTypeUID, Value: "Facebook:1234"}), "session")
	if err := middleware.SetPrincipal(c, p); err != nil {
		t.Fatalf("SetPrincipal: %v", err)
	}
	return c
}

func TestIdentityController(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		fetcher  *stubFetcher
		want     int
	}{
		{"found", "facebook", &stubFetcher{entry: &tokenexchange.TokenEntry{UserID: "1234", AccessToken: "fb"}}, http.StatusOK},
		{"not found", "facebook", &stubFetcher{}, http.StatusNotFound},
		{"diagnostics", "google", &stubFetcher{entry: &tokenexchange.TokenEntry{Diagnostics: "expired"}}, http.StatusNotFound},
		{"upstream", "twitter", &stubFetcher{err: &tokenexchange.UpstreamError{StatusCode: 401}}, http.StatusBadGateway},
		{"unknown provider", "myspace", &stubFetcher{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		NewIdentityController(tt.fetcher).Handle(newContext(t, rec, tt.provider))
		if rec.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d (%s)", tt.name, tt.want, rec.Code, rec.Body.String())
		}
	}
}

func TestIdentityController_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	f := &stubFetcher{entry: &tokenexchange.TokenEntry{UserID: "1234", AccessToken: "fb"}}
	NewIdentityController(f).Handle(newContext(t, rec, "facebook"))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["provider"] != "Facebook" || body["userId"] != "1234" || body["accessToken"] != "fb" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestIdentityController_UpstreamStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	f := &stubFetcher{err: &tokenexchange.UpstreamError{StatusCode: 403}}
	NewIdentityController(f).Handle(newContext(t, rec, "google"))

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["upstreamStatus"] != float64(403) {
		t.Fatalf("expected upstream status in body, got %v", body)
	}
}

func TestWhoamiController(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWhoamiController().Handle(newContext(t, rec, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["id"] != "Facebook:1234" || body["sessionToken"] != "REDACTED" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHealthController(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	NewHealthController().Handle(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
