package signed

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/token"
)

func mustCreate(t *testing.T, codec *token.Codec, secret string, lifetime *time.Duration) string {
	t.Helper()
	tok, err := codec.CreateToken([]auth.Claim{{Type: auth.ClaimTypeNameIdentifier, Value: "Facebook:1234"}}, lifetime, secret)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	return tok.Raw
}

func TestSignedValidator(t *testing.T) {
	v, err := NewValidatorFromJSON(json.RawMessage(`{"signingKey":"signing_key"}`))
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}

	raw := mustCreate(t, token.NewCodec(), "signing_key", token.Lifetime(30*24*time.Hour))
	claims, err := v.Validate(raw, "example.azurewebsites.net")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if uid, _ := claims.FindFirst(auth.ClaimTypeUID); uid != "Facebook:1234" {
		t.Fatalf("expected uid Facebook:1234, got %q", uid)
	}

	other := mustCreate(t, token.NewCodec(), "other_key", nil)
	if _, err := v.Validate(other, ""); !errors.Is(err, token.ErrSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestSignedValidator_IssuerFromHost(t *testing.T) {
	v, err := NewValidatorFromJSON(json.RawMessage(`{"signingKey":"k","issuerFromHost":true}`))
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}

	issuer := auth.IssuerForHost("app.example.com")
	codec := token.NewCodec(token.WithIssuer(issuer), token.WithAudience(issuer))
	raw := mustCreate(t, codec, "k", nil)

	if _, err := v.Validate(raw, "app.example.com"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := v.Validate(raw, "other.example.com"); !errors.Is(err, token.ErrAudienceMismatch) {
		t.Fatalf("expected audience mismatch for other host, got %v", err)
	}
}

func TestSignedValidator_ClockSkew(t *testing.T) {
	skew := time.Second
	v, err := NewValidator(auth.Config{SigningKey: "k", ClockSkew: &skew})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	past := token.NewCodec(token.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	raw := mustCreate(t, past, "k", token.Lifetime(time.Minute))
	if _, err := v.Validate(raw, ""); !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestSignedValidator_ZeroClockSkew(t *testing.T) {
	v, err := NewValidatorFromJSON(json.RawMessage(`{"signingKey":"k","clockSkewSeconds":0}`))
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}
	// Expired ten seconds ago: inside the default tolerance, outside a zero one.
	past := token.NewCodec(token.WithClock(func() time.Time { return time.Now().Add(-time.Minute) }))
	raw := mustCreate(t, past, "k", token.Lifetime(50*time.Second))

	if _, err := v.Validate(raw, ""); !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected expired with zero skew, got %v", err)
	}

	lenient, err := NewValidatorFromJSON(json.RawMessage(`{"signingKey":"k"}`))
	if err != nil {
		t.Fatalf("NewValidatorFromJSON: %v", err)
	}
	if _, err := lenient.Validate(raw, ""); err != nil {
		t.Fatalf("expected default skew to accept token, got %v", err)
	}
}

func TestSignedValidator_ConfigErrors(t *testing.T) {
	for _, raw := range []string{``, `{}`, `{"signingKey":"  "}`, `not-json`, `{"signingKey":"k","clockSkewSeconds":-1}`} {
		if _, err := NewValidatorFromJSON(json.RawMessage(raw)); err == nil {
			t.Fatalf("expected error for config %q", raw)
		}
	}
}

func TestSignedValidator_Registered(t *testing.T) {
	v, err := auth.NewValidator(auth.ProviderConfig{Type: auth.ModeSigned, Config: json.RawMessage(`{"signingKey":"k"}`)})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if _, ok := v.(*Validator); !ok {
		t.Fatalf("expected *signed.Validator, got %T", v)
	}
}
