package auth

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestFormatUserID(t *testing.T) {
	tests := []struct {
		provider string
		id       *string
		want     string
	}{
		{"Facebook", strPtr("1234"), "Facebook:1234"},
		{"Google", strPtr(""), "Google:"},
		{"Twitter", nil, "Twitter:"},
		{"Aad", strPtr("a:b"), "Aad:a:b"},
	}
	for _, tt := range tests {
		got, err := FormatUserID(tt.provider, tt.id)
		if err != nil {
			t.Fatalf("FormatUserID(%q): %v", tt.provider, err)
		}
		if got != tt.want {
			t.Errorf("FormatUserID(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestFormatUserID_RequiresProvider(t *testing.T) {
	if _, err := FormatUserID("", strPtr("1")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		in       string
		ok       bool
		provider string
		id       string
	}{
		{"Facebook:1234", true, "Facebook", "1234"},
		{"a:b:c", true, "a", "b:c"},
		{"invalid", false, "", ""},
		{":", false, "", ""},
		{"name:", false, "", ""},
		{":id", false, "", ""},
		{"", false, "", ""},
	}
	for _, tt := range tests {
		provider, id, ok := ParseUserID(tt.in)
		if ok != tt.ok || provider != tt.provider || id != tt.id {
			t.Errorf("ParseUserID(%q) = (%q, %q, %t), want (%q, %q, %t)",
				tt.in, provider, id, ok, tt.provider, tt.id, tt.ok)
		}
	}
}

func TestFormatThenParse(t *testing.T) {
	userID, err := FormatUserID("MicrosoftAccount", strPtr("abc:def"))
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	provider, id, ok := ParseUserID(userID)
	if !ok || provider != "MicrosoftAccount" || id != "abc:def" {
		t.Fatalf("unexpected parse result %q %q %t", provider, id, ok)
	}
}
