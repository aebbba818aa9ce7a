package token

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestDeriveKey_IsSHA256OfSecret(t *testing.T) {
	key, err := DeriveKey("signing_key")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	want := sha256.Sum256([]byte("signing_key"))
	if !bytes.Equal(key, want[:]) {
		t.Fatalf("unexpected key %x", key)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(key))
	}

	again, _ := DeriveKey("signing_key")
	if !bytes.Equal(key, again) {
		t.Fatalf("expected deterministic key")
	}
}

func TestDeriveKey_RejectsEmptySecret(t *testing.T) {
	if _, err := DeriveKey(""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDeriveKey_RejectsInvalidUTF8(t *testing.T) {
	if _, err := DeriveKey("bad\xff\xfesecret"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for invalid UTF-8, got %v", err)
	}
}

func TestKeyCache_ReturnsDerivedKey(t *testing.T) {
	cache := NewKeyCache(2)
	for _, secret := range []string{"a", "b", "c", "a"} {
		got, err := cache.Key(secret)
		if err != nil {
			t.Fatalf("key(%q): %v", secret, err)
		}
		want, _ := DeriveKey(secret)
		if !bytes.Equal(got, want) {
			t.Fatalf("cached key mismatch for %q", secret)
		}
	}
	if _, err := cache.Key(""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument from cache, got %v", err)
	}
}
