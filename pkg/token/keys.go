package token

import (
	"crypto/sha256"
	"fmt"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultKeyCacheSize = 16

// DeriveKey turns a configured secret into the 32-byte HMAC signing key: the
// SHA-256 digest of the secret's UTF-8 bytes. Secrets that are empty or not
// valid UTF-8 are rejected.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrInvalidArgument)
	}
	if !utf8.ValidString(secret) {
		return nil, fmt.Errorf("%w: secret is not valid UTF-8", ErrInvalidArgument)
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// KeyCache memoizes derived signing keys per secret. It is safe for
// concurrent use.
type KeyCache struct {
	keys *lru.Cache[string, []byte]
}

func NewKeyCache(size int) *KeyCache {
	if size <= 0 {
		size = defaultKeyCacheSize
	}
	// lru.New only fails for non-positive sizes.
	keys, _ := lru.New[string, []byte](size)
	return &KeyCache{keys: keys}
}

// Key returns the derived key for secret, deriving it on first use.
func (c *KeyCache) Key(secret string) ([]byte, error) {
	if c == nil || c.keys == nil {
		return DeriveKey(secret)
	}
	if key, ok := c.keys.Get(secret); ok {
		return key, nil
	}
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	c.keys.Add(secret, key)
	return key, nil
}
