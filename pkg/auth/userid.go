package auth

import (
	"fmt"
	"strings"
)

// FormatUserID joins a provider name and the provider's user id as
// "provider:id". A nil id formats as the empty string, so the result is
// lossy: "p:" is produced for both nil and empty ids.
func FormatUserID(providerName string, providerID *string) (string, error) {
	if providerName == "" {
		return "", fmt.Errorf("%w: providerName is required", ErrInvalidArgument)
	}
	id := ""
	if providerID != nil {
		id = *providerID
	}
	return providerName + ":" + id, nil
}

// ParseUserID splits a "provider:id" user id on its first colon. Both parts
// must be non-empty; the id part may itself contain colons.
func ParseUserID(userID string) (providerName string, providerID string, ok bool) {
	provider, id, found := strings.Cut(userID, ":")
	if !found || provider == "" || id == "" {
		return "", "", false
	}
	return provider, id, true
}
