package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/tokenexchange"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Fetcher is satisfied by *tokenexchange.Client.
type Fetcher interface {
	FetchProviderToken(ctx context.Context, sessionToken, providerName string) (*tokenexchange.TokenEntry, error)
}

// GetIdentity fetches the upstream credentials of type T for the principal.
// The bool is false when the principal has no session token or the token
// service holds no valid token; errors from the service are returned as is.
func GetIdentity[T ProviderCredentials](ctx context.Context, f Fetcher, p *auth.Principal) (T, bool, error) {
	var zero T
	creds, ok, err := Lookup(ctx, f, p, zero.ProviderName())
	if err != nil || !ok {
		return zero, ok, err
	}
	typed, _ := creds.(T)
	return typed, true, nil
}

// Lookup is GetIdentity for a provider chosen at runtime.
func Lookup(ctx context.Context, f Fetcher, p *auth.Principal, provider string) (ProviderCredentials, bool, error) {
	if f == nil {
		return nil, false, fmt.Errorf("%w: fetcher is required", ErrInvalidArgument)
	}
	canonical, err := ParseProvider(provider)
	if err != nil {
		return nil, false, err
	}
	if !p.IsAuthenticated() || p.SessionToken == "" {
		return nil, false, nil
	}

	entry, err := f.FetchProviderToken(ctx, p.SessionToken, canonical)
	if err != nil {
		return nil, false, err
	}
	if !tokenexchange.IsValid(entry) {
		return nil, false, nil
	}
	creds, err := Populate(entry, canonical)
	if err != nil {
		return nil, false, err
	}
	return creds, true, nil
}
