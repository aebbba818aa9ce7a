// Package identity resolves provider credentials (Facebook, Google, ...) for an
// authenticated principal through the token service.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/tokenexchange"
)

// Provider names as the token service knows them.
const (
	ProviderFacebook             = "Facebook"
	ProviderGoogle               = "Google"
	ProviderMicrosoftAccount     = "MicrosoftAccount"
	ProviderAzureActiveDirectory = "Aad"
	ProviderTwitter              = "Twitter"
)

// ProviderCredentials is implemented only by the credential types of this
// package.
type ProviderCredentials interface {
	ProviderName() string
	Base() *CredentialsBase
	populate(entry *tokenexchange.TokenEntry)
}

type CredentialsBase struct {
	Provider string            `json:"provider"`
	UserID   string            `json:"userId"`
	Claims   map[string]string `json:"claims,omitempty"`
}

func (b *CredentialsBase) Base() *CredentialsBase { return b }

func (b *CredentialsBase) fill(provider string, entry *tokenexchange.TokenEntry) {
	b.Provider = provider
	b.UserID = entry.UserID
	if entry.Claims != nil {
		b.Claims = make(map[string]string, len(entry.Claims))
		for k, v := range entry.Claims {
			b.Claims[k] = v
		}
	}
}

type FacebookCredentials struct {
	CredentialsBase
	AccessToken string `json:"accessToken"`
}

func (*FacebookCredentials) ProviderName() string { return ProviderFacebook }

func (c *FacebookCredentials) populate(e *tokenexchange.TokenEntry) {
	c.fill(ProviderFacebook, e)
	c.AccessToken = e.AccessToken
}

type GoogleCredentials struct {
	CredentialsBase
	AccessToken           string     `json:"accessToken"`
	RefreshToken          string     `json:"refreshToken,omitempty"`
	AccessTokenExpiration *time.Time `json:"accessTokenExpiration,omitempty"`
}

func (*GoogleCredentials) ProviderName() string { return ProviderGoogle }

func (c *GoogleCredentials) populate(e *tokenexchange.TokenEntry) {
	c.fill(ProviderGoogle, e)
	c.AccessToken = e.AccessToken
	c.RefreshToken = e.RefreshToken
	c.AccessTokenExpiration = e.ExpiresOn
}

type MicrosoftAccountCredentials struct {
	CredentialsBase
	AccessToken           string     `json:"accessToken"`
	RefreshToken          string     `json:"refreshToken,omitempty"`
	AccessTokenExpiration *time.Time `json:"accessTokenExpiration,omitempty"`
}

func (*MicrosoftAccountCredentials) ProviderName() string { return ProviderMicrosoftAccount }

func (c *MicrosoftAccountCredentials) populate(e *tokenexchange.TokenEntry) {
	c.fill(ProviderMicrosoftAccount, e)
	c.AccessToken = e.AccessToken
	c.RefreshToken = e.RefreshToken
	c.AccessTokenExpiration = e.ExpiresOn
}

// AzureActiveDirectoryCredentials takes the tenant and object ids from the
// entry's properties, falling back to its claims for /.auth/me responses.
type AzureActiveDirectoryCredentials struct {
	CredentialsBase
	AccessToken string `json:"accessToken"`
	TenantID    string `json:"tenantId,omitempty"`
	ObjectID    string `json:"objectId,omitempty"`
}

func (*AzureActiveDirectoryCredentials) ProviderName() string { return ProviderAzureActiveDirectory }

func (c *AzureActiveDirectoryCredentials) populate(e *tokenexchange.TokenEntry) {
	c.fill(ProviderAzureActiveDirectory, e)
	c.AccessToken = e.AccessToken
	c.TenantID = firstNonEmpty(e.TenantID, e.Claims[auth.ClaimTypeTenantID])
	c.ObjectID = firstNonEmpty(e.ObjectID, e.Claims[auth.ClaimTypeObjectID])
}

type TwitterCredentials struct {
	CredentialsBase
	AccessToken       string `json:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret,omitempty"`
}

func (*TwitterCredentials) ProviderName() string { return ProviderTwitter }

func (c *TwitterCredentials) populate(e *tokenexchange.TokenEntry) {
	c.fill(ProviderTwitter, e)
	c.AccessToken = e.AccessToken
	c.AccessTokenSecret = e.AccessTokenSecret
}

// New returns empty credentials for a provider name, matched case-insensitively.
// "aad" and "AzureActiveDirectory" both select Azure Active Directory.
func New(provider string) (ProviderCredentials, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "facebook":
		return &FacebookCredentials{}, nil
	case "google":
		return &GoogleCredentials{}, nil
	case "microsoftaccount", "microsoft":
		return &MicrosoftAccountCredentials{}, nil
	case "aad", "azureactivedirectory":
		return &AzureActiveDirectoryCredentials{}, nil
	case "twitter":
		return &TwitterCredentials{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// ParseProvider normalizes a provider name to its canonical form.
func ParseProvider(name string) (string, error) {
	creds, err := New(name)
	if err != nil {
		return "", err
	}
	return creds.ProviderName(), nil
}

// Populate builds the credentials for provider from a token entry.
func Populate(entry *tokenexchange.TokenEntry, provider string) (ProviderCredentials, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: token entry is required", ErrInvalidArgument)
	}
	creds, err := New(provider)
	if err != nil {
		return nil, err
	}
	creds.populate(entry)
	return creds, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
