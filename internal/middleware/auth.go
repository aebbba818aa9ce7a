package middleware

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/zumo/internal/metrics"
	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/token"
)

// HeaderZumoAuth carries the session token on inbound requests.
const HeaderZumoAuth = "x-zumo-auth"

const (
	principalKey       = "principal"
	principalSealedKey = "principalSealed"
)

// ErrPrincipalSealed is returned by SetPrincipal once Authentication has run.
var ErrPrincipalSealed = errors.New("principal already set by authentication middleware")

type authOptions struct {
	mode string
}

type AuthOption func(*authOptions)

// WithValidationMode labels metrics with the validator's mode.
func WithValidationMode(mode string) AuthOption {
	return func(o *authOptions) { o.mode = mode }
}

// Authentication resolves the request principal from the x-zumo-auth header.
// It never aborts: a missing header yields an anonymous principal, and an
// invalid token (or a failure while validating it) leaves no principal at
// all, so authorization filters downstream reject the request.
func Authentication(v auth.Validator, logger *slog.Logger, opts ...AuthOption) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	o := authOptions{mode: "unknown"}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		// Whatever an outer layer attached is not trusted.
		ctx := auth.WithPrincipal(c.Request.Context(), nil)
		c.Request = c.Request.WithContext(ctx)
		c.Set(principalSealedKey, true)

		raw := c.GetHeader(HeaderZumoAuth)
		if raw == "" {
			attach(c, auth.BuildPrincipal(nil, ""))
			metrics.AuthRequestsTotal.WithLabelValues(o.mode, "anonymous").Inc()
			metrics.PrincipalsResolvedTotal.WithLabelValues("anonymous").Inc()
			c.Next()
			return
		}

		p, panicked, err := resolve(v, raw, c.Request.Host)
		switch {
		case panicked:
			logger.Error("authentication failed unexpectedly", "err", err, "request_id", c.GetString("request_id"))
			metrics.AuthRequestsTotal.WithLabelValues(o.mode, "error").Inc()
		case err != nil:
			logger.Info("invalid session token", "reason", token.Reason(err), "err", err, "request_id", c.GetString("request_id"))
			metrics.AuthRequestsTotal.WithLabelValues(o.mode, token.Reason(err)).Inc()
		default:
			attach(c, p)
			metrics.AuthRequestsTotal.WithLabelValues(o.mode, "valid").Inc()
			provider := p.Provider()
			if provider == "" {
				provider = "anonymous"
			}
			metrics.PrincipalsResolvedTotal.WithLabelValues(provider).Inc()
		}
		c.Next()
	}
}

func resolve(v auth.Validator, raw, host string) (p *auth.Principal, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, panicked, err = nil, true, fmt.Errorf("panic: %v", r)
		}
	}()
	if v == nil {
		return nil, true, errors.New("no token validator configured")
	}
	claims, err := v.Validate(raw, host)
	if err != nil {
		return nil, false, err
	}
	return auth.BuildPrincipal(claims, raw), false, nil
}

func attach(c *gin.Context, p *auth.Principal) {
	c.Set(principalKey, p)
	c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
}

// GetPrincipal returns the principal resolved for the request, if any.
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil
}

// SetPrincipal attaches a principal for pipelines that authenticate
// requests some other way. It refuses once Authentication has run.
func SetPrincipal(c *gin.Context, p *auth.Principal) error {
	if c.GetBool(principalSealedKey) {
		return ErrPrincipalSealed
	}
	attach(c, p)
	return nil
}
