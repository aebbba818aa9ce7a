package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/zumo/internal/middleware"
	"github.com/osvaldoandrade/zumo/pkg/identity"
	"github.com/osvaldoandrade/zumo/pkg/tokenexchange"
)

type identityController struct{ fetcher identity.Fetcher }

func NewIdentityController(fetcher identity.Fetcher) *identityController {
	return &identityController{fetcher: fetcher}
}

func (h *identityController) Handle(c *gin.Context) {
	if h.fetcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token exchange is not configured"})
		return
	}
	provider, err := identity.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, _ := middleware.GetPrincipal(c)

	creds, ok, err := identity.Lookup(c.Request.Context(), h.fetcher, p, provider)
	if err != nil {
		var upstream *tokenexchange.UpstreamError
		if errors.As(err, &upstream) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "token service error", "upstreamStatus": upstream.StatusCode})
			return
		}
		middleware.Logger(c).Error("identity lookup failed", "provider", provider, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "token service unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no " + provider + " identity for this user"})
		return
	}
	c.JSON(http.StatusOK, creds)
}
