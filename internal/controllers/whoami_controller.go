package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/zumo/internal/middleware"
)

type whoamiController struct{}

func NewWhoamiController() *whoamiController {
	return &whoamiController{}
}

// Handle echoes the resolved principal. The session token is redacted by
// Principal's JSON encoding.
func (h *whoamiController) Handle(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization has been denied for this request"})
		return
	}
	c.JSON(http.StatusOK, p)
}
