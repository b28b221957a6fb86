package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smaehq/smae-backend/internal/apperr"
)

// respondError maps the error taxonomy onto HTTP statuses: policy refusals
// are 400 (with cooldown_end when one applies), missing rows 404, ownership
// failures 403, everything else 500.
func respondError(c *gin.Context, err error) {
	if policy, ok := apperr.AsPolicy(err); ok {
		body := gin.H{"error": policy.Reason}
		if policy.CooldownEnd != nil {
			body["cooldown_end"] = policy.CooldownEnd
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}
	if errors.Is(err, apperr.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, apperr.ErrNotAuthorized) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
