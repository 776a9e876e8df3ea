package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/agentca/internal/ca"
	"github.com/adamscao/agentca/internal/models"
)

// CAHandler handles CA-related requests
type CAHandler struct {
	authority *ca.Authority
}

// NewCAHandler creates a new CA handler
func NewCAHandler(authority *ca.Authority) *CAHandler {
	return &CAHandler{
		authority: authority,
	}
}

// RootResponse carries the root certificate and its key fingerprint
type RootResponse struct {
	Certificate *models.RootCertificate `json:"certificate"`
	Fingerprint string                  `json:"fingerprint"`
}

// GetRootCertificate returns the root certificate
// GET /v1/ca/root
func (h *CAHandler) GetRootCertificate(c *gin.Context) {
	ctx := c.Request.Context()

	root, err := h.authority.RootCertificate(ctx)
	if err != nil {
		respondCAError(c, err)
		return
	}
	fingerprint, err := h.authority.RootFingerprint(ctx)
	if err != nil {
		respondCAError(c, err)
		return
	}

	RespondSuccess(c, RootResponse{
		Certificate: root,
		Fingerprint: fingerprint,
	})
}

func respondCAError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ca.ErrNotInitialized):
		RespondError(c, http.StatusServiceUnavailable, "not_initialized", "Certificate authority is not initialized")
	case errors.Is(err, ca.ErrInvalidAgentID), errors.Is(err, ca.ErrInvalidAgentType):
		RespondError(c, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", "Certificate authority error")
	}
}
