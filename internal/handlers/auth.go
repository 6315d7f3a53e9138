package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/filebridge/internal/auth"
	"github.com/charlesng35/filebridge/internal/services"
	apperrors "github.com/charlesng35/filebridge/pkg/errors"
	"github.com/charlesng35/filebridge/pkg/metrics"
	"github.com/charlesng35/filebridge/pkg/response"
)

// AuthHandler issues access tokens for configured accounts.
type AuthHandler struct {
	accounts *iauth.Authenticator
	jwt      *iauth.JWTService
	audit    *services.AuditService
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(accounts *iauth.Authenticator, jwt *iauth.JWTService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{accounts: accounts, jwt: jwt, audit: audit}
}

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// POST /api/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	if h == nil || h.accounts == nil || h.jwt == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	var req tokenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		response.Error(c, apperrors.NewBadRequest("username is required"))
		return
	}

	account, err := h.accounts.Verify(req.Username, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		h.recordAttempt(c, req.Username, "error")
		if errors.Is(err, iauth.ErrInvalidCredentials) {
			response.Error(c, apperrors.ErrInvalidCredentials)
			return
		}
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		Actor: account.Name,
		Scope: account.Scope,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		h.recordAttempt(c, account.Name, "error")
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	h.recordAttempt(c, account.Name, "success")

	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.jwt.TokenTTL().Seconds()),
	})
}

func (h *AuthHandler) recordAttempt(c *gin.Context, actor, result string) {
	if h.audit == nil {
		return
	}
	services.RecordAudit(requestContext(c), h.audit, services.AuditEntry{
		Actor:     actor,
		Action:    "auth.token",
		Result:    result,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
