package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletgate/config"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/service"
	"github.com/rs/zerolog/log"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	maxRequestBody = 64 << 10
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	cookies     config.CookieConfig
	sessionTTL  time.Duration
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cookies config.CookieConfig, sessionTTL time.Duration) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		cookies:     cookies,
		sessionTTL:  sessionTTL,
	}
}

type authRequest struct {
	Payload core.AuthPayload `json:"payload"`
	Nonce   string           `json:"nonce" binding:"required"`
}

type userResponse struct {
	ID                string  `json:"id"`
	WalletAddress     string  `json:"walletAddress"`
	Username          *string `json:"username"`
	ProfilePictureURL *string `json:"profilePictureUrl"`
	IsNewUser         bool    `json:"isNewUser"`
}

func newUserResponse(identity *core.Identity) userResponse {
	return userResponse{
		ID:                identity.ID,
		WalletAddress:     identity.WalletAddress,
		Username:          identity.Username,
		ProfilePictureURL: identity.ProfilePictureURL,
		IsNewUser:         identity.IsNewUser,
	}
}

// Nonce issues a fresh nonce and binds it to the caller with a cookie
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, binding, err := h.authService.IssueNonce(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue nonce")
		c.JSON(http.StatusInternalServerError, gin.H{"status": statusError})
		return
	}

	// Session cookie: no Max-Age, the binding token carries its own expiry
	h.setCookie(c, h.cookies.BindingName, binding, 0)
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Login verifies the signed payload and sets a session cookie on success
func (h *AuthHandlers) Login(c *gin.Context) {
	req, ok := h.bindAuthRequest(c)
	if !ok {
		return
	}

	binding, _ := c.Cookie(h.cookies.BindingName)
	result, err := h.authService.Login(c.Request.Context(), req.Payload, req.Nonce, binding)
	h.clearCookie(c, h.cookies.BindingName)
	if err != nil {
		h.reject(c, err)
		return
	}

	h.setCookie(c, h.cookies.SessionName, result.Token, int(h.sessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"isValid": true,
		"user":    newUserResponse(result.Identity),
	})
}

// Complete verifies the signed payload without minting a session
func (h *AuthHandlers) Complete(c *gin.Context) {
	req, ok := h.bindAuthRequest(c)
	if !ok {
		return
	}

	binding, _ := c.Cookie(h.cookies.BindingName)
	_, err := h.authService.Verify(c.Request.Context(), req.Payload, req.Nonce, binding)
	h.clearCookie(c, h.cookies.BindingName)
	if err != nil {
		h.reject(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "isValid": true})
}

// Me returns the identity of the authenticated caller
func (h *AuthHandlers) Me(c *gin.Context) {
	session, ok := SessionFromContext(c)
	if !ok {
		unauthenticated(c)
		return
	}

	identity, err := h.authService.Identity(c.Request.Context(), session)
	if err != nil {
		log.Warn().Err(err).Str("user_id", session.UserID).Msg("Session refers to unknown identity")
		unauthenticated(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        statusSuccess,
		"authenticated": true,
		"user":          newUserResponse(identity),
	})
}

// Logout revokes the caller's session, if any, and clears the session cookie
func (h *AuthHandlers) Logout(c *gin.Context) {
	token := sessionToken(c, h.cookies.SessionName)
	h.clearCookie(c, h.cookies.SessionName)

	if token != "" {
		if err := h.authService.Logout(c.Request.Context(), token); err != nil {
			if !core.IsRejection(err) {
				log.Error().Err(err).Msg("Failed to revoke session")
				c.JSON(http.StatusInternalServerError, gin.H{"status": statusError})
				return
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": statusSuccess})
}

func (h *AuthHandlers) bindAuthRequest(c *gin.Context) (authRequest, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": statusError, "isValid": false})
		return authRequest{}, false
	}
	return req, true
}

// reject collapses every verification failure into the same response
func (h *AuthHandlers) reject(c *gin.Context, err error) {
	event := log.Info()
	if !core.IsRejection(err) {
		event = log.Error()
	}
	event.Err(err).Str("client_ip", c.ClientIP()).Msg("Authentication rejected")

	c.JSON(http.StatusUnauthorized, gin.H{"status": statusError, "isValid": false})
}

func (h *AuthHandlers) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandlers) clearCookie(c *gin.Context, name string) {
	h.setCookie(c, name, "", -1)
}
