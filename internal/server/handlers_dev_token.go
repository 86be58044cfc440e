package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const localDevTokenTTL = 12 * time.Hour

// issueLocalDevToken mints a bearer for a local user so the API can be
// exercised without an identity provider. It only answers when APP_ENV=local.
func (a *App) issueLocalDevToken(c *gin.Context) {
	if !strings.EqualFold(strings.TrimSpace(a.cfg.AppEnv), "local") {
		writeError(c, http.StatusNotFound, "Not found")
		return
	}

	sub := strings.TrimSpace(c.Query("sub"))
	if sub == "" {
		sub = uuid.NewString()
	} else if _, err := uuid.Parse(sub); err != nil {
		writeError(c, http.StatusBadRequest, "sub must be UUID format")
		return
	}
	name := firstNonEmpty(c.Query("name"), "Local Developer")

	method, ok := jwt.GetSigningMethod(a.cfg.JWTAlgorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		writeError(c, http.StatusInternalServerError, "JWT_ALGORITHM must be an HMAC algorithm for local tokens")
		return
	}

	if a.profiles != nil {
		if _, err := a.profiles.EnsureProfile(c.Request.Context(), sub, name); err != nil {
			a.writeServiceError(c, err)
			return
		}
	}

	now := time.Now().UTC()
	expiresAt := now.Add(localDevTokenTTL)
	claims := jwt.MapClaims{
		"sub":  sub,
		"name": name,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}
	if a.cfg.JWTAudience != "" {
		claims["aud"] = a.cfg.JWTAudience
	}
	if a.cfg.JWTIssuer != "" {
		claims["iss"] = a.cfg.JWTIssuer
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      signed,
		"token_type": "Bearer",
		"sub":        sub,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}
