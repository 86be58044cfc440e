package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"finpilot/backend/internal/finance"
)

const maxDisplayNameLength = 80

type updateMySettingsRequest struct {
	DisplayName *string `json:"display_name"`
	Locale      *string `json:"locale"`
	Currency    *string `json:"currency"`
}

func (a *App) settingsResponse(user AuthUser, profile finance.Profile) gin.H {
	return gin.H{
		"user_id":      user.ID,
		"display_name": firstNonEmpty(profile.DisplayName, user.Name),
		"locale":       profile.Locale,
		"currency":     profile.Currency,
		"effective": gin.H{
			"locale":   firstNonEmpty(profile.Locale, a.cfg.DefaultLocale),
			"currency": firstNonEmpty(profile.Currency, a.cfg.DefaultCurrency),
		},
	}
}

func (a *App) getMySettings(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if a.profiles == nil {
		c.JSON(http.StatusOK, a.settingsResponse(user, finance.Profile{UserID: user.ID}))
		return
	}

	profile, err := a.profiles.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.settingsResponse(user, profile))
}

func (a *App) updateMySettings(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload updateMySettingsRequest
	if !mustJSON(c, &payload) {
		return
	}

	update := finance.Profile{UserID: user.ID}
	if payload.DisplayName != nil {
		name := strings.TrimSpace(*payload.DisplayName)
		if name == "" || len([]rune(name)) > maxDisplayNameLength {
			writeError(c, http.StatusBadRequest, "display_name must be 1 to 80 characters")
			return
		}
		update.DisplayName = name
	}
	if payload.Locale != nil {
		locale, valid := normalizeLocale(*payload.Locale)
		if !valid {
			writeError(c, http.StatusBadRequest, "locale must be a BCP 47 language tag such as en-US")
			return
		}
		update.Locale = locale
	}
	if payload.Currency != nil {
		code, valid := normalizeCurrency(*payload.Currency)
		if !valid {
			writeError(c, http.StatusBadRequest, "currency must be an ISO 4217 code such as USD")
			return
		}
		update.Currency = code
	}

	if a.profiles == nil {
		writeError(c, http.StatusServiceUnavailable, "Profile storage is not configured")
		return
	}
	profile, err := a.profiles.UpdateProfile(c.Request.Context(), update)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.settingsResponse(user, profile))
}

func normalizeLocale(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	tag, err := language.Parse(trimmed)
	if err != nil || tag == language.Und {
		return "", false
	}
	return tag.String(), true
}

func normalizeCurrency(input string) (string, bool) {
	unit, err := currency.ParseISO(strings.TrimSpace(input))
	if err != nil {
		return "", false
	}
	return unit.String(), true
}
