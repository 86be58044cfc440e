package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"finpilot/backend/internal/advice"
	"finpilot/backend/internal/finance"
)

func (a *App) getContext(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	snapshot := finance.EmptySnapshot(user.ID)
	if a.snapshots != nil {
		snapshot = a.snapshots.Build(c.Request.Context(), user.ID)
	}
	formatter := a.formatterFor(user, c.Query("locale"), c.Query("currency"))
	c.JSON(http.StatusOK, snapshotView(snapshot, formatter))
}

// previewAdvice answers without touching any conversation.
func (a *App) previewAdvice(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload advicePreviewRequest
	if !mustJSON(c, &payload) {
		return
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return
	}

	req := advice.Request{
		UserID:   user.ID,
		Message:  message,
		Source:   advice.ContextMustRefresh,
		Locale:   firstNonEmpty(payload.Locale, user.Locale, a.cfg.DefaultLocale),
		Currency: firstNonEmpty(payload.Currency, user.Currency, a.cfg.DefaultCurrency),
	}
	if payload.Snapshot != nil {
		req.Snapshot = *payload.Snapshot
		req.Snapshot.UserID = user.ID
		req.Source = advice.ContextProvided
	}

	response, err := a.advisor.GenerateAdvice(c.Request.Context(), req)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	body := adviceView(response)
	body["context_source"] = req.Source.String()
	c.JSON(http.StatusOK, body)
}
