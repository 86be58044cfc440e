package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (a *App) applyAction(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload actionApplyRequest
	if !mustJSON(c, &payload) {
		return
	}
	if strings.TrimSpace(string(payload.Action.Type)) == "" {
		writeError(c, http.StatusBadRequest, "action.type is required")
		return
	}

	result := a.actions.Apply(c.Request.Context(), payload.Action, user.ID, payload.Extra)
	status := http.StatusOK
	if !result.OK {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}
