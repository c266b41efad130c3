// README: Notification inbox HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cargoline/internal/modules/notify"
	"cargoline/internal/types"
)

type NotificationHandler struct {
	store *notify.Store
}

func NewNotificationHandler(store *notify.Store) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List returns the caller's notifications: direct ones plus broadcasts for
// their role, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	uid := callerUID(c)
	out := h.store.ListForRecipient(types.ID(uid), types.Role(callerRole(c)))
	if out == nil {
		out = []notify.Notification{}
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid notification id")
		return
	}
	err := h.store.MarkRead(types.ID(id), types.ID(callerUID(c)), types.Role(callerRole(c)))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
