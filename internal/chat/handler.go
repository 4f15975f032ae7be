package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"critique-backend/internal/shared/server/middleware"
	"critique-backend/internal/shared/server/respond"
)

// Handler exposes the chat webhook.
type Handler struct {
	handle HandlerFunc
}

// NewHandler wraps d with Guard.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{handle: Guard(d.Handle)}
}

// RegisterRoutes attaches chat routes to the router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/chat/events", h.postEvent)
}

// IdentifyUser records the event's user id on the context so later middleware,
// such as rate limiting, keys on the chat user rather than the caller's address.
// Bodies that do not decode are left for the handler to reject.
func IdentifyUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev Event
		if err := c.ShouldBindBodyWith(&ev, binding.JSON); err == nil {
			middleware.SetUserID(c, ev.UserID)
		}
		c.Next()
	}
}

func (h *Handler) postEvent(c *gin.Context) {
	var ev Event
	if err := c.ShouldBindBodyWith(&ev, binding.JSON); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_event", "request body must be a chat event", nil)
		return
	}
	middleware.SetUserID(c, ev.UserID)

	replies, err := h.handle(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, ErrBadEvent) {
			respond.Error(c, http.StatusBadRequest, "invalid_event", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to handle chat event", nil)
		return
	}
	if replies == nil {
		replies = []Reply{}
	}
	respond.OK(c, Response{Replies: replies})
}
