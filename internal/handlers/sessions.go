package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/filebridge/internal/pool"
	apperrors "github.com/charlesng35/filebridge/pkg/errors"
	"github.com/charlesng35/filebridge/pkg/response"
)

// poolInspector exposes the supervision view of the session pool.
type poolInspector interface {
	Snapshot() []pool.Status
	StatusOf(name string) (pool.Status, error)
}

// SessionsHandler reports pool membership and per-member supervision state.
type SessionsHandler struct {
	pool poolInspector
}

// NewSessionsHandler constructs a sessions handler.
func NewSessionsHandler(inspector poolInspector) *SessionsHandler {
	return &SessionsHandler{pool: inspector}
}

type sessionsListResponse struct {
	Sessions []pool.Status `json:"sessions"`
}

// List returns the status of every pool member.
func (h *SessionsHandler) List(c *gin.Context) {
	if h == nil || h.pool == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	statuses := h.pool.Snapshot()
	if statuses == nil {
		statuses = []pool.Status{}
	}
	response.Success(c, http.StatusOK, sessionsListResponse{Sessions: statuses})
}

// Get returns the status of a single member. Members that are down still
// report their state here; only unknown names produce 404.
func (h *SessionsHandler) Get(c *gin.Context) {
	if h == nil || h.pool == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.Error(c, apperrors.NewBadRequest("session name is required"))
		return
	}

	status, err := h.pool.StatusOf(name)
	if err != nil {
		response.Error(c, mapRemoteError(err))
		return
	}
	response.Success(c, http.StatusOK, status)
}
