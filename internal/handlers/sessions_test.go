package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/filebridge/internal/pool"
)

type stubInspector struct {
	statuses []pool.Status
}

func (s *stubInspector) Snapshot() []pool.Status { return s.statuses }

func (s *stubInspector) StatusOf(name string) (pool.Status, error) {
	for _, status := range s.statuses {
		if status.Name == name {
			return status, nil
		}
	}
	return pool.Status{}, fmt.Errorf("%w: %q", pool.ErrUnknownSession, name)
}

func TestSessionsHandler_ListReportsAllMembers(t *testing.T) {
	connected := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	inspector := &stubInspector{statuses: []pool.Status{
		{Name: "alpha", Endpoint: "alpha.example.com:22", State: pool.StateRunning, ConnectedAt: connected},
		{Name: "beta", Endpoint: "beta.example.com:22", State: pool.StateRestarting, Restarts: 3, LastError: "connection lost"},
	}}
	h := NewSessionsHandler(inspector)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://example/sessions", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Success bool                 `json:"success"`
		Data    sessionsListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Len(t, envelope.Data.Sessions, 2)
	require.Equal(t, "alpha", envelope.Data.Sessions[0].Name)
	require.Equal(t, pool.StateRunning, envelope.Data.Sessions[0].State)
	require.Equal(t, 3, envelope.Data.Sessions[1].Restarts)
	require.Equal(t, "connection lost", envelope.Data.Sessions[1].LastError)
}

func TestSessionsHandler_ListEmptyPool(t *testing.T) {
	h := NewSessionsHandler(&stubInspector{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://example/sessions", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"sessions":[]`)
}

func TestSessionsHandler_GetReportsDownMember(t *testing.T) {
	inspector := &stubInspector{statuses: []pool.Status{
		{Name: "alpha", State: pool.StateFailed, Restarts: 5, LastError: "connection refused"},
	}}
	h := NewSessionsHandler(inspector)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://example/sessions/alpha", nil)
	c.Params = gin.Params{gin.Param{Key: "name", Value: "alpha"}}

	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data pool.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, pool.StateFailed, envelope.Data.State)
	require.Equal(t, 5, envelope.Data.Restarts)
}

func TestSessionsHandler_GetUnknownMember(t *testing.T) {
	h := NewSessionsHandler(&stubInspector{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://example/sessions/ghost", nil)
	c.Params = gin.Params{gin.Param{Key: "name", Value: "ghost"}}

	h.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
