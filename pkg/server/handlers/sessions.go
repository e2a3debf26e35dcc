package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/narratex/narratex"
	"github.com/narratex/narratex/pkg/server/dto"
	"github.com/narratex/narratex/pkg/session"
	"github.com/narratex/narratex/pkg/types"
)

// SessionHandler handles session management requests
type SessionHandler struct {
	engine *narratex.Engine
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(engine *narratex.Engine) *SessionHandler {
	return &SessionHandler{
		engine: engine,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(err))
		return
	}

	sess, err := h.engine.NewSession(types.Mode(req.Mode), req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidMode) {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse(err))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(err))
		return
	}

	c.JSON(http.StatusCreated, sess)
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	ids := h.engine.Sessions().List()
	c.JSON(http.StatusOK, dto.SessionListResponse{
		Sessions: ids,
		Count:    len(ids),
	})
}

// Get handles GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.engine.Sessions().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, sess)
}

// History handles GET /api/v1/sessions/:id/history
func (h *SessionHandler) History(c *gin.Context) {
	history, err := h.engine.History(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"history":    history,
		"turns":      len(history) / 2,
	})
}
