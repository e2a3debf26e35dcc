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

// AskHandler handles conversation requests
type AskHandler struct {
	engine *narratex.Engine
}

// NewAskHandler creates a new ask handler
func NewAskHandler(engine *narratex.Engine) *AskHandler {
	return &AskHandler{
		engine: engine,
	}
}

// Ask handles POST /api/v1/ask - one conversation turn
func (h *AskHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(err))
		return
	}

	answer, err := h.engine.Ask(c.Request.Context(), req.Query, narratex.AskOptions{
		SessionID: req.SessionID,
		Mode:      types.Mode(req.Mode),
		TopK:      req.TopK,
	})
	if err != nil {
		if errors.Is(err, session.ErrInvalidMode) {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse(err))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, answer)
}

// Metadata handles GET /api/v1/metadata - knowledge base summary
func (h *AskHandler) Metadata(c *gin.Context) {
	md, err := h.engine.Metadata()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, md)
}
