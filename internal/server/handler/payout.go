package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/payout"
	"go.uber.org/zap"
)

// PayoutHandler handles payout redemption.
type PayoutHandler struct {
	coord  *payout.Coordinator
	logger *zap.Logger
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(coord *payout.Coordinator, logger *zap.Logger) *PayoutHandler {
	return &PayoutHandler{coord: coord, logger: logger}
}

// Register registers payout routes on the given router group.
func (h *PayoutHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/payout", h.Request)
}

// Request handles POST /payout — the body carries the binary payout proof;
// the receipt in the response marshals as base64.
func (h *PayoutHandler) Request(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	receipt, err := h.coord.Request(c.Request.Context(), body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RecordPayout()
	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}
