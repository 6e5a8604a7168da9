package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/ledger"
	"github.com/prepams/prepams/internal/reward"
	"go.uber.org/zap"
)

// RewardHandler handles reward issuance and the public transaction listing.
type RewardHandler struct {
	coord  *reward.Coordinator
	store  ledger.Store
	logger *zap.Logger
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(coord *reward.Coordinator, store ledger.Store, logger *zap.Logger) *RewardHandler {
	return &RewardHandler{coord: coord, store: store, logger: logger}
}

// Register registers reward routes on the given router group.
func (h *RewardHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/rewards", h.Issue)
	rg.GET("/rewards", h.ListTransactions)
	rg.GET("/rewards/:id", h.ListStudyTransactions)
}

// Issue handles POST /rewards — the body carries the serialized confirmed
// participation; the response is the binary reward entry receipt.
func (h *RewardHandler) Issue(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	receipt, err := h.coord.Issue(c.Request.Context(), body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	RecordRewardIssued()
	c.Data(http.StatusOK, contentTypeBinary, receipt)
}

// ListTransactions handles GET /rewards — the public projection of all
// ledger entries.
func (h *RewardHandler) ListTransactions(c *gin.Context) {
	h.listTransactions(c, nil)
}

// ListStudyTransactions handles GET /rewards/:id — entries for one study.
func (h *RewardHandler) ListStudyTransactions(c *gin.Context) {
	id := c.Param("id")
	h.listTransactions(c, &id)
}

func (h *RewardHandler) listTransactions(c *gin.Context, study *string) {
	txs, err := h.store.ListTransactions(c.Request.Context(), study)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
