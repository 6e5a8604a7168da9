package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/demo"
	"github.com/prepams/prepams/internal/ledger"
	"go.uber.org/zap"
)

// DemoHandler serves the demo identity set and a readable payout listing.
// Only registered when demo mode is enabled.
type DemoHandler struct {
	identities []demo.Identity
	store      ledger.Store
	logger     *zap.Logger
}

// NewDemoHandler creates a new DemoHandler.
func NewDemoHandler(identities []demo.Identity, store ledger.Store, logger *zap.Logger) *DemoHandler {
	return &DemoHandler{identities: identities, store: store, logger: logger}
}

// Register registers demo routes on the given router group.
func (h *DemoHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/demo/credentials", h.Credentials)
	rg.GET("/demo/payouts", h.Payouts)
}

// Credentials handles GET /demo/credentials — the demo identities including
// their client-side secrets.
func (h *DemoHandler) Credentials(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identities": h.identities})
}

type payoutView struct {
	Target    string    `json:"target"`
	Recipient string    `json:"recipient"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Payouts handles GET /demo/payouts — processed payouts with their targets
// decoded for display.
func (h *DemoHandler) Payouts(c *gin.Context) {
	entries, err := h.store.ListPayouts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	views := make([]payoutView, 0, len(entries))
	for _, e := range entries {
		var tag struct {
			Target    string `json:"target"`
			Recipient string `json:"recipient"`
		}
		if err := json.Unmarshal([]byte(e.Tag), &tag); err != nil {
			h.logger.Warn("demo: undecodable payout tag", zap.Int64("seq", e.Seq))
			continue
		}
		views = append(views, payoutView{
			Target:    tag.Target,
			Recipient: tag.Recipient,
			Value:     e.Value,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"payouts": views, "count": len(views)})
}
