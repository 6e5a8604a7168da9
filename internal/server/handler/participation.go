package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/participation"
	"go.uber.org/zap"
)

// ParticipationHandler handles the staged participation drop box.
type ParticipationHandler struct {
	svc    *participation.Service
	logger *zap.Logger
}

// NewParticipationHandler creates a new ParticipationHandler.
func NewParticipationHandler(svc *participation.Service, logger *zap.Logger) *ParticipationHandler {
	return &ParticipationHandler{svc: svc, logger: logger}
}

// Register registers participation routes on the given router group.
func (h *ParticipationHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/participations", h.Stage)
	rg.GET("/participations", h.List)
	rg.GET("/participations/:id", h.Fetch)
}

// Stage handles POST /participations — stages an encrypted participation
// blob and returns its id and retrieval URL.
func (h *ParticipationHandler) Stage(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	id, url, err := h.svc.Stage(c.Request.Context(), body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": id, "url": url})
}

// stagedView hides the ciphertext: listings only reveal that a blob exists.
type stagedView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// List handles GET /participations — returns ids of currently staged blobs.
func (h *ParticipationHandler) List(c *gin.Context) {
	staged, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	views := make([]stagedView, len(staged))
	for i, s := range staged {
		views[i] = stagedView{ID: s.ID, CreatedAt: s.CreatedAt}
	}
	c.JSON(http.StatusOK, gin.H{"participations": views, "count": len(views)})
}

// Fetch handles GET /participations/:id — returns the binary iv-prefixed
// ciphertext, or 404 once it has been consumed.
func (h *ParticipationHandler) Fetch(c *gin.Context) {
	blob, err := h.svc.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, contentTypeBinary, blob)
}
