package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/study"
	"go.uber.org/zap"
)

// StudyHandler handles study publication and listing.
type StudyHandler struct {
	svc    *study.Service
	logger *zap.Logger
}

// NewStudyHandler creates a new StudyHandler.
func NewStudyHandler(svc *study.Service, logger *zap.Logger) *StudyHandler {
	return &StudyHandler{svc: svc, logger: logger}
}

// Register registers study routes on the given router group.
func (h *StudyHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/studies", h.List)
	rg.POST("/studies", h.Publish)
}

// List handles GET /studies — returns all studies, optionally filtered by
// ?owner=.
func (h *StudyHandler) List(c *gin.Context) {
	var owner *string
	if o := c.Query("owner"); o != "" {
		owner = &o
	}

	studies, err := h.svc.List(c.Request.Context(), owner)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if studies == nil {
		studies = []*study.Study{}
	}
	c.JSON(http.StatusOK, gin.H{"studies": studies, "count": len(studies)})
}

// Publish handles POST /studies — the body carries the serialized signed
// resource, which is verified against the owner's registered key.
func (h *StudyHandler) Publish(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	st, err := h.svc.Publish(c.Request.Context(), body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": st.ID})
}
