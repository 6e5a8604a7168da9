package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
	"github.com/prepams/prepams/internal/ledger"
	"go.uber.org/zap"
)

// Attribute is one entry of the credential attribute schema clients render
// at signup.
type Attribute struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values,omitempty"`
}

// DefaultAttributes is the attribute schema served when none is configured.
var DefaultAttributes = []Attribute{
	{Name: "year of birth", Type: "number"},
	{Name: "handedness", Type: "select", Values: []string{"left", "right"}},
}

// IssuerHandler serves the issuer's public key material, the serialized
// ledger, and the blinded null-coin issuance endpoint.
type IssuerHandler struct {
	eng        engine.Engine
	state      *ledger.StateHolder
	attributes []Attribute
	logger     *zap.Logger
}

// NewIssuerHandler creates a new IssuerHandler.
func NewIssuerHandler(eng engine.Engine, state *ledger.StateHolder, logger *zap.Logger) *IssuerHandler {
	return &IssuerHandler{eng: eng, state: state, attributes: DefaultAttributes, logger: logger}
}

// Register registers issuer and ledger routes on the given router group.
func (h *IssuerHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/issuer/attributes", h.Attributes)
	rg.GET("/issuer/pk", h.PublicKey)
	rg.GET("/issuer/vk", h.VerificationKey)
	rg.GET("/ledger/vk", h.LedgerVerificationKey)
	rg.GET("/ledger", h.Ledger)
	rg.POST("/nulls", h.IssueNulls)
}

// Attributes handles GET /issuer/attributes — returns the credential
// attribute schema.
func (h *IssuerHandler) Attributes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"attributes": h.attributes})
}

// PublicKey handles GET /issuer/pk.
func (h *IssuerHandler) PublicKey(c *gin.Context) {
	c.Data(http.StatusOK, contentTypeBinary, h.eng.PublicKey())
}

// VerificationKey handles GET /issuer/vk.
func (h *IssuerHandler) VerificationKey(c *gin.Context) {
	c.Data(http.StatusOK, contentTypeBinary, h.eng.VerificationKey())
}

// LedgerVerificationKey handles GET /ledger/vk.
func (h *IssuerHandler) LedgerVerificationKey(c *gin.Context) {
	c.Data(http.StatusOK, contentTypeBinary, h.eng.LedgerVerificationKey())
}

// Ledger handles GET /ledger — returns the serialized issuer ledger so
// clients can recompute their balance locally.
func (h *IssuerHandler) Ledger(c *gin.Context) {
	blob, err := h.state.Current().Serialize()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, contentTypeBinary, blob)
}

// IssueNulls handles POST /nulls — signs a batch of blinded zero-value coins
// used as padding inputs in payout proofs.
func (h *IssuerHandler) IssueNulls(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	resp, err := h.eng.IssueNulls(body)
	if err != nil {
		respondError(c, h.logger, apperr.Wrap(apperr.BadRequest, "null request rejected", err))
		return
	}
	c.Data(http.StatusOK, contentTypeBinary, resp)
}
