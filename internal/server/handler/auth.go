package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepams/prepams/internal/engine"
	"github.com/prepams/prepams/internal/identity"
	"go.uber.org/zap"
)

// AuthHandler handles registration and sign-in key retrieval. There are no
// sessions or tokens: participants authenticate towards studies with their
// anonymous credential, organizers by signing resources with their key.
type AuthHandler struct {
	svc    *identity.Service
	eng    engine.Engine
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *identity.Service, eng engine.Engine, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, eng: eng, logger: logger}
}

// Register registers auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.Signup)
	rg.GET("/auth/signin", h.Signin)
}

// Signup handles POST /auth/signup?id=...&role=... — the body carries the
// binary credential request (participant) or the verification public key
// (organizer). Participants receive the binary credential signature.
func (h *AuthHandler) Signup(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	role, err := identity.ParseRole(c.Query("role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	body, ok := readBody(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	switch role {
	case identity.RoleParticipant:
		signature, err := h.svc.SignupParticipant(ctx, id, body)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.Data(http.StatusOK, contentTypeBinary, signature)
	case identity.RoleOrganizer:
		if err := h.svc.SignupOrganizer(ctx, id, body); err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// Signin handles GET /auth/signin?role=... — returns the issuer key material
// plus, for participants, the issued-signature log they scan to recover their
// credential, or, for organizers, all registered organizer keys.
//
// []byte fields marshal as base64 strings, matching what the clients decode.
func (h *AuthHandler) Signin(c *gin.Context) {
	role, err := identity.ParseRole(c.Query("role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	resp := gin.H{
		"publicKey":             h.eng.PublicKey(),
		"verificationKey":       h.eng.VerificationKey(),
		"ledgerVerificationKey": h.eng.LedgerVerificationKey(),
	}

	ctx := c.Request.Context()
	switch role {
	case identity.RoleParticipant:
		log, err := h.svc.IssuedLog(ctx)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if log == nil {
			log = [][]byte{}
		}
		resp["log"] = log
	case identity.RoleOrganizer:
		keys, err := h.svc.OrganizerKeys(ctx)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if keys == nil {
			keys = [][]byte{}
		}
		resp["publicKeys"] = keys
	}

	c.JSON(http.StatusOK, resp)
}
