package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ngenohkevin/cassandra-mcp/config"
	"github.com/ngenohkevin/cassandra-mcp/internal/auth"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
)

const minKeyLength = 32

// KeyStore persists API keys
type KeyStore interface {
	AddAPIKey(key string) error
}

// KeyHandlers handles API key management endpoints
type KeyHandlers struct {
	store KeyStore
}

// NewKeyHandlers creates key handlers
func NewKeyHandlers(store KeyStore) *KeyHandlers {
	return &KeyHandlers{store: store}
}

// GenerateKey handles POST /api/keys/generate
func (h *KeyHandlers) GenerateKey(c *gin.Context) {
	apiKey, err := config.GenerateAPIKey()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, nodetool.CodeExecutionError, "Failed to generate API key: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"api_key": apiKey,
	})
}

// SaveKey handles POST /api/keys, adding the key to the .env file and to
// the accepted set
func (h *KeyHandlers) SaveKey(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, nodetool.CodeInvalidArguments, "Invalid request: api_key is required")
		return
	}

	if len(req.APIKey) < minKeyLength {
		abortWithError(c, http.StatusBadRequest, nodetool.CodeInvalidArguments, "API key must be at least 32 characters")
		return
	}

	if err := h.store.AddAPIKey(req.APIKey); err != nil {
		abortWithError(c, http.StatusInternalServerError, nodetool.CodeExecutionError, "Failed to save API key: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "API key saved",
		"api_key": auth.Mask(req.APIKey),
	})
}
