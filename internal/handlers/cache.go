package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/swdash/pkg/errors"
	"github.com/charlesng35/swdash/pkg/response"
	appValidator "github.com/charlesng35/swdash/pkg/validator"
)

// CacheClearer drops cached table snapshots.
type CacheClearer interface {
	ClearCache(table string) int
}

// CacheHandler exposes cache invalidation.
type CacheHandler struct {
	cache CacheClearer
}

// NewCacheHandler constructs a CacheHandler.
func NewCacheHandler(cache CacheClearer) (*CacheHandler, error) {
	if cache == nil {
		return nil, errors.New("cache handler: cache is required")
	}
	return &CacheHandler{cache: cache}, nil
}

// ClearAll handles DELETE /api/cache.
func (h *CacheHandler) ClearAll(c *gin.Context) {
	removed := h.cache.ClearCache("")
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// ClearTable handles DELETE /api/cache/:name.
func (h *CacheHandler) ClearTable(c *gin.Context) {
	name := c.Param("name")
	if err := appValidator.ValidateVar("table", name, "required,identifier"); err != nil {
		response.Error(c, appErrors.Invalid(formatValidationError(err)))
		return
	}
	removed := h.cache.ClearCache(name)
	response.Success(c, http.StatusOK, gin.H{"table": name, "removed": removed})
}
