package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/swdash/internal/handlers"
)

func registerTableRoutes(api *gin.RouterGroup, tables *handlers.TableHandler, caches *handlers.CacheHandler) {
	group := api.Group("/tables")
	{
		group.GET("", tables.List)
		group.GET("/find", tables.Find)
		group.GET("/:name", tables.Read)
	}

	cache := api.Group("/cache")
	{
		cache.DELETE("", caches.ClearAll)
		cache.DELETE("/:name", caches.ClearTable)
	}
}
