package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const tenantKey = "tenant_id"

// TenantRequired resolves the tenant from the X-Tenant-ID header. Real
// authentication lives upstream; the engine only needs the scope.
func TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing X-Tenant-ID header"})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}
