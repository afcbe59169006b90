package middleware

import (
	"net/http"

	"highway_monitor/internal/model"

	"github.com/gin-gonic/gin"
)

// RoleMiddleware creates a middleware to check for specific viewer roles
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer, exists := GetViewer(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Viewer not resolved, ensure profile middleware runs first"})
			return
		}

		role := viewer.Role()
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Choose a role before using this resource"})
			return
		}

		isAllowed := false
		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				isAllowed = true
				break
			}
		}

		if !isAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
			return
		}

		c.Next()
	}
}

// OnboardedMiddleware lets through any viewer that has picked a role
func OnboardedMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.Roles...)
}

// ReporterMiddleware checks if the viewer files photo reports
func ReporterMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleUser)
}

// InspectorMiddleware checks if the viewer has the 'inspector' role
func InspectorMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleInspector)
}

// StatusUpdateMiddleware checks if the viewer may move issues through the lifecycle
func StatusUpdateMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleInspector, model.RoleEngineer)
}
