package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-library-backend/internal/platform/ctxutil"
)

// RequireAuthor rejects writes that do not name an author. Reads pass.
func RequireAuthor() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if ctxutil.AuthorFrom(c.Request.Context()) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing " + HeaderAuthor + " header", "code": "missing_author"},
			})
			return
		}
		c.Next()
	}
}
