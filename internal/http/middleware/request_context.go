package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-library-backend/internal/platform/ctxutil"
)

// HeaderAuthor names the caller recorded in audit entries.
const HeaderAuthor = "X-Author"

func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			Author: strings.TrimSpace(c.GetHeader(HeaderAuthor)),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
