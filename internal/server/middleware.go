package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/sphera-erp/sphera/internal/orgcontext"
)

// OrgContext resolves the organization from the X-Org-ID header set by the
// authenticating proxy and stores it in the request context. Requests
// without a valid organization never reach a handler.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Org-ID"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID.Int64())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
