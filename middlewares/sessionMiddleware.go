package middlewares

import (
	"net/http"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/session"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/gin-gonic/gin"
)

const sessionKey = "curation.session"

// SessionMiddleware resolves the :sid path parameter to a live session.
func SessionMiddleware(registry *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.Param("sid")
		s, err := registry.Get(sid)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			c.Abort()
			return
		}

		ctx := utils.SetSessionIdInContext(c.Request.Context(), s.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(sessionKey, s)
		c.Next()
	}
}

// CurrentSession returns the session resolved by SessionMiddleware.
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}
