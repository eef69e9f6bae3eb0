package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids any caching of the response. Exam papers and answers must
// never land in a shared proxy cache.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
