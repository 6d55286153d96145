package apitest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const subKey = "sub"

// record counts the request and applies the injected hold and failure of its
// route.
func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := routeKey(c.Request.Method, c.FullPath())
		s.mu.Lock()
		s.requests[key]++
		hold, held := s.holds[key]
		s.mu.Unlock()

		if held {
			select {
			case <-hold:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		s.mu.Lock()
		f, failing := s.failures[key]
		s.mu.Unlock()
		if failing {
			c.JSON(f.status, gin.H{"message": f.message})
			c.Abort()
			return
		}
		c.Next()
	}
}

// JWT middleware looks for the bearer token in the Authorization header and
// stores the user id it belongs to under "sub". Unknown or missing tokens are
// rejected with 401.
func (s *Server) JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "empty jwt token"})
			c.Abort()
			return
		}

		s.mu.Lock()
		userId, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(subKey, userId)
		c.Next()
	}
}

func sub(c *gin.Context) string {
	return c.GetString(subKey)
}

func abort(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}
