package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDContextKey = "auth_user_id"

// DemoUser stores the fixed demo user id in the context. There is no login;
// every request acts as this user.
func DemoUser(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID <= 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "demo user not configured"})
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// UserIDFromContext retrieves the user id from the gin context.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	val, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	userID, ok := val.(int64)
	return userID, ok
}
