package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Stevy64/Kongossa/internal/hub"
	"github.com/Stevy64/Kongossa/internal/model"
	"github.com/Stevy64/Kongossa/internal/repo"
)

const userKey = "authUser"

// AuthRequired resolves the request's session token and aborts with 401 if
// there is none. Handlers behind it can rely on currentUser being set.
func AuthRequired(users repo.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.Authenticate(c.Request.Context(), hub.TokenFromRequest(c.Request))
		if err != nil {
			if errors.Is(err, repo.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *model.User {
	v, _ := c.Get(userKey)
	user, _ := v.(*model.User)
	return user
}
