package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/models"
	"github.com/aiblog/aiblog/utils"
)

// ContextUserKey is the key used to store the authenticated user in Gin context.
const ContextUserKey = "current_user"

// AuthRequired ensures the request carries a valid JWT and that the subject
// still resolves to an active account. The user row is revalidated on every
// request so a deleted or deactivated account loses access immediately.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "invalid token")
			ctx.Abort()
			return
		}

		var user models.User
		if err := db.Where("username = ?", claims.Subject).First(&user).Error; err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "account no longer exists")
			ctx.Abort()
			return
		}
		if !user.IsActive {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "account is disabled")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, &user)
		ctx.Next()
	}
}

// CurrentUser returns the authenticated user stored by AuthRequired.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
