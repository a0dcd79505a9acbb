package middleware

import (
	"errors"
	"intellitest_backend/internal/config"
	"intellitest_backend/internal/policy"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdentityResolver 根据 token 中的用户ID加载当前身份（含班级、启用状态）
type IdentityResolver interface {
	ResolveIdentity(userID uint) (policy.Identity, error)
}

func AuthMiddleware(cfg *config.Config, resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// websocket 连接无法携带请求头
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT parse failed", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		identity, err := resolver.ResolveIdentity(claims.UserID)
		if err != nil {
			if errors.Is(err, util.ErrUnauthenticated) {
				util.HandleError(c, err)
			} else {
				util.LogInternalError(c, err)
			}
			c.Abort()
			return
		}

		util.SetIdentity(c, identity)
		c.Next()
	}
}

// RequireManager 仅管理员和教师
func RequireManager() gin.HandlerFunc {
	return require(policy.CanManage)
}

// RequireAdmin 仅管理员
func RequireAdmin() gin.HandlerFunc {
	return require(policy.IsAdmin)
}

func require(allowed func(policy.Identity) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := util.GetIdentity(c)
		if !ok {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if !allowed(identity) {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
