package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/didmybit/didmybit_server/internal/pkg/jwt"
	"github.com/didmybit/didmybit_server/internal/pkg/response"
)

const (
	UsernameKey = "username"
)

var (
	ErrMissingToken    = errors.New("missing authorization header")
	ErrMalformedHeader = errors.New("authorization header must be a bearer token")
	ErrVoterMismatch   = errors.New("username does not match the authenticated user")
)

// bearerUsername 解析 Authorization 头并返回令牌中的用户名，scheme 不区分大小写
func bearerUsername(c *gin.Context, jwtSecret string) (string, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedHeader
	}

	claims, err := jwt.ParseToken(parts[1], jwtSecret)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// Auth 要求有效令牌，用户名写入上下文
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, err := bearerUsername(c, jwtSecret)
		if err != nil {
			response.AuthError(c, err.Error())
			c.Abort()
			return
		}

		c.Set(UsernameKey, username)
		c.Next()
	}
}

// OptionalAuth 令牌有效时写入用户名，无效或缺失时按匿名处理
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, err := bearerUsername(c, jwtSecret); err == nil {
			c.Set(UsernameKey, username)
		}
		c.Next()
	}
}

// VoterGuard 请求体带 username 时必须与令牌身份一致，需挂在 Auth 之后。
// 请求体通过 ShouldBindBodyWith 缓存，后续 handler 需用同样方式读取。
func VoterGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := GetUsername(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		var body struct {
			Username string `json:"username"`
		}
		// 格式错误交给 handler 返回 400
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			c.Next()
			return
		}

		if claimed := strings.TrimSpace(body.Username); claimed != "" && claimed != username {
			response.PermissionError(c, ErrVoterMismatch.Error())
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUsername 从上下文获取已认证的用户名
func GetUsername(c *gin.Context) (string, bool) {
	username, exists := c.Get(UsernameKey)
	if !exists {
		return "", false
	}
	name, ok := username.(string)
	return name, ok && name != ""
}
