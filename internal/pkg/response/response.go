package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 各状态码对应的默认消息
var statusMessages = map[int]string{
	http.StatusBadRequest:          "invalid request",
	http.StatusUnauthorized:        "authentication required",
	http.StatusForbidden:           "permission denied",
	http.StatusNotFound:            "resource not found",
	http.StatusConflict:            "request conflicted, please retry",
	http.StatusInternalServerError: "internal server error",
}

// Response 统一响应结构，成功时业务字段与 success 平铺在同一层
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data gin.H) {
	write(c, http.StatusOK, data)
}

// Created 创建成功响应
func Created(c *gin.Context, data gin.H) {
	write(c, http.StatusCreated, data)
}

func write(c *gin.Context, status int, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		if k == "success" {
			continue
		}
		body[k] = v
	}
	c.JSON(status, body)
}

// Error 错误响应
func Error(c *gin.Context, status int, message string) {
	if message == "" {
		message = statusMessages[status]
	}
	c.JSON(status, Response{
		Success: false,
		Message: message,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// ConflictError 并发冲突
func ConflictError(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
