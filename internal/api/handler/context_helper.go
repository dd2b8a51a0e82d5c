package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alexfofanov/company-structure/pkg/jwt"
	"github.com/alexfofanov/company-structure/pkg/response"
)

// 上下文键，由 middleware.JWTAuth 注入
const (
	ctxUserID = "user_id"
	ctxClaims = "claims"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 未认证时写入 403 响应并返回 false，调用方应直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		response.Forbidden(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Forbidden(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetClaims 提取完整的 JWT 声明（登出时需要 jti 与过期时间）
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		response.Forbidden(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Forbidden(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

// parseID 解析路径参数中的数字 ID，非法时写入 400 响应
func parseID(c *gin.Context, name, label string) (int64, bool) {
	return parseIDValue(c, c.Param(name), label)
}

func parseIDValue(c *gin.Context, raw, label string) (int64, bool) {
	if raw == "" {
		response.BadRequest(c, 10001, label+"不能为空")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, label+"无效")
		return 0, false
	}
	return id, true
}
