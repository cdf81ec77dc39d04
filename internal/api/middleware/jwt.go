package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"schedulr/internal/api/auth"
	"schedulr/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// 鉴权身份在 gin 上下文里的键。
const (
	CtxUsername = "authUsername"
	CtxEmail    = "authEmail"
)

// 读取请求体的上限，防止恶意大包。
const maxBodyBytes = 1 << 20

// BodyAuth 从请求体中取出 token 字段并校验 JWT。
//
// 历史接口契约：令牌放在请求体而不是 Authorization 头（表单或 JSON 均可），
// 包括 GET/DELETE 请求。读取后请求体会原样恢复，后续 handler 可以再次绑定。
// 缺失或无效的令牌统一返回 401，不向客户端透出底层校验细节。
func BodyAuth(jwtSecret string, logger *slog.Logger) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		token, err := tokenFromBody(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"Message": "Auth Failed",
				"Error":   "Malformed request body",
			})
			return
		}
		if token == "" {
			metrics.AuthFailureTotal.Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"Message": "Auth Failed",
				"Error":   "JWT token is missing",
			})
			return
		}

		claims, err := auth.ParseToken(token, secret)
		if err != nil {
			metrics.AuthFailureTotal.Inc()
			if logger != nil {
				logger.Warn("token verification failed",
					slog.String("path", c.Request.URL.Path),
					slog.String("client_ip", c.ClientIP()),
				)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"Message": "Auth Failed",
				"Error":   "Invalid or expired token",
			})
			return
		}

		c.Set(CtxUsername, claims.Username)
		c.Set(CtxEmail, claims.Email)
		c.Next()
	}
}

// tokenFromBody 缓存请求体、解析出 token 字段，再把请求体放回去。
func tokenFromBody(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) == 0 {
		return "", nil
	}

	if strings.Contains(c.ContentType(), "json") || body[0] == '{' {
		var fields map[string]interface{}
		if err := json.Unmarshal(body, &fields); err != nil {
			return "", err
		}
		token, _ := fields["token"].(string)
		return token, nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", err
	}
	return values.Get("token"), nil
}
