// Package middleware 提供HTTP中间件
package middleware

import (
	"net/http"
	"strings"

	"github.com/zhusu/zhusu/internal/security"
	"github.com/zhusu/zhusu/pkg/logger"
)

// AuthConfig 认证配置
type AuthConfig struct {
	APIKeyManager   *security.APIKeyManager
	RateLimiter     *security.RateLimiter
	SkipPaths       []string // 跳过认证的路径
	EnableRateLimit bool
}

// AuthMiddleware 认证中间件
//
// 频率限制以密钥归属的客户端为粒度，匿名路径不计数。
func AuthMiddleware(config *AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 检查是否跳过认证
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// 提取API密钥
			apiKey := security.ExtractAPIKey(r)
			if apiKey == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing_api_key", "API密钥未提供")
				return
			}

			// 验证API密钥
			key, err := config.APIKeyManager.Validate(apiKey)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("API密钥验证失败")
				writeAuthError(w, http.StatusUnauthorized, "invalid_api_key", "无效的API密钥")
				return
			}

			// 检查频率限制
			if config.EnableRateLimit && config.RateLimiter != nil {
				if !config.RateLimiter.Allow(key.ClientID) {
					writeAuthError(w, http.StatusTooManyRequests, "rate_limit", "请求频率超限")
					return
				}
			}

			w.Header().Set("X-Client-ID", key.ClientID)

			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope 权限范围检查中间件
func RequireScope(scope string, keyManager *security.APIKeyManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := security.ExtractAPIKey(r)
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			key, err := keyManager.Validate(apiKey)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "无效的API密钥")
				return
			}

			if !key.HasScope(scope) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "权限不足")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware 安全头中间件
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware 恢复中间件（捕获panic）
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error().
					Interface("panic", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("请求处理panic")
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "服务器内部错误")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
