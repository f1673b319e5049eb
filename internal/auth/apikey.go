package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// 认证模式。
const (
	ModeDisabled = "disabled"
	ModeAPIKey   = "api_key"
)

// headerAPIKey 是客户端携带 API Key 的请求头。
const headerAPIKey = "X-API-Key"

// Guard 校验请求携带的 API Key。mode 为 disabled 时放行所有请求。
type Guard struct {
	mode string
	keys []string
}

// NewGuard 创建认证守卫。
func NewGuard(mode string, keys []string) *Guard {
	mode = strings.TrimSpace(strings.ToLower(mode))
	if mode == "" {
		mode = ModeDisabled
	}
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return &Guard{mode: mode, keys: cleaned}
}

// Enabled 返回是否启用了认证。
func (g *Guard) Enabled() bool {
	return g != nil && g.mode == ModeAPIKey
}

// Allow 判断请求是否通过认证。
func (g *Guard) Allow(r *http.Request) bool {
	if !g.Enabled() {
		return true
	}
	provided := strings.TrimSpace(r.Header.Get(headerAPIKey))
	if provided == "" {
		// 兼容 Authorization: Bearer <key> 形式。
		authorization := r.Header.Get("Authorization")
		if strings.HasPrefix(authorization, "Bearer ") {
			provided = strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
		}
	}
	if provided == "" {
		return false
	}
	for _, key := range g.keys {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Middleware 将守卫包装成 HTTP 中间件。
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Allow(r) {
			http.Error(w, "未授权的请求", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
