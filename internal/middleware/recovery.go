package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// INTERNAL_ERRORの500レスポンスを返すミドルウェアを生成する。
// レスポンスの書き込みが始まっていた場合はステータスを変更できないため、ログのみ残す。
// http.ErrAbortHandlerによる中断はそのまま再panicする。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, state := withLogState(r)
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				attrs := []any{
					slog.Any("panic", p),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("response_started", rec.written),
					slog.String("stack", string(debug.Stack())),
				}
				if state.userID != "" {
					attrs = append(attrs, slog.String("user_id", state.userID))
				}
				logger.Error("panic recovered", attrs...)

				if !rec.written {
					WriteInternalServerError(w)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// SecurityHeadersConfig はセキュリティヘッダーの設定。
type SecurityHeadersConfig struct {
	// HSTS はStrict-Transport-Securityを付与するか。HTTPSで配信する場合に有効にする。
	HSTS bool
}

// userScopedPrefixes はセッションによって内容が変わるため、キャッシュさせないパスの接頭辞。
// 映画一覧もis_favoriteを含むため対象にする。
var userScopedPrefixes = []string{"/auth/", "/api/"}

// NewSecurityHeadersMiddleware はJSON APIとしてのセキュリティヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware(config SecurityHeadersConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if config.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if isUserScopedPath(r.URL.Path) {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isUserScopedPath(path string) bool {
	for _, prefix := range userScopedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
