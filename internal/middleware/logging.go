package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestLogState はセッションミドルウェアが内側で解決したユーザーIDを
// ロギングミドルウェアへ伝えるための可変の入れ物。
type requestLogState struct {
	userID     string
	fromCookie bool
}

var logStateContextKey = contextKey("request_log_state")

// recordUserIDForLog はロギングミドルウェア配下であればユーザーIDを記録する。
func recordUserIDForLog(ctx context.Context, userID string, fromCookie bool) {
	if state, ok := ctx.Value(logStateContextKey).(*requestLogState); ok {
		state.userID = userID
		state.fromCookie = fromCookie
	}
}

// withLogState はリクエストのログ状態を返す。まだなければ作成してコンテキストに登録する。
// 外側のリカバリーミドルウェアとロギングミドルウェアで同じ状態を共有する。
func withLogState(r *http.Request) (*http.Request, *requestLogState) {
	if state, ok := r.Context().Value(logStateContextKey).(*requestLogState); ok {
		return r, state
	}
	state := &requestLogState{}
	return r.WithContext(context.WithValue(r.Context(), logStateContextKey, state)), state
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_idとauth_method（認証済みの場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			r, state := withLogState(r)

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			// ユーザーIDが解決済みの場合は追加
			userID, fromCookie := state.userID, state.fromCookie
			if userID == "" {
				userID = OptionalUserID(r.Context())
				fromCookie = IsCookieAuthenticated(r.Context())
			}
			if userID != "" {
				authMethod := "bearer"
				if fromCookie {
					authMethod = "cookie"
				}
				attrs = append(attrs,
					slog.String("user_id", userID),
					slog.String("auth_method", authMethod),
				)
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			// slog.Attr をany スライスに変換
			args := make([]any, len(attrs))
			for i, attr := range attrs {
				args[i] = attr
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
