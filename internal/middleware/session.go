// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/moviediscovery/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_id"

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// sessionIDContextKey は検証済みセッショントークンを格納するためのキー。
	sessionIDContextKey = contextKey("session_id")
	// cookieAuthContextKey はCookie経由で認証されたかを格納するためのキー。
	cookieAuthContextKey = contextKey("cookie_auth")
)

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
// 期限切れのセッションはnilとして返すこと。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はセッションを必須とするミドルウェアを返す。
// トークンは Authorization: Bearer ヘッダーまたは session_id Cookie から読み取る。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 NOT_AUTHENTICATEDを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := resolveSession(r, sessionFinder)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalSessionMiddleware はセッションがあれば解決するミドルウェアを返す。
// セッションがない、または無効な場合は匿名リクエストとしてそのまま通す。
func NewOptionalSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctx, ok := resolveSession(r, sessionFinder); ok {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveSession はリクエストのトークンからセッションを検索し、
// ユーザーIDを注入したコンテキストを返す。
func resolveSession(r *http.Request, sessionFinder SessionFinder) (context.Context, bool) {
	token, fromCookie := SessionTokenFromRequest(r)
	if token == "" {
		return nil, false
	}

	session, err := sessionFinder.FindByID(r.Context(), token)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if session == nil {
		return nil, false
	}

	recordUserIDForLog(r.Context(), session.UserID, fromCookie)

	ctx := context.WithValue(r.Context(), userIDContextKey, session.UserID)
	ctx = context.WithValue(ctx, sessionIDContextKey, session.ID)
	ctx = context.WithValue(ctx, cookieAuthContextKey, fromCookie)
	return ctx, true
}

// SessionTokenFromRequest はリクエストからセッショントークンを取り出す。
// Authorizationヘッダーを優先し、なければCookieを使う。
// 2番目の戻り値はトークンがCookie由来かどうか。
func SessionTokenFromRequest(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix)); token != "" {
			return token, false
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// OptionalUserID はコンテキストのユーザーIDを返す。匿名の場合は空文字列。
func OptionalUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return userID
}

// SessionIDFromContext は検証済みセッショントークンを返す。匿名の場合は空文字列。
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDContextKey).(string)
	return sessionID
}

// IsCookieAuthenticated はリクエストがCookieのセッションで認証されたかを返す。
func IsCookieAuthenticated(ctx context.Context) bool {
	fromCookie, _ := ctx.Value(cookieAuthContextKey).(bool)
	return fromCookie
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithSession はコンテキストにセッション情報を注入する。テスト用。
func ContextWithSession(ctx context.Context, session *model.Session, fromCookie bool) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, session.UserID)
	ctx = context.WithValue(ctx, sessionIDContextKey, session.ID)
	return context.WithValue(ctx, cookieAuthContextKey, fromCookie)
}
