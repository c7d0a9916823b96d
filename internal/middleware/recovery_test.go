package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/moviediscovery/internal/model"
)

func TestRecoveryMiddleware_PanicReturnsInternalError(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	handler := NewRecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("favorite decode exploded")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/favorites/550", nil))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, ErrCodeInternal)
	}
	if strings.Contains(body.Message, "favorite decode exploded") {
		t.Error("panic value must not leak into the response")
	}
	if !strings.Contains(logBuf.String(), "favorite decode exploded") || !strings.Contains(logBuf.String(), `"path":"/api/favorites/550"`) {
		t.Errorf("log should record panic and path: %s", logBuf.String())
	}
}

// TestRecoveryMiddleware_LogsUserFromInnerSession は内側のセッションミドルウェアで
// 解決したユーザーIDがpanicログに残ることを検証する。
func TestRecoveryMiddleware_LogsUserFromInnerSession(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-panic", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	handler := NewRecoveryMiddleware(logger)(
		NewSessionMiddleware(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})))

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(logBuf.String(), `"user_id":"user-panic"`) {
		t.Errorf("log should contain user_id: %s", logBuf.String())
	}
}

func TestRecoveryMiddleware_AfterResponseStarted_KeepsStatus(t *testing.T) {
	handler := NewRecoveryMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"favorites":[`))
			panic("stream broke")
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/favorites", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if strings.Contains(w.Body.String(), ErrCodeInternal) {
		t.Errorf("error body should not be appended to a started response: %s", w.Body.String())
	}
}

func TestRecoveryMiddleware_AbortHandlerRepanics(t *testing.T) {
	handler := NewRecoveryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if p := recover(); p != http.ErrAbortHandler {
			t.Errorf("recovered = %v, want http.ErrAbortHandler", p)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/movies/trending", nil))
	t.Error("ServeHTTP should re-panic with http.ErrAbortHandler")
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		config      SecurityHeadersConfig
		path        string
		wantNoStore bool
		wantHSTS    bool
	}{
		{"お気に入りはキャッシュ禁止", SecurityHeadersConfig{}, "/api/favorites/550", true, false},
		{"認証もキャッシュ禁止", SecurityHeadersConfig{}, "/auth/me", true, false},
		{"ヘルスチェックは対象外", SecurityHeadersConfig{}, "/health", false, false},
		{"HSTS有効", SecurityHeadersConfig{HSTS: true}, "/api/movies/trending", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSecurityHeadersMiddleware(tt.config)(okHandler())

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			h := w.Result().Header

			if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" {
				t.Errorf("baseline headers missing: %v", h)
			}
			if got := h.Get("Content-Security-Policy"); got != "default-src 'none'; frame-ancestors 'none'" {
				t.Errorf("Content-Security-Policy = %q", got)
			}
			if got := h.Get("Cache-Control") == "no-store"; got != tt.wantNoStore {
				t.Errorf("Cache-Control no-store = %v, want %v", got, tt.wantNoStore)
			}
			if got := h.Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}
