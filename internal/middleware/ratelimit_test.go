package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/moviediscovery/internal/model"
)

// newUserRequest はユーザーIDを注入したリクエストを生成する。
func newUserRequest(method, target, userID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if userID == "" {
		return req
	}
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// newIPRequest は送信元IPを指定したリクエストを生成する。
func newIPRequest(method, target, ip string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = ip + ":54321"
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- GeneralMiddleware (API全般) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		SignInRate:      1,
		SignInBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newUserRequest(http.MethodGet, "/api/movies/trending", "user-1"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfterHeader(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    2, // バースト2
		SignInRate:      1,
		SignInBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newUserRequest(http.MethodGet, "/api/favorites", "user-rate-limit"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目はレート制限に引っかかる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newUserRequest(http.MethodGet, "/api/favorites", "user-rate-limit"))

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	retryAfter := w.Result().Header.Get("Retry-After")
	retrySeconds, err := strconv.Atoi(retryAfter)
	if err != nil {
		t.Fatalf("Retry-After header should be a number, got %q", retryAfter)
	}
	if retrySeconds < 1 {
		t.Errorf("Retry-After = %d, should be at least 1", retrySeconds)
	}
}

func TestRateLimitMiddleware_IsolatesUserRateLimits(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		SignInRate:      1,
		SignInBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	steps := []struct {
		userID string
		want   int
	}{
		{"user-A", http.StatusOK},
		{"user-A", http.StatusTooManyRequests},
		{"user-B", http.StatusOK}, // ユーザーAのレートに影響されない
	}
	for i, step := range steps {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newUserRequest(http.MethodGet, "/api/favorites", step.userID))
		if w.Result().StatusCode != step.want {
			t.Errorf("step %d (%s): status = %d, want %d", i, step.userID, w.Result().StatusCode, step.want)
		}
	}
}

func TestRateLimitMiddleware_Anonymous_LimitedPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		SignInRate:      1,
		SignInBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	steps := []struct {
		ip   string
		want int
	}{
		{"198.51.100.1", http.StatusOK},
		{"198.51.100.1", http.StatusTooManyRequests},
		{"198.51.100.2", http.StatusOK},
	}
	for i, step := range steps {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newIPRequest(http.MethodGet, "/api/movies/trending", step.ip))
		if w.Result().StatusCode != step.want {
			t.Errorf("step %d (%s): status = %d, want %d", i, step.ip, w.Result().StatusCode, step.want)
		}
	}
}

// --- SignInMiddleware のテスト ---

func TestSignInRateLimit_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    200,
		SignInRate:      1,
		SignInBurst:     3,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.SignInMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newIPRequest(http.MethodPost, "/auth/signin", "203.0.113.9"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newIPRequest(http.MethodPost, "/auth/signin", "203.0.113.9"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
	if w.Result().Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header to be present")
	}

	// 別IPからは引き続き受け付ける
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newIPRequest(http.MethodPost, "/auth/signin", "203.0.113.10"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestSignInRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		SignInRate:      1,
		SignInBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	// General limitを使い果たす
	general := rl.GeneralMiddleware()(okHandler())
	general.ServeHTTP(httptest.NewRecorder(), newIPRequest(http.MethodGet, "/api/movies/trending", "192.0.2.50"))

	// サインインのlimitはまだ使える
	w := httptest.NewRecorder()
	rl.SignInMiddleware()(okHandler()).ServeHTTP(w, newIPRequest(http.MethodPost, "/auth/signin", "192.0.2.50"))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("sign in should still be allowed: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// --- 429レスポンスフォーマットのテスト ---

func TestRateLimitMiddleware_429ResponseIsJSON(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		SignInRate:      1,
		SignInBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// バースト消費
	handler.ServeHTTP(httptest.NewRecorder(), newUserRequest(http.MethodGet, "/api/favorites", "user-json-test"))

	// 429レスポンス
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newUserRequest(http.MethodGet, "/api/favorites", "user-json-test"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != ErrCodeRateLimitExceeded {
		t.Errorf("code = %q, want %q", body.Code, ErrCodeRateLimitExceeded)
	}
	if body.Message == "" || body.Category == "" {
		t.Errorf("message and category should be set: %+v", body)
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		SignInRate:      1,
		SignInBurst:     10,
		CleanupInterval: 50 * time.Millisecond, // テスト用に短く
	})
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(),
		newUserRequest(http.MethodGet, "/api/favorites", "user-cleanup"))
	rl.SignInMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(),
		newIPRequest(http.MethodPost, "/auth/signin", "192.0.2.77"))

	if rl.GeneralLimiterCount() == 0 || rl.SignInLimiterCount() == 0 {
		t.Fatal("expected limiter entries before cleanup")
	}

	// TTLはCleanupIntervalの2倍（100ms）。200ms待てば削除されるはず
	time.Sleep(200 * time.Millisecond)

	if count := rl.GeneralLimiterCount(); count != 0 {
		t.Errorf("expected 0 general entries after cleanup, got %d", count)
	}
	if count := rl.SignInLimiterCount(); count != 0 {
		t.Errorf("expected 0 sign-in entries after cleanup, got %d", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

// --- ミドルウェアチェーンとの統合テスト ---

func TestRateLimitMiddleware_InChainWithSessionAndCORS(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "rate-limit-session" {
				return &model.Session{
					ID:        "rate-limit-session",
					UserID:    "user-rate-chain",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		SignInRate:      1,
		SignInBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	// CORS -> Session -> RateLimit -> Handler
	handler := NewCORSMiddleware("http://localhost:3000")(
		NewSessionMiddleware(repo)(
			rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userID, _ := UserIDFromContext(r.Context())
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
			}))))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "rate-limit-session"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result().StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := send(); got != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, got, http.StatusOK)
		}
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", got, http.StatusTooManyRequests)
	}
}

// --- 設定値のテスト ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 { // 120/60 = 2
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.SignInRate == 0 {
		t.Error("SignInRate should not be 0")
	}
	if cfg.SignInBurst != 10 {
		t.Errorf("SignInBurst = %d, want 10", cfg.SignInBurst)
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(60, 6)

	if cfg.GeneralRate != 1.0 {
		t.Errorf("GeneralRate = %f, want 1.0", cfg.GeneralRate)
	}
	if cfg.SignInRate != 0.1 {
		t.Errorf("SignInRate = %f, want 0.1", cfg.SignInRate)
	}
	if cfg.GeneralBurst != 60 || cfg.SignInBurst != 6 {
		t.Errorf("bursts = %d/%d, want 60/6", cfg.GeneralBurst, cfg.SignInBurst)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:8080"
	if got := ClientIP(req); got != "203.0.113.5" {
		t.Errorf("ClientIP = %q, want %q", got, "203.0.113.5")
	}

	req.RemoteAddr = "no-port"
	if got := ClientIP(req); got != "no-port" {
		t.Errorf("ClientIP = %q, want %q", got, "no-port")
	}
}
