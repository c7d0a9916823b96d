package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/moviediscovery/internal/metrics"
	"github.com/hitoshi/moviediscovery/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPRecorder      middleware.HTTPRecorder // nilの場合はHTTPメトリクスを記録しない
	Logger            *slog.Logger            // nilの場合はリクエストログを出力しない

	// 運用
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer // nilの場合は/metricsを公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 映画カタログ
	Catalog MovieCatalog

	// お気に入り
	Favorites FavoriteStore

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RealIP → SecurityHeaders → Logging → Metrics → CORS → CSRF
//	  → Session(Optional|Required) → RateLimit
//
// サインインにはIP単位のレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(chimw.RealIP)
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
		HSTS: deps.AuthConfig.CookieSecure,
	}))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	movieHandler := NewMovieHandler(deps.Catalog, deps.Favorites)
	favHandler := NewFavoriteHandler(deps.Favorites, deps.Catalog, deps.Catalog.ImageURL)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	optionalSession := middleware.NewOptionalSessionMiddleware(deps.SessionFinder)
	requiredSession := middleware.NewSessionMiddleware(deps.SessionFinder)

	// --- 運用エンドポイント ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	// --- 認証ルート ---
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.GeneralMiddleware()).Post("/signup", authHandler.SignUp)
		r.With(deps.RateLimiter.SignInMiddleware()).Post("/signin", authHandler.SignIn)
		r.Post("/signout", authHandler.SignOut)
		r.With(requiredSession).Get("/me", authHandler.Me)
	})

	// --- セッション任意のルート（匿名は空の結果） ---
	r.Group(func(r chi.Router) {
		r.Use(optionalSession)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/movies", func(r chi.Router) {
			r.Get("/trending", movieHandler.Trending)
			r.Get("/search", movieHandler.Search)
			r.Get("/{id}", movieHandler.Detail)
		})

		r.Get("/api/favorites", favHandler.List)
		r.Get("/api/favorites/{movieId}", favHandler.Status)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(requiredSession)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Put("/api/favorites/{movieId}", favHandler.Add)
		r.Delete("/api/favorites/{movieId}", favHandler.Remove)
		r.Post("/api/favorites/{movieId}/toggle", favHandler.Toggle)

		r.Delete("/api/users/me", userHandler.Withdraw)
	})

	return r
}
