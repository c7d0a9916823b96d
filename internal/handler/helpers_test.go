package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/moviediscovery/internal/catalog"
	"github.com/hitoshi/moviediscovery/internal/middleware"
	"github.com/hitoshi/moviediscovery/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	signUpFn      func(ctx context.Context, email, password, confirmation string) (*model.Session, error)
	signInFn      func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFn     func(ctx context.Context, sessionID string) error
	currentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password, confirmation string) (*model.Session, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, confirmation)
	}
	return nil, nil
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, sessionID)
	}
	return nil, model.NewNotAuthenticatedError()
}

type mockCatalog struct {
	fetchTrendingFn func(ctx context.Context, page int) (*catalog.Page, error)
	searchMoviesFn  func(ctx context.Context, query string, page int) (*catalog.Page, error)
	getMovieFn      func(ctx context.Context, id int64) (*model.Movie, error)
}

func (m *mockCatalog) FetchTrending(ctx context.Context, page int) (*catalog.Page, error) {
	if m.fetchTrendingFn != nil {
		return m.fetchTrendingFn(ctx, page)
	}
	return &catalog.Page{Page: page, Results: []model.Movie{}}, nil
}

func (m *mockCatalog) SearchMovies(ctx context.Context, query string, page int) (*catalog.Page, error) {
	if m.searchMoviesFn != nil {
		return m.searchMoviesFn(ctx, query, page)
	}
	return &catalog.Page{Page: page, Results: []model.Movie{}}, nil
}

func (m *mockCatalog) GetMovie(ctx context.Context, id int64) (*model.Movie, error) {
	if m.getMovieFn != nil {
		return m.getMovieFn(ctx, id)
	}
	return nil, model.NewMovieNotFoundError(id)
}

// ImageURL はテスト用に固定のベースURLとプレースホルダーを使う。
func (m *mockCatalog) ImageURL(path *string) string {
	if path == nil || *path == "" {
		return "https://placeholder.test/150"
	}
	return "https://images.test/w500" + *path
}

type mockFavoriteStore struct {
	isFavoriteFn func(ctx context.Context, userID string, movieID int64) bool
	containsFn   func(ctx context.Context, userID string, movieID int64) (bool, error)
	addFn        func(ctx context.Context, userID string, movie model.Movie) (*model.FavoriteEntry, error)
	removeFn     func(ctx context.Context, userID string, movieID int64) error
	listFn       func(ctx context.Context, userID string) ([]model.FavoriteEntry, error)
	toggleFn     func(ctx context.Context, userID string, movie model.Movie) (bool, error)
}

func (m *mockFavoriteStore) IsFavorite(ctx context.Context, userID string, movieID int64) bool {
	if m.isFavoriteFn != nil {
		return m.isFavoriteFn(ctx, userID, movieID)
	}
	return false
}

func (m *mockFavoriteStore) Contains(ctx context.Context, userID string, movieID int64) (bool, error) {
	if m.containsFn != nil {
		return m.containsFn(ctx, userID, movieID)
	}
	return false, nil
}

func (m *mockFavoriteStore) Add(ctx context.Context, userID string, movie model.Movie) (*model.FavoriteEntry, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, movie)
	}
	return &model.FavoriteEntry{UserID: userID, Title: movie.Title, Movie: movie}, nil
}

func (m *mockFavoriteStore) Remove(ctx context.Context, userID string, movieID int64) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, movieID)
	}
	return nil
}

func (m *mockFavoriteStore) List(ctx context.Context, userID string) ([]model.FavoriteEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []model.FavoriteEntry{}, nil
}

func (m *mockFavoriteStore) Toggle(ctx context.Context, userID string, movie model.Movie) (bool, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, userID, movie)
	}
	return true, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withSession はテスト用にセッション情報を注入するヘルパー。
func withSession(r *http.Request, session *model.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), session, false))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

// fightClub はテストで共通に使う映画データ。
func fightClub() model.Movie {
	return model.Movie{
		ID:           550,
		Title:        "Fight Club",
		PosterPath:   strPtr("/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg"),
		BackdropPath: nil,
		VoteAverage:  8.4,
		ReleaseDate:  strPtr("1999-10-15"),
		Overview:     "A ticking-time-bomb insomniac and a slippery soap salesman channel primal male aggression.",
	}
}
