package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/moviediscovery/internal/catalog"
	"github.com/hitoshi/moviediscovery/internal/middleware"
	"github.com/hitoshi/moviediscovery/internal/model"
)

// MovieCatalog は映画ハンドラーが必要とするカタログのインターフェース。
// catalog.Clientが実装する。
type MovieCatalog interface {
	FetchTrending(ctx context.Context, page int) (*catalog.Page, error)
	SearchMovies(ctx context.Context, query string, page int) (*catalog.Page, error)
	GetMovie(ctx context.Context, id int64) (*model.Movie, error)
	ImageURL(path *string) string
}

// FavoriteChecker は映画詳細でお気に入り状態を判定するためのインターフェース。
type FavoriteChecker interface {
	IsFavorite(ctx context.Context, userID string, movieID int64) bool
}

// MovieHandler は映画カタログ閲覧のHTTPハンドラー。
type MovieHandler struct {
	catalog   MovieCatalog
	favorites FavoriteChecker
}

// NewMovieHandler はMovieHandlerを生成する。
func NewMovieHandler(catalog MovieCatalog, favorites FavoriteChecker) *MovieHandler {
	return &MovieHandler{
		catalog:   catalog,
		favorites: favorites,
	}
}

// movieResponse はMovieに画像URLとリリース年を加えたレスポンス。
type movieResponse struct {
	model.Movie
	PosterURL   string `json:"poster_url"`
	BackdropURL string `json:"backdrop_url"`
	ReleaseYear string `json:"release_year"`
}

type movieDetailResponse struct {
	movieResponse
	IsFavorite bool `json:"is_favorite"`
}

type moviePageResponse struct {
	Page         int             `json:"page"`
	Results      []movieResponse `json:"results"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
}

// Trending は本日のトレンド映画を返す。
// GET /api/movies/trending?page=1
func (h *MovieHandler) Trending(w http.ResponseWriter, r *http.Request) {
	page, err := catalog.ParsePage(r.URL.Query().Get("page"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.catalog.FetchTrending(r.Context(), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toPageResponse(result))
}

// Search はタイトルで映画を検索する。qが空の場合は空の結果を返す。
// GET /api/movies/search?q=fight&page=1
func (h *MovieHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := catalog.ParsePage(r.URL.Query().Get("page"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.catalog.SearchMovies(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toPageResponse(result))
}

// Detail は映画の詳細とお気に入り状態を返す。
// 表示のたびにストアを参照するため、他端末での変更も反映される。
// GET /api/movies/{id}
func (h *MovieHandler) Detail(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	movie, err := h.catalog.GetMovie(r.Context(), movieID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	userID := middleware.OptionalUserID(r.Context())
	writeJSON(w, http.StatusOK, movieDetailResponse{
		movieResponse: h.toMovieResponse(*movie),
		IsFavorite:    h.favorites.IsFavorite(r.Context(), userID, movie.ID),
	})
}

func (h *MovieHandler) toPageResponse(p *catalog.Page) moviePageResponse {
	results := make([]movieResponse, 0, len(p.Results))
	for _, m := range p.Results {
		results = append(results, h.toMovieResponse(m))
	}
	return moviePageResponse{
		Page:         p.Page,
		Results:      results,
		TotalPages:   p.TotalPages,
		TotalResults: p.TotalResults,
	}
}

func (h *MovieHandler) toMovieResponse(m model.Movie) movieResponse {
	return toMovieResponse(m, h.catalog.ImageURL)
}

func toMovieResponse(m model.Movie, imageURL func(*string) string) movieResponse {
	return movieResponse{
		Movie:       m,
		PosterURL:   imageURL(m.PosterPath),
		BackdropURL: imageURL(m.BackdropPath),
		ReleaseYear: m.ReleaseYear(),
	}
}

// parseMovieID はパスパラメータの映画IDを解釈する。
// 正の整数でない場合は400を書き込み、falseを返す。
func parseMovieID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMovieError("movie id must be a positive integer"))
		return 0, false
	}
	return id, true
}
