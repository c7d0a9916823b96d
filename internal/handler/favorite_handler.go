package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/moviediscovery/internal/middleware"
	"github.com/hitoshi/moviediscovery/internal/model"
)

// FavoriteStore はお気に入りハンドラーが必要とするストアのインターフェース。
// favorite.Storeが実装する。
type FavoriteStore interface {
	IsFavorite(ctx context.Context, userID string, movieID int64) bool
	Contains(ctx context.Context, userID string, movieID int64) (bool, error)
	Add(ctx context.Context, userID string, movie model.Movie) (*model.FavoriteEntry, error)
	Remove(ctx context.Context, userID string, movieID int64) error
	List(ctx context.Context, userID string) ([]model.FavoriteEntry, error)
	Toggle(ctx context.Context, userID string, movie model.Movie) (bool, error)
}

// MovieLookup はトグル時にボディがない場合の映画取得に使うインターフェース。
type MovieLookup interface {
	GetMovie(ctx context.Context, id int64) (*model.Movie, error)
}

// FavoriteHandler はお気に入り管理のHTTPハンドラー。
type FavoriteHandler struct {
	store    FavoriteStore
	movies   MovieLookup
	imageURL func(*string) string
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
// imageURLはポスター画像URLの組み立てに使う（catalog.Client.ImageURL）。
func NewFavoriteHandler(store FavoriteStore, movies MovieLookup, imageURL func(*string) string) *FavoriteHandler {
	return &FavoriteHandler{
		store:    store,
		movies:   movies,
		imageURL: imageURL,
	}
}

type favoriteResponse struct {
	Movie     movieResponse `json:"movie"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type favoriteListResponse struct {
	Favorites []favoriteResponse `json:"favorites"`
}

type favoriteStatusResponse struct {
	MovieID    int64 `json:"movie_id"`
	IsFavorite bool  `json:"is_favorite"`
}

// List はユーザーのお気に入り一覧を返す。セッションなしの場合は空の一覧を返す。
// GET /api/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context(), middleware.OptionalUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	favorites := make([]favoriteResponse, 0, len(entries))
	for _, e := range entries {
		favorites = append(favorites, h.toFavoriteResponse(e))
	}
	writeJSON(w, http.StatusOK, favoriteListResponse{Favorites: favorites})
}

// Status は映画がお気に入り登録済みかを返す。セッションなしの場合はfalse。
// GET /api/favorites/{movieId}
func (h *FavoriteHandler) Status(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(w, chi.URLParam(r, "movieId"))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, favoriteStatusResponse{
		MovieID:    movieID,
		IsFavorite: h.store.IsFavorite(r.Context(), middleware.OptionalUserID(r.Context()), movieID),
	})
}

// Add は映画をお気に入りに登録する。登録済みの場合は内容を上書きする。
// ボディはカタログから取得したMovieで、idはパスと一致している必要がある。
// PUT /api/favorites/{movieId}
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(w, chi.URLParam(r, "movieId"))
	if !ok {
		return
	}

	var movie model.Movie
	if err := decodeJSONBody(w, r, &movie); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}
	if movie.ID != movieID {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMovieError("movie id does not match the path"))
		return
	}

	entry, err := h.store.Add(r.Context(), middleware.OptionalUserID(r.Context()), movie)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toFavoriteResponse(*entry))
}

// Remove は映画をお気に入りから削除する。未登録でも成功する。
// DELETE /api/favorites/{movieId}
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(w, chi.URLParam(r, "movieId"))
	if !ok {
		return
	}

	if err := h.store.Remove(r.Context(), middleware.OptionalUserID(r.Context()), movieID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Toggle はお気に入り状態を反転し、反転後の状態を返す。
// ボディにMovieがない場合は現在の状態を確認し、追加するときだけカタログから取得する。
// POST /api/favorites/{movieId}/toggle
func (h *FavoriteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	movieID, ok := parseMovieID(w, chi.URLParam(r, "movieId"))
	if !ok {
		return
	}

	var movie model.Movie
	err := decodeJSONBody(w, r, &movie)
	switch {
	case err == nil:
		if movie.ID != movieID {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMovieError("movie id does not match the path"))
			return
		}
	case isEmptyBody(err):
		h.toggleByID(w, r, movieID)
		return
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	isFavorite, err := h.store.Toggle(r.Context(), middleware.OptionalUserID(r.Context()), movie)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, favoriteStatusResponse{
		MovieID:    movieID,
		IsFavorite: isFavorite,
	})
}

// toggleByID はボディなしのトグルを処理する。
// 削除にはMovieが不要なため、カタログはお気に入りにない場合だけ参照する。
func (h *FavoriteHandler) toggleByID(w http.ResponseWriter, r *http.Request, movieID int64) {
	ctx := r.Context()
	userID := middleware.OptionalUserID(ctx)

	on, err := h.store.Contains(ctx, userID, movieID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if on {
		if err := h.store.Remove(ctx, userID, movieID); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, favoriteStatusResponse{MovieID: movieID, IsFavorite: false})
		return
	}

	movie, err := h.movies.GetMovie(ctx, movieID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if _, err := h.store.Add(ctx, userID, *movie); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteStatusResponse{MovieID: movieID, IsFavorite: true})
}

func (h *FavoriteHandler) toFavoriteResponse(e model.FavoriteEntry) favoriteResponse {
	return favoriteResponse{
		Movie:     toMovieResponse(e.Movie, h.imageURL),
		Title:     e.Title,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
