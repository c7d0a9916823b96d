// Package favorite はユーザーごとのお気に入り映画ストアを提供する。
// お気に入りはドキュメントストアの favorites/{userId}/movies/{movieId} に保存し、
// 映画IDをキーにすることで (ユーザー, 映画) ごとに高々1件を保証する。
package favorite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/moviediscovery/internal/docpath"
	"github.com/hitoshi/moviediscovery/internal/metrics"
	"github.com/hitoshi/moviediscovery/internal/model"
	"github.com/hitoshi/moviediscovery/internal/repository"
)

// DefaultOperationTimeout は1操作あたりのデフォルトのタイムアウト。
const DefaultOperationTimeout = 10 * time.Second

// 操作種別（メトリクスのラベル値）。
const (
	opIsFavorite = "is_favorite"
	opAdd        = "add"
	opRemove     = "remove"
	opList       = "list"
	opPurge      = "purge"
)

// Recorder はお気に入り操作の結果を記録するインターフェース。
// metrics.Collector が実装する。
type Recorder interface {
	RecordFavoriteOperation(op, result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordFavoriteOperation(string, string) {}

// entryDocument はお気に入りドキュメントの保存形式。
type entryDocument struct {
	Title  string      `json:"title"`
	UserID string      `json:"userId"`
	Movie  model.Movie `json:"movie"`
}

// Store はお気に入りストア。
// ユーザーIDは呼び出しごとに明示的に受け取り、空文字列はセッションなしを表す。
// 読み取り系はセッションなしを空の結果として扱い、書き込み系はNOT_AUTHENTICATEDで失敗する。
type Store struct {
	docs      repository.DocumentRepository
	recorder  Recorder
	logger    *slog.Logger
	opTimeout time.Duration
}

// NewStore は新しいStoreを生成する。
// recorderがnilの場合は記録しない。opTimeoutが0以下の場合はDefaultOperationTimeoutを使う。
func NewStore(docs repository.DocumentRepository, recorder Recorder, logger *slog.Logger, opTimeout time.Duration) *Store {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = DefaultOperationTimeout
	}
	return &Store{
		docs:      docs,
		recorder:  recorder,
		logger:    logger,
		opTimeout: opTimeout,
	}
}

// IsFavorite は (userID, movieID) のお気に入りが存在するかを返す。
// セッションなしの場合はバックエンドに問い合わせずfalseを返す。
// バックエンドのエラーやタイムアウトはWARNログに残してfalseを返す。
func (s *Store) IsFavorite(ctx context.Context, userID string, movieID int64) bool {
	if userID == "" || movieID <= 0 {
		return false
	}

	path, err := EntryPath(userID, movieID)
	if err != nil {
		s.logger.Warn("お気に入りのパス生成に失敗しました",
			slog.String("user_id", userID),
			slog.Int64("movie_id", movieID),
			slog.String("error", err.Error()),
		)
		return false
	}

	on, err := s.lookup(ctx, path)
	if err != nil {
		s.logger.Warn("お気に入り状態の取得に失敗したためfalseとして扱います",
			slog.String("user_id", userID),
			slog.Int64("movie_id", movieID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return on
}

// Contains は (userID, movieID) のお気に入りが存在するかを返す。
// IsFavoriteと異なり、バックエンドのエラーはそのまま返す。
func (s *Store) Contains(ctx context.Context, userID string, movieID int64) (bool, error) {
	if userID == "" {
		return false, model.NewNotAuthenticatedError()
	}
	if movieID <= 0 {
		return false, model.NewInvalidMovieError("id must be a positive integer")
	}

	path, err := EntryPath(userID, movieID)
	if err != nil {
		return false, fmt.Errorf("お気に入りのパス生成に失敗しました: %w", err)
	}

	on, err := s.lookup(ctx, path)
	if err != nil {
		return false, fmt.Errorf("お気に入り状態の取得に失敗しました: %w", err)
	}
	return on, nil
}

// lookup はパスのドキュメント有無を取得し、結果をメトリクスに記録する。
func (s *Store) lookup(ctx context.Context, path docpath.Path) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	doc, err := s.docs.Get(ctx, path)
	if err != nil {
		s.recorder.RecordFavoriteOperation(opIsFavorite, metrics.ResultFailure)
		return false, err
	}
	s.recorder.RecordFavoriteOperation(opIsFavorite, metrics.ResultSuccess)
	return doc != nil, nil
}

// Add は映画をお気に入りに追加する。
// 既存エントリは丸ごと上書きするため、同じ映画を繰り返し追加しても1件のまま。
func (s *Store) Add(ctx context.Context, userID string, movie model.Movie) (*model.FavoriteEntry, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	if movie.ID <= 0 {
		return nil, model.NewInvalidMovieError("id must be a positive integer")
	}

	path, err := EntryPath(userID, movie.ID)
	if err != nil {
		return nil, fmt.Errorf("お気に入りのパス生成に失敗しました: %w", err)
	}

	data, err := json.Marshal(entryDocument{
		Title:  movie.Title,
		UserID: userID,
		Movie:  movie,
	})
	if err != nil {
		return nil, fmt.Errorf("お気に入りのエンコードに失敗しました: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	doc, err := s.docs.Set(ctx, path, data)
	if err != nil {
		s.recorder.RecordFavoriteOperation(opAdd, metrics.ResultFailure)
		return nil, fmt.Errorf("お気に入りの追加に失敗しました: %w", err)
	}
	s.recorder.RecordFavoriteOperation(opAdd, metrics.ResultSuccess)

	return &model.FavoriteEntry{
		Path:      doc.Path,
		UserID:    userID,
		Title:     movie.Title,
		Movie:     movie,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Remove はお気に入りから映画を削除する。
// 存在しないエントリの削除は成功として扱う。
func (s *Store) Remove(ctx context.Context, userID string, movieID int64) error {
	if userID == "" {
		return model.NewNotAuthenticatedError()
	}
	if movieID <= 0 {
		return model.NewInvalidMovieError("id must be a positive integer")
	}

	path, err := EntryPath(userID, movieID)
	if err != nil {
		return fmt.Errorf("お気に入りのパス生成に失敗しました: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.docs.Delete(ctx, path); err != nil {
		s.recorder.RecordFavoriteOperation(opRemove, metrics.ResultFailure)
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	s.recorder.RecordFavoriteOperation(opRemove, metrics.ResultSuccess)

	return nil
}

// List はユーザーの全お気に入りを返す。
// セッションなしの場合はエラーにせず空のスライスを返す。
// 順序は保証しない（現在の実装では作成日時の降順）。
func (s *Store) List(ctx context.Context, userID string) ([]model.FavoriteEntry, error) {
	if userID == "" {
		return []model.FavoriteEntry{}, nil
	}

	collection, err := CollectionPath(userID)
	if err != nil {
		return nil, fmt.Errorf("お気に入りのパス生成に失敗しました: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	docs, err := s.docs.List(ctx, collection)
	if err != nil {
		s.recorder.RecordFavoriteOperation(opList, metrics.ResultFailure)
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	s.recorder.RecordFavoriteOperation(opList, metrics.ResultSuccess)

	entries := make([]model.FavoriteEntry, 0, len(docs))
	for _, doc := range docs {
		var stored entryDocument
		if err := json.Unmarshal(doc.Data, &stored); err != nil {
			// 壊れたドキュメントは一覧全体を失敗させずに読み飛ばす
			s.logger.Warn("お気に入りドキュメントのデコードに失敗しました",
				slog.String("path", doc.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		entries = append(entries, model.FavoriteEntry{
			Path:      doc.Path,
			UserID:    stored.UserID,
			Title:     stored.Title,
			Movie:     stored.Movie,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}

	return entries, nil
}

// Toggle はお気に入り状態を反転し、反転後の状態を返す。
// 状態の確認と書き込みは別々の呼び出しで、両者の間の原子性はない。
// 状態の確認に失敗した場合は書き込みを行わず、エラーを返す。
func (s *Store) Toggle(ctx context.Context, userID string, movie model.Movie) (bool, error) {
	on, err := s.Contains(ctx, userID, movie.ID)
	if err != nil {
		return false, err
	}

	if on {
		if err := s.Remove(ctx, userID, movie.ID); err != nil {
			return true, err
		}
		return false, nil
	}

	if _, err := s.Add(ctx, userID, movie); err != nil {
		return false, err
	}
	return true, nil
}

// Purge はユーザーのお気に入りをすべて削除し、削除件数を返す。退会処理で使う。
func (s *Store) Purge(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, model.NewNotAuthenticatedError()
	}

	collection, err := CollectionPath(userID)
	if err != nil {
		return 0, fmt.Errorf("お気に入りのパス生成に失敗しました: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	n, err := s.docs.DeleteCollection(ctx, collection)
	if err != nil {
		s.recorder.RecordFavoriteOperation(opPurge, metrics.ResultFailure)
		return 0, fmt.Errorf("お気に入りの一括削除に失敗しました: %w", err)
	}
	s.recorder.RecordFavoriteOperation(opPurge, metrics.ResultSuccess)
	return n, nil
}
