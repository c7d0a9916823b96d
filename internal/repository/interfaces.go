// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/moviediscovery/internal/docpath"
	"github.com/hitoshi/moviediscovery/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// DocumentRepository はパスで指定するJSONドキュメントの永続化インターフェース。
// お気に入りストアのバックエンドとなるドキュメントデータベースを表す。
type DocumentRepository interface {
	// Get は指定パスのドキュメントを取得する。存在しない場合はnilを返す。
	Get(ctx context.Context, path docpath.Path) (*model.Document, error)

	// Set は指定パスにドキュメントを書き込む。
	// 既存ドキュメントは丸ごと上書きし、created_atは維持する。
	Set(ctx context.Context, path docpath.Path, data []byte) (*model.Document, error)

	// Delete は指定パスのドキュメントを削除する。
	// 存在しないドキュメントの削除はエラーにしない。
	Delete(ctx context.Context, path docpath.Path) error

	// List はコレクション直下の全ドキュメントを返す。
	// 順序は作成日時の降順だが、呼び出し側は順序に依存してはならない。
	List(ctx context.Context, collection docpath.Path) ([]*model.Document, error)

	// DeleteCollection はコレクション直下の全ドキュメントを削除し、削除件数を返す。
	DeleteCollection(ctx context.Context, collection docpath.Path) (int64, error)
}
