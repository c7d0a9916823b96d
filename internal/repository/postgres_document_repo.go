package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/moviediscovery/internal/docpath"
	"github.com/hitoshi/moviediscovery/internal/model"
)

// PostgresDocumentRepo はPostgreSQLのJSONBカラムを使ったドキュメントストア。
// ドキュメントはフルパスを主キー、所属コレクションのパスをparentとして保存する。
type PostgresDocumentRepo struct {
	db *sql.DB
}

// NewPostgresDocumentRepo はPostgresDocumentRepoを生成する。
func NewPostgresDocumentRepo(db *sql.DB) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{db: db}
}

// Get は指定パスのドキュメントを取得する。存在しない場合はnilを返す。
func (r *PostgresDocumentRepo) Get(ctx context.Context, path docpath.Path) (*model.Document, error) {
	if !path.IsDocument() {
		return nil, fmt.Errorf("get %q: %w", path, docpath.ErrNotDocument)
	}

	doc := &model.Document{}
	err := r.db.QueryRowContext(ctx,
		`SELECT path, parent, data, created_at, updated_at FROM documents WHERE path = $1`,
		path.String(),
	).Scan(&doc.Path, &doc.Parent, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの取得に失敗しました: %w", err)
	}

	return doc, nil
}

// Set は指定パスにドキュメントを書き込む。
// path の UNIQUE 制約を利用した INSERT ON CONFLICT で上書きし、created_at は維持する。
func (r *PostgresDocumentRepo) Set(ctx context.Context, path docpath.Path, data []byte) (*model.Document, error) {
	if !path.IsDocument() {
		return nil, fmt.Errorf("set %q: %w", path, docpath.ErrNotDocument)
	}

	now := time.Now().UTC()
	doc := &model.Document{
		Path:   path.String(),
		Parent: path.Parent().String(),
		Data:   data,
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO documents (path, parent, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (path) DO UPDATE SET
		     data = EXCLUDED.data,
		     updated_at = EXCLUDED.updated_at
		 RETURNING created_at, updated_at`,
		doc.Path, doc.Parent, data, now,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの書き込みに失敗しました: %w", err)
	}

	return doc, nil
}

// Delete は指定パスのドキュメントを削除する。存在しない場合もエラーにしない。
func (r *PostgresDocumentRepo) Delete(ctx context.Context, path docpath.Path) error {
	if !path.IsDocument() {
		return fmt.Errorf("delete %q: %w", path, docpath.ErrNotDocument)
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE path = $1`,
		path.String(),
	)
	if err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗しました: %w", err)
	}
	return nil
}

// List はコレクション直下の全ドキュメントを作成日時の降順で返す。
func (r *PostgresDocumentRepo) List(ctx context.Context, collection docpath.Path) ([]*model.Document, error) {
	if !collection.IsCollection() {
		return nil, fmt.Errorf("list %q: %w", collection, docpath.ErrNotCollection)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT path, parent, data, created_at, updated_at
		 FROM documents
		 WHERE parent = $1
		 ORDER BY created_at DESC, path`,
		collection.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("ドキュメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		if err := rows.Scan(&doc.Path, &doc.Parent, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ドキュメント行のスキャンに失敗しました: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ドキュメント一覧の走査に失敗しました: %w", err)
	}

	return docs, nil
}

// DeleteCollection はコレクション直下の全ドキュメントを削除し、削除件数を返す。
func (r *PostgresDocumentRepo) DeleteCollection(ctx context.Context, collection docpath.Path) (int64, error) {
	if !collection.IsCollection() {
		return 0, fmt.Errorf("delete collection %q: %w", collection, docpath.ErrNotCollection)
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE parent = $1`,
		collection.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("コレクションの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ DocumentRepository = (*PostgresDocumentRepo)(nil)
