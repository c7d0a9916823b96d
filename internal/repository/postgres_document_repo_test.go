package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/moviediscovery/internal/docpath"
)

func mustPath(t *testing.T, s string) docpath.Path {
	t.Helper()
	p, err := docpath.Parse(s)
	if err != nil {
		t.Fatalf("docpath.Parse(%q): %v", s, err)
	}
	return p
}

// DB接続なしで、パス種別の検証が行われることを確認する。
func TestPostgresDocumentRepo_RejectsWrongPathKind(t *testing.T) {
	repo := NewPostgresDocumentRepo(nil)
	ctx := context.Background()
	coll := mustPath(t, "favorites/u1/movies")
	doc := mustPath(t, "favorites/u1/movies/550")

	if _, err := repo.Get(ctx, coll); !errors.Is(err, docpath.ErrNotDocument) {
		t.Errorf("Get(collection) error = %v, want ErrNotDocument", err)
	}
	if _, err := repo.Set(ctx, coll, []byte(`{}`)); !errors.Is(err, docpath.ErrNotDocument) {
		t.Errorf("Set(collection) error = %v, want ErrNotDocument", err)
	}
	if err := repo.Delete(ctx, coll); !errors.Is(err, docpath.ErrNotDocument) {
		t.Errorf("Delete(collection) error = %v, want ErrNotDocument", err)
	}
	if _, err := repo.List(ctx, doc); !errors.Is(err, docpath.ErrNotCollection) {
		t.Errorf("List(document) error = %v, want ErrNotCollection", err)
	}
	if _, err := repo.DeleteCollection(ctx, doc); !errors.Is(err, docpath.ErrNotCollection) {
		t.Errorf("DeleteCollection(document) error = %v, want ErrNotCollection", err)
	}
}

func TestPostgresDocumentRepo_SetGetOverwrite(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresDocumentRepo(db)
	ctx := context.Background()
	path := mustPath(t, "favorites/u1/movies/550")

	first, err := repo.Set(ctx, path, []byte(`{"title":"Fight Club"}`))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if first.Parent != "favorites/u1/movies" {
		t.Errorf("Parent = %q, want %q", first.Parent, "favorites/u1/movies")
	}

	second, err := repo.Set(ctx, path, []byte(`{"title":"Fight Club (1999)"}`))
	if err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("上書きでcreated_atが変わった: %v -> %v", first.CreatedAt, second.CreatedAt)
	}

	got, err := repo.Get(ctx, path)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if string(got.Data) != `{"title": "Fight Club (1999)"}` {
		t.Errorf("Data = %s", got.Data)
	}

	docs, err := repo.List(ctx, path.Parent())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("上書き後の件数 = %d, want 1", len(docs))
	}
}

func TestPostgresDocumentRepo_DeleteIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresDocumentRepo(db)
	ctx := context.Background()
	path := mustPath(t, "favorites/u1/movies/13")

	if err := repo.Delete(ctx, path); err != nil {
		t.Fatalf("存在しないドキュメントの削除でエラー: %v", err)
	}
	if _, err := repo.Set(ctx, path, []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Delete(ctx, path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := repo.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("削除後にドキュメントが残っている")
	}
}

func TestPostgresDocumentRepo_ListIsScopedToCollection(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresDocumentRepo(db)
	ctx := context.Background()

	for _, p := range []string{
		"favorites/u1/movies/1",
		"favorites/u1/movies/2",
		"favorites/u2/movies/1",
	} {
		if _, err := repo.Set(ctx, mustPath(t, p), []byte(`{}`)); err != nil {
			t.Fatalf("Set(%s): %v", p, err)
		}
	}

	docs, err := repo.List(ctx, mustPath(t, "favorites/u1/movies"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("u1の件数 = %d, want 2", len(docs))
	}
	for _, d := range docs {
		if d.Parent != "favorites/u1/movies" {
			t.Errorf("他ユーザーのドキュメントが混入: %s", d.Path)
		}
	}

	n, err := repo.DeleteCollection(ctx, mustPath(t, "favorites/u1/movies"))
	if err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if n != 2 {
		t.Errorf("削除件数 = %d, want 2", n)
	}

	rest, err := repo.List(ctx, mustPath(t, "favorites/u2/movies"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("u2のドキュメントが削除された: %d", len(rest))
	}
}
