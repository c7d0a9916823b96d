package favorite

import (
	"strconv"

	"github.com/hitoshi/moviediscovery/internal/docpath"
)

// お気に入りのドキュメント配置。
// favorites/{userId}/movies/{movieId}
const (
	rootCollection  = "favorites"
	movieCollection = "movies"
)

// CollectionPath はユーザーのお気に入りコレクションのパスを返す。
func CollectionPath(userID string) (docpath.Path, error) {
	return docpath.New(rootCollection, userID, movieCollection)
}

// EntryPath は (userID, movieID) に対応するお気に入りドキュメントのパスを返す。
// movieIDをドキュメントIDに使うため、同じ組のエントリは常に同じパスになる。
func EntryPath(userID string, movieID int64) (docpath.Path, error) {
	return docpath.New(rootCollection, userID, movieCollection, strconv.FormatInt(movieID, 10))
}
