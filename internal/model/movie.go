// Package model はドメインモデルを定義する。
package model

import "time"

// Movie は映画カタログ(TMDB)から取得した映画データを表す。
// JSONタグはTMDBのレスポンス形式に合わせており、保存したコピーは元のDTOと同じ形になる。
// お気に入りストアはMovieを変更せず、丸ごと保存・取得する。
type Movie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  *string `json:"release_date"`
	Overview     string  `json:"overview"`
}

// ReleaseYear はリリース日の先頭4文字（年）を返す。不明な場合は"N/A"を返す。
func (m Movie) ReleaseYear() string {
	if m.ReleaseDate == nil || len(*m.ReleaseDate) < 4 {
		return "N/A"
	}
	return (*m.ReleaseDate)[:4]
}

// FavoriteEntry はユーザーがお気に入り登録した映画を表す。
// (UserID, Movie.ID) の組ごとに高々1件だけ存在する。
type FavoriteEntry struct {
	Path      string
	UserID    string
	Title     string
	Movie     Movie
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document はパスで指定するJSONドキュメントを表す。
// Parentはドキュメントが属するコレクションのパス。
type Document struct {
	Path      string
	Parent    string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
