// Package docpath はドキュメントストアの階層パスを扱う。
//
// パスは "/" 区切りのセグメント列で、コレクションとドキュメントが交互に並ぶ。
// セグメント数が奇数ならコレクション、偶数ならドキュメントを指す。
//
//	favorites                     コレクション
//	favorites/u1                  ドキュメント
//	favorites/u1/movies           コレクション
//	favorites/u1/movies/550       ドキュメント
package docpath

import (
	"errors"
	"fmt"
	"strings"
)

// separator はセグメントの区切り文字。
const separator = "/"

// maxSegmentLength は1セグメントの最大バイト長。
const maxSegmentLength = 1500

var (
	// ErrEmptyPath は空のパスを表す。
	ErrEmptyPath = errors.New("docpath: empty path")
	// ErrNotDocument はドキュメントを期待した箇所にコレクションのパスが渡されたことを表す。
	ErrNotDocument = errors.New("docpath: path does not address a document")
	// ErrNotCollection はコレクションを期待した箇所にドキュメントのパスが渡されたことを表す。
	ErrNotCollection = errors.New("docpath: path does not address a collection")
)

// Path は検証済みのドキュメントストアのパス。
// ゼロ値は空のパスで、どの操作にも使えない。
type Path struct {
	segments []string
}

// New はセグメント列からPathを生成する。
// 空セグメント、区切り文字を含むセグメント、"." と ".." は拒否する。
func New(segments ...string) (Path, error) {
	if len(segments) == 0 {
		return Path{}, ErrEmptyPath
	}
	for i, s := range segments {
		if err := validateSegment(s); err != nil {
			return Path{}, fmt.Errorf("docpath: segment %d: %w", i, err)
		}
	}
	copied := make([]string, len(segments))
	copy(copied, segments)
	return Path{segments: copied}, nil
}

// Parse は "/" 区切りの文字列をPathに変換する。先頭・末尾の区切り文字は無視する。
func Parse(s string) (Path, error) {
	trimmed := strings.Trim(s, separator)
	if trimmed == "" {
		return Path{}, ErrEmptyPath
	}
	return New(strings.Split(trimmed, separator)...)
}

// String はパスを "/" 区切りの文字列で返す。
func (p Path) String() string {
	return strings.Join(p.segments, separator)
}

// IsZero は空のパスかどうかを返す。
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

// IsDocument はパスがドキュメントを指すかどうかを返す。
func (p Path) IsDocument() bool {
	return len(p.segments) > 0 && len(p.segments)%2 == 0
}

// IsCollection はパスがコレクションを指すかどうかを返す。
func (p Path) IsCollection() bool {
	return len(p.segments)%2 == 1
}

// ID は最後のセグメントを返す。
func (p Path) ID() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Segments はセグメント列のコピーを返す。
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Parent は1階層上のパスを返す。
// ドキュメントなら所属コレクション、コレクションなら親ドキュメント（ルートの場合はゼロ値）。
func (p Path) Parent() Path {
	if len(p.segments) <= 1 {
		return Path{}
	}
	return Path{segments: p.segments[: len(p.segments)-1 : len(p.segments)-1]}
}

// Child は末尾にセグメントを1つ追加したパスを返す。
func (p Path) Child(id string) (Path, error) {
	if err := validateSegment(id); err != nil {
		return Path{}, fmt.Errorf("docpath: child: %w", err)
	}
	segments := make([]string, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)
	return Path{segments: append(segments, id)}, nil
}

// Doc はコレクションのパスにドキュメントIDを追加したドキュメントパスを返す。
func (p Path) Doc(id string) (Path, error) {
	if !p.IsCollection() {
		return Path{}, ErrNotCollection
	}
	return p.Child(id)
}

// Collection はドキュメントのパスにコレクションIDを追加したコレクションパスを返す。
func (p Path) Collection(id string) (Path, error) {
	if !p.IsDocument() {
		return Path{}, ErrNotDocument
	}
	return p.Child(id)
}

func validateSegment(s string) error {
	switch {
	case s == "":
		return errors.New("empty segment")
	case s == "." || s == "..":
		return fmt.Errorf("reserved segment %q", s)
	case strings.Contains(s, separator):
		return fmt.Errorf("segment %q contains %q", s, separator)
	case len(s) > maxSegmentLength:
		return fmt.Errorf("segment longer than %d bytes", maxSegmentLength)
	}
	return nil
}
