package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部APIから受け取った文字列からHTMLを取り除く。
// 映画カタログのタイトルとあらすじをクライアントへ返す前に通す。
type TextSanitizer interface {
	// Sanitize はタグをすべて除去したプレーンテキストを返す。
	// 文字参照は元の文字に戻すため、"Tom & Jerry" はそのまま残る。
	Sanitize(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

var _ TextSanitizer = (*textSanitizer)(nil)

// NewTextSanitizer はbluemondayのStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
