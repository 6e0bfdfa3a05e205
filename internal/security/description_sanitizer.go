// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizer は写真の説明文やアップロード者名など、
// 利用者が入力したテキストからHTMLタグを除去し、XSS攻撃などの
// セキュリティリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicy（全タグ除去）を使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizer は利用者入力テキストをプレーンテキストに正規化する。
type DescriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerを生成する。
func NewDescriptionSanitizer() *DescriptionSanitizer {
	return &DescriptionSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去し、プレーンテキストを返す。
// タグ除去後にHTMLエンティティを実体に戻すため、"R&D"のような
// 通常テキストはそのまま保存される。説明文は表示層でテキストとして
// 扱われる前提。
func (s *DescriptionSanitizer) Sanitize(input string) string {
	cleaned := s.policy.Sanitize(input)
	cleaned = html.UnescapeString(cleaned)
	return strings.TrimSpace(cleaned)
}
