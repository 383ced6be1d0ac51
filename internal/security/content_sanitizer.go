// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はチャットアシスタントの応答HTMLをサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// チャットアシスタントの応答生成時に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 応答が含む強調タグ（strong, em, br）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string

	// StripTags はすべてのHTMLタグを除去してプレーンテキストを返す。
	// 利用者が入力したチャットメッセージの正規化に使用する。
	StripTags(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	replyPolicy  *bluemonday.Policy
	strictPolicy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 応答用: strong, em, br のみ許可
//   - 入力用: 全タグ除去（StrictPolicy）
//   - script, iframe, style および全てのon*イベント属性は常に除去される
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("strong", "em", "br")

	return &contentSanitizer{
		replyPolicy:  p,
		strictPolicy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.replyPolicy.Sanitize(rawHTML)
}

// StripTags はすべてのHTMLタグを除去してプレーンテキストを返す。
func (s *contentSanitizer) StripTags(raw string) string {
	return s.strictPolicy.Sanitize(raw)
}
