// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ChatContentSanitizer は会議チャットへ転送するメッセージ本文のHTMLをサニタイズする。
// bluemondayの許可リストポリシーで、Teamsチャットで表示できる安全なタグのみを通過させる。
package security

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ChatContentSanitizer はチャットメッセージ本文のサニタイズ機能のインターフェース。
type ChatContentSanitizer interface {
	// Sanitize はHTML文字列をサニタイズする。
	Sanitize(rawHTML string) string
	// SanitizeMessage はchatMessageリソースのJSONを受け取り、
	// body.contentTypeがhtmlの場合のみbody.contentをサニタイズしたJSONを返す。
	// それ以外のフィールドはそのまま保持する。
	SanitizeMessage(message json.RawMessage) (json.RawMessage, error)
}

type chatSanitizer struct {
	policy *bluemonday.Policy
}

// NewChatContentSanitizer はChatContentSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, div, span, b, i, u, strong, em, ul, ol, li, blockquote, pre, code
//   - aタグ: httpsのhrefのみ、target="_blank" と rel="noopener noreferrer" を付与
//   - script, iframe, style, img および全てのon*イベント属性は除去
func NewChatContentSanitizer() *chatSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "div", "span",
		"b", "i", "u", "strong", "em",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &chatSanitizer{policy: p}
}

var _ ChatContentSanitizer = (*chatSanitizer)(nil)

// Sanitize はHTML文字列をサニタイズして安全なHTMLを返す。
func (s *chatSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// SanitizeMessage はメッセージJSONのHTML本文をサニタイズする。
func (s *chatSanitizer) SanitizeMessage(message json.RawMessage) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(message, &doc); err != nil {
		return nil, fmt.Errorf("decode chat message: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("chat message must be a JSON object")
	}

	body, ok := doc["body"].(map[string]any)
	if !ok {
		return message, nil
	}
	contentType, _ := body["contentType"].(string)
	content, isString := body["content"].(string)
	if !isString || !strings.EqualFold(contentType, "html") {
		return message, nil
	}

	body["content"] = s.Sanitize(content)
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode chat message: %w", err)
	}
	return out, nil
}
