package markdown

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Service renders ticket text.
type Service interface {
	ToHTML(markdown string) (string, error)
	ToHTMLSanitized(markdown string) (string, error)
	Sanitize(htmlContent string) string
	PlainText(input string) string
}

type service struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewService builds a GFM renderer with a UGC sanitizing policy.
func NewService() Service {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Linkify,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")

	return &service{md: md, policy: policy, strict: bluemonday.StrictPolicy()}
}

func (s *service) ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return buf.String(), nil
}

func (s *service) Sanitize(htmlContent string) string {
	return s.policy.Sanitize(htmlContent)
}

func (s *service) ToHTMLSanitized(markdown string) (string, error) {
	rendered, err := s.ToHTML(markdown)
	if err != nil {
		return "", err
	}
	return s.Sanitize(rendered), nil
}

// PlainText strips all markup and returns unescaped text.
func (s *service) PlainText(input string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(s.strict.Sanitize(input)))
}
