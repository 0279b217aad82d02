// Package citation derives display records for retrieved articles.
package citation

import (
	"strings"
	"unicode/utf8"

	"lawrag/internal/chunker"
	"lawrag/internal/domain"
)

const (
	// GenericArticle labels a match that does not open with an article marker.
	GenericArticle = "相关条款"
	// UnknownSource labels a match without a source file.
	UnknownSource = "未知来源"
	// DisplayRunes is how much of an article the chat surfaces show.
	DisplayRunes = 500
)

// FormatSources builds one citation per match, in match order. It looks
// only at the matches and is unaffected by what the synthesizer answered.
func FormatSources(matches []domain.Match) []domain.Citation {
	out := make([]domain.Citation, 0, len(matches))
	for _, m := range matches {
		content := strings.Join(strings.Fields(m.Text), " ")
		article := chunker.LeadingArticle(content)
		if article == "" {
			article = GenericArticle
		}
		source := m.Source
		if source == "" {
			source = UnknownSource
		}
		out = append(out, domain.Citation{Article: article, Content: content, Source: source})
	}
	return out
}

// Truncate cuts content to n runes, marking the cut with "...".
func Truncate(content string, n int) string {
	if n <= 0 || utf8.RuneCountInString(content) <= n {
		return content
	}
	return string([]rune(content)[:n]) + "..."
}
