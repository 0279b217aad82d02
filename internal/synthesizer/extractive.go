package synthesizer

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"lawrag/internal/chunker"
)

const (
	notFoundExcerptRunes  = 250
	noArticleExcerptRunes = 200
)

// Extractive is a deterministic rule engine. It quotes the article asked
// about when the context holds it and otherwise excerpts the context.
type Extractive struct {
	statuteName string
	shortName   string
	log         zerolog.Logger
}

// NewExtractive creates an extractive synthesizer. Empty names fall back to
// the labor law.
func NewExtractive(statuteName, shortName string, log zerolog.Logger) *Extractive {
	if statuteName == "" {
		statuteName = DefaultStatuteName
	}
	if shortName == "" {
		shortName = DefaultShortName
	}
	return &Extractive{statuteName: statuteName, shortName: shortName, log: log}
}

func (e *Extractive) Name() string { return "extractive" }

func (e *Extractive) Synthesize(_ context.Context, question string, chunks []string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("synthesis failed")
			answer = SafeError
		}
	}()

	ctxText := FormatContext(chunks)
	if tooShort(ctxText) {
		return Fallback
	}

	article := chunker.FirstArticle(question)
	if article == "" {
		excerpt, _ := prefix(ctxText, noArticleExcerptRunes)
		return "根据相关法律条款，" + excerpt + "..."
	}
	for _, line := range strings.Split(ctxText, "\n") {
		if strings.Contains(line, article) {
			return e.statuteName + article + "规定：\n\n" + strings.TrimSpace(line)
		}
	}
	excerpt, cut := prefix(ctxText, notFoundExcerptRunes)
	if cut {
		excerpt += "..."
	}
	return "抱歉，未能找到" + e.shortName + article + "的完整内容。但根据相关法律规定：\n\n" + excerpt
}
