package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"lawrag/internal/domain"
)

// markerPattern matches an article marker such as 第60条 or 第一百零七条.
const markerPattern = `第[〇零一二三四五六七八九十百千0-9]+条`

var (
	markerRe  = regexp.MustCompile(markerPattern)
	leadingRe = regexp.MustCompile(`^` + markerPattern)
)

// Segment splits statute text before every article marker. The marker stays
// at the start of the chunk it opens. Text before the first marker becomes
// its own chunk. Fragments are trimmed and empty ones dropped.
func Segment(text string) []string {
	bounds := markerRe.FindAllStringIndex(text, -1)
	starts := make([]int, 0, len(bounds)+1)
	if len(bounds) == 0 || bounds[0][0] != 0 {
		starts = append(starts, 0)
	}
	for _, b := range bounds {
		starts = append(starts, b[0])
	}
	var out []string
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if frag := strings.TrimSpace(text[start:end]); frag != "" {
			out = append(out, frag)
		}
	}
	return out
}

// FirstArticle returns the first article marker found anywhere in s.
func FirstArticle(s string) string {
	return markerRe.FindString(s)
}

// LeadingArticle returns the article marker s starts with, if any.
func LeadingArticle(s string) string {
	return leadingRe.FindString(s)
}

// ArticleChunker splits a statute into one chunk per article.
type ArticleChunker struct {
	keepPreamble bool
}

// NewArticleChunker creates a chunker. When keepPreamble is false, text
// before the first article marker is not emitted.
func NewArticleChunker(keepPreamble bool) *ArticleChunker {
	return &ArticleChunker{keepPreamble: keepPreamble}
}

func (c *ArticleChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, text := range Segment(document.Content) {
		article := LeadingArticle(text)
		if article == "" && !c.keepPreamble {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:       document.Name + "_" + strconv.Itoa(idx),
			Text:     text,
			Source:   document.Name,
			Ordinal:  idx,
			Article:  article,
			Preamble: article == "",
		})
	}
	return chunks, nil
}
