// Package synthesizer turns retrieved statute articles into answers that
// never leave the retrieved text.
package synthesizer

import (
	"strings"
	"unicode/utf8"
)

const (
	// Fallback is returned when no usable context was retrieved.
	Fallback = "根据提供的法律法规信息，无法找到与您问题直接相关的具体条款。建议您咨询专业的法律顾问获取更准确的信息。"
	// SafeError is returned when answering failed internally.
	SafeError = "抱歉，我无法处理您的问题。请确保您的问题清晰明确，并尝试重新提问。"

	// MinContextRunes is the shortest context worth answering from.
	MinContextRunes = 10

	DefaultStatuteName = "《中华人民共和国劳动法》"
	DefaultShortName   = "《劳动法》"
)

// FormatContext flattens each chunk onto a single line and separates chunks
// with a blank line.
func FormatContext(chunks []string) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		c = strings.ReplaceAll(c, "\r\n", " ")
		c = strings.ReplaceAll(c, "\n", " ")
		parts = append(parts, c)
	}
	return strings.Join(parts, "\n\n")
}

// tooShort reports whether the context is below the answering floor.
func tooShort(context string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(context)) < MinContextRunes
}

// prefix returns the first n runes of s and whether s was cut.
func prefix(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	r := []rune(s)
	return string(r[:n]), true
}
