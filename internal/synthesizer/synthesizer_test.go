package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatContext(t *testing.T) {
	got := FormatContext([]string{"  第一条 甲\n乙  ", "", "第二条 丙\r\n丁"})
	assert.Equal(t, "第一条 甲 乙\n\n第二条 丙 丁", got)
}

func TestExtractive_ContextFloor(t *testing.T) {
	s := NewExtractive("", "", zerolog.Nop())
	ctx := context.Background()
	assert.Equal(t, Fallback, s.Synthesize(ctx, "第60条是什么", nil))
	assert.Equal(t, Fallback, s.Synthesize(ctx, "第60条是什么", []string{"ab"}))
	assert.Equal(t, Fallback, s.Synthesize(ctx, "第60条是什么", []string{"   ", "\n"}))
}

func TestExtractive_QuotesRequestedArticle(t *testing.T) {
	s := NewExtractive("", "", zerolog.Nop())
	chunk := "第60条 劳动合同应当以书面形式订立。"

	got := s.Synthesize(context.Background(), "劳动法第60条是什么？", []string{chunk})

	assert.True(t, strings.HasPrefix(got, DefaultStatuteName))
	assert.Contains(t, got, "第60条")
	assert.True(t, strings.HasSuffix(got, chunk))
	assert.Equal(t, DefaultStatuteName+"第60条规定：\n\n"+chunk, got)
}

func TestExtractive_PicksMatchingChunk(t *testing.T) {
	s := NewExtractive("", "", zerolog.Nop())
	chunks := []string{"第一条 为了保护劳动者的合法权益。", "第二条 本法适用于境内企业\n和个体经济组织。"}

	got := s.Synthesize(context.Background(), "第二条说了什么", chunks)

	assert.Equal(t, DefaultStatuteName+"第二条规定：\n\n第二条 本法适用于境内企业 和个体经济组织。", got)
}

func TestExtractive_ArticleNotInContext(t *testing.T) {
	s := NewExtractive("", "", zerolog.Nop())
	long := "第一条 " + strings.Repeat("劳", 300)

	got := s.Synthesize(context.Background(), "第九十条是什么", []string{long})

	head := "抱歉，未能找到《劳动法》第九十条的完整内容。但根据相关法律规定：\n\n"
	require.True(t, strings.HasPrefix(got, head))
	body := strings.TrimPrefix(got, head)
	assert.True(t, strings.HasSuffix(body, "..."))
	assert.Equal(t, 250, utf8.RuneCountInString(strings.TrimSuffix(body, "...")))

	short := s.Synthesize(context.Background(), "第九十条是什么", []string{"第一条 为了保护劳动者。"})
	assert.Equal(t, head+"第一条 为了保护劳动者。", short)
}

func TestExtractive_NoArticleInQuestion(t *testing.T) {
	s := NewExtractive("", "", zerolog.Nop())
	got := s.Synthesize(context.Background(), "加班费怎么算", []string{"第四十四条 安排劳动者延长工作时间的，支付工资报酬。"})
	assert.Equal(t, "根据相关法律条款，第四十四条 安排劳动者延长工作时间的，支付工资报酬。...", got)

	long := strings.Repeat("法", 500)
	got = s.Synthesize(context.Background(), "加班费怎么算", []string{long})
	assert.Equal(t, "根据相关法律条款，"+strings.Repeat("法", 200)+"...", got)
}

func TestExtractive_CustomStatuteNames(t *testing.T) {
	s := NewExtractive("《中华人民共和国劳动合同法》", "《劳动合同法》", zerolog.Nop())
	got := s.Synthesize(context.Background(), "第十条", []string{"第十条 建立劳动关系，应当订立书面劳动合同。"})
	assert.True(t, strings.HasPrefix(got, "《中华人民共和国劳动合同法》第十条规定："))
	assert.Equal(t, "extractive", s.Name())
}

type fakeGenerator struct {
	out    string
	err    error
	panics bool
	prompt string
	calls  int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.panics {
		panic("backend crashed")
	}
	return f.out, f.err
}

func TestGenerative_RendersPrompt(t *testing.T) {
	gen := &fakeGenerator{out: "  《劳动法》第60条规定劳动合同应当以书面形式订立。\n"}
	s := NewGenerative("ollama", gen, zerolog.Nop())

	got := s.Synthesize(context.Background(), "第60条是什么？", []string{"第60条 劳动合同应当\n以书面形式订立。"})

	assert.Equal(t, "《劳动法》第60条规定劳动合同应当以书面形式订立。", got)
	assert.Contains(t, gen.prompt, "[已知信息]\n第60条 劳动合同应当 以书面形式订立。\n\n[问题]\n第60条是什么？")
	assert.Contains(t, gen.prompt, Fallback)
	assert.Equal(t, "generative:ollama", s.Name())
}

func TestGenerative_ContextFloorSkipsBackend(t *testing.T) {
	gen := &fakeGenerator{out: "invented"}
	s := NewGenerative("ollama", gen, zerolog.Nop())
	assert.Equal(t, Fallback, s.Synthesize(context.Background(), "q", []string{"ab"}))
	assert.Zero(t, gen.calls)
}

func TestGenerative_FailuresResolveToFixedAnswers(t *testing.T) {
	ctx := context.Background()
	chunks := []string{"第一条 为了保护劳动者的合法权益。"}

	errGen := NewGenerative("gemini", &fakeGenerator{err: errors.New("quota")}, zerolog.Nop())
	assert.Equal(t, SafeError, errGen.Synthesize(ctx, "q", chunks))

	emptyGen := NewGenerative("gemini", &fakeGenerator{out: "  "}, zerolog.Nop())
	assert.Equal(t, Fallback, emptyGen.Synthesize(ctx, "q", chunks))

	panicGen := NewGenerative("gemini", &fakeGenerator{panics: true}, zerolog.Nop())
	assert.Equal(t, SafeError, panicGen.Synthesize(ctx, "q", chunks))
}
