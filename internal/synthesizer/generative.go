package synthesizer

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/prompts"

	"lawrag/internal/domain"
)

const promptTemplate = `[任务]
你是一个专业的中国劳动法律师。请根据以下已知信息，简洁、准确地回答用户的问题。
严格禁止在已知信息之外进行任何补充或想象。
如果已知信息与问题不相关，或者无法从已知信息中找到答案，请直接回答："` + Fallback + `"

[已知信息]
{{.context}}

[问题]
{{.question}}

[回答]
`

// Generative asks a language model to answer from the retrieved context.
type Generative struct {
	name      string
	generator domain.Generator
	prompt    prompts.PromptTemplate
	log       zerolog.Logger
}

// NewGenerative creates a synthesizer backed by generator. name identifies
// the backend in logs and metrics.
func NewGenerative(name string, generator domain.Generator, log zerolog.Logger) *Generative {
	return &Generative{
		name:      name,
		generator: generator,
		prompt:    prompts.NewPromptTemplate(promptTemplate, []string{"context", "question"}),
		log:       log,
	}
}

func (g *Generative) Name() string { return "generative:" + g.name }

// Prompt renders the prompt sent for question and context.
func (g *Generative) Prompt(question, context string) (string, error) {
	return g.prompt.Format(map[string]any{"context": context, "question": question})
}

func (g *Generative) Synthesize(ctx context.Context, question string, chunks []string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Interface("panic", r).Msg("synthesis failed")
			answer = SafeError
		}
	}()

	ctxText := FormatContext(chunks)
	if tooShort(ctxText) {
		return Fallback
	}
	prompt, err := g.Prompt(question, ctxText)
	if err != nil {
		g.log.Error().Err(err).Msg("render prompt")
		return SafeError
	}
	out, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		g.log.Error().Err(err).Str("backend", g.name).Msg("generation failed")
		return SafeError
	}
	out = strings.TrimSpace(out)
	if out == "" {
		g.log.Warn().Str("backend", g.name).Msg("empty generation")
		return Fallback
	}
	return out
}
