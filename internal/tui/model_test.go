package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawrag/internal/domain"
	"lawrag/internal/service"
)

type fakeQA struct {
	err  error
	reqs []service.Request
}

func (f *fakeQA) Ask(_ context.Context, req service.Request) (service.Response, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return service.Response{}, f.err
	}
	resp := service.Response{Answer: "《中华人民共和国劳动法》第二条规定：\n\n第二条 本法适用于境内企业。", SourceDocuments: []domain.Citation{}}
	if req.ShowSource {
		resp.SourceDocuments = []domain.Citation{{Article: "第二条", Content: "第二条 本法适用于境内企业。" + strings.Repeat("法", 600), Source: "劳动法全文.txt"}}
	}
	return resp, nil
}

func sized(t *testing.T, qa QAPort) Model {
	t.Helper()
	m, _ := New(context.Background(), qa, "legal_documents · 107 条").Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m.(Model)
}

// submit types q, presses enter and feeds the answer back.
func submit(t *testing.T, m Model, q string) Model {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	next, _ = m.Update(m.ask(q)())
	return next.(Model)
}

func TestModel_AnswerAppendsTurns(t *testing.T) {
	qa := &fakeQA{}
	m := submit(t, sized(t, qa), "第二条说了什么")

	assert.False(t, m.busy)
	turns := m.Session().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "第二条说了什么", turns[0].Content)
	assert.Len(t, turns[1].Sources, 1)
	assert.Empty(t, m.input.Value())

	view := m.View()
	assert.Contains(t, view, "参考法条")
	assert.Contains(t, view, "来源: 劳动法全文.txt - 第二条")
}

func TestModel_SourcesAreTruncatedForDisplay(t *testing.T) {
	qa := &fakeQA{}
	m := submit(t, sized(t, qa), "第二条说了什么")
	content := renderHistory(m.Session().Turns(), true, 2000)
	assert.Contains(t, content, "...")
	assert.NotContains(t, content, strings.Repeat("法", 600))
}

func TestModel_ToggleSources(t *testing.T) {
	qa := &fakeQA{}
	m := sized(t, qa)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)
	assert.False(t, m.showSource)

	m = submit(t, m, "第二条说了什么")
	require.NotEmpty(t, qa.reqs)
	assert.False(t, qa.reqs[len(qa.reqs)-1].ShowSource)
	assert.NotContains(t, m.View(), "参考法条")
}

func TestModel_ClearSession(t *testing.T) {
	m := submit(t, sized(t, &fakeQA{}), "第二条说了什么")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = next.(Model)
	assert.Empty(t, m.Session().Turns())
	assert.Contains(t, m.View(), "示例问题")
}

func TestModel_ErrorKeepsHistory(t *testing.T) {
	m := submit(t, sized(t, &fakeQA{err: errors.New("store unreachable")}), "第二条")
	assert.Empty(t, m.Session().Turns())
	assert.Equal(t, msgFailed, m.status)
}

func TestModel_EmptyInputIgnored(t *testing.T) {
	m := sized(t, &fakeQA{})
	m.input.SetValue("   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_Quit(t *testing.T) {
	_, cmd := sized(t, &fakeQA{}).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
