package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lawrag/internal/citation"
	"lawrag/internal/service"
	"lawrag/internal/session"
)

// QAPort is the TUI-facing subset of the QA service.
type QAPort interface {
	Ask(ctx context.Context, req service.Request) (service.Response, error)
}

const (
	msgThinking = "正在检索法律条文并生成回答..."
	msgFailed   = "抱歉，检索相关法律条文时出现问题，请稍后重试。"
)

type answerMsg struct {
	question string
	resp     service.Response
	err      error
}

// Model is the Bubble Tea model for the chat UI. It owns the session.
type Model struct {
	ctx        context.Context
	qa         QAPort
	session    *session.Session
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	header     string
	status     string
	showSource bool
	busy       bool
	ready      bool
}

// New creates a chat model. header is shown under the title, typically the
// index description.
func New(ctx context.Context, qa QAPort, header string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "请输入您的法律问题..."
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		ctx:        ctx,
		qa:         qa,
		session:    session.New(),
		input:      ti,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
		header:     header,
		status:     "Enter 提问 · ctrl+s 显示/隐藏参考法条 · ctrl+l 清空对话 · ctrl+c 退出",
		showSource: true,
	}
}

// Session exposes the conversation owned by the model.
func (m Model) Session() *session.Session { return m.session }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(question string) tea.Cmd {
	req := service.Request{Question: question, ShowSource: m.showSource}
	return func() tea.Msg {
		resp, err := m.qa.Ask(m.ctx, req)
		return answerMsg{question: question, resp: resp, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, hh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header lines, status, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-hh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msgFailed
			return m, nil
		}
		m.session.AppendTurn(session.Turn{Role: session.RoleUser, Content: msg.question})
		m.session.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: msg.resp.Answer, Sources: msg.resp.SourceDocuments})
		m.status = fmt.Sprintf("已回答：%s", msg.question)
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = msgThinking
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "ctrl+s":
			m.showSource = !m.showSource
			if m.showSource {
				m.status = "显示参考法条"
			} else {
				m.status = "隐藏参考法条"
			}
			m.refresh()
			return m, nil
		case "ctrl+l":
			m.session.Clear()
			m.status = "对话已清空"
			m.refresh()
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and the conversation.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("⚖ 法律RAG助手")
	sub := dimStyle.Render(m.header)
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + sub + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.session.Turns(), m.showSource, m.viewport.Width))
}

func renderHistory(turns []session.Turn, showSource bool, width int) string {
	if len(turns) == 0 {
		return dimStyle.Render("示例问题：劳动法适用于哪些单位和个人？ · 劳动法第60条是什么？ · 用人单位有什么义务？")
	}
	wrap := lipgloss.NewStyle().Width(max(20, width-2))
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case session.RoleUser:
			b.WriteString(userStyle.Render("你："))
		default:
			b.WriteString(assistantStyle.Render("助手："))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(t.Content))
		b.WriteString("\n")
		if showSource && len(t.Sources) > 0 {
			b.WriteString(sourceTitleStyle.Render("参考法条"))
			b.WriteString("\n")
			for _, s := range t.Sources {
				b.WriteString(sourceStyle.Render(fmt.Sprintf("来源: %s - %s", s.Source, s.Article)))
				b.WriteString("\n")
				b.WriteString(wrap.Render("> " + citation.Truncate(s.Content, citation.DisplayRunes)))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Underline(true)
	sourceStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	historyBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
