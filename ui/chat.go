package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatgate/model"
	"chatgate/stream"
)

// Chatter starts a streamed chat. *provider.Manager satisfies it.
type Chatter interface {
	Chat(ctx context.Context, p model.ProviderID, modelID string, messages []model.Message) (*stream.TokenStream, error)
}

type (
	streamStartedMsg struct {
		ts *stream.TokenStream
	}
	streamFailedMsg struct {
		err error
	}
	tokenMsg struct {
		token string
	}
	streamDoneMsg struct {
		outcome stream.Outcome
		err     error
	}
)

// ChatView is an interactive chat against one provider.
type ChatView struct {
	chatter  Chatter
	provider model.ProviderID
	modelID  string
	ctx      context.Context

	messages []model.Message
	current  string // reply in flight

	streaming bool
	ts        *stream.TokenStream
	cancel    context.CancelFunc
	status    string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	width    int
	height   int
}

// NewChatView seeds the conversation with system when it is non-empty.
func NewChatView(ctx context.Context, chatter Chatter, p model.ProviderID, modelID, system string) ChatView {
	input := textinput.New()
	input.Placeholder = "Message " + p.DisplayName()
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	v := ChatView{
		chatter:  chatter,
		provider: p,
		modelID:  modelID,
		ctx:      ctx,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
		width:    80,
		height:   24,
	}
	if system != "" {
		v.messages = append(v.messages, model.NewSystemMessage(system))
	}
	return v
}

// Messages returns the conversation so far, excluding a reply in flight.
func (v ChatView) Messages() []model.Message {
	return append([]model.Message(nil), v.messages...)
}

// Streaming reports whether a reply is in flight.
func (v ChatView) Streaming() bool {
	return v.streaming
}

func (v ChatView) Init() tea.Cmd {
	return textinput.Blink
}

func (v ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
		v.viewport.Width = msg.Width
		v.viewport.Height = max(msg.Height-3, 1)
		v.input.Width = max(msg.Width-4, 10)
		v.refresh()
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)

	case spinner.TickMsg:
		if !v.streaming {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case streamStartedMsg:
		v.ts = msg.ts
		return v, tea.Batch(waitForToken(msg.ts), v.spinner.Tick)

	case streamFailedMsg:
		v.endStream()
		// The pending user message stays so it can be retried by editing.
		if errors.Is(msg.err, model.ErrAborted) {
			v.status = "Cancelled"
		} else {
			v.status = "Error: " + msg.err.Error()
		}
		v.refresh()
		return v, nil

	case tokenMsg:
		if !v.streaming {
			return v, nil
		}
		v.current += msg.token
		v.refresh()
		return v, waitForToken(v.ts)

	case streamDoneMsg:
		reply := v.current
		v.endStream()
		switch msg.outcome {
		case stream.Completed:
			v.messages = append(v.messages, model.NewAssistantMessage(reply))
			v.status = ""
		case stream.Aborted:
			if reply != "" {
				v.messages = append(v.messages, model.NewAssistantMessage(reply))
			}
			v.status = "Cancelled"
		default:
			v.status = "Error: " + msg.err.Error()
		}
		v.refresh()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v ChatView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if v.cancel != nil {
			v.cancel()
		}
		return v, tea.Quit

	case "esc":
		if v.streaming {
			v.cancel()
			return v, nil
		}
		return v, tea.Quit

	case "ctrl+y":
		reply, ok := v.lastReply()
		if !ok {
			v.status = "Nothing to copy"
		} else if err := CopyToClipboard(reply); err != nil {
			v.status = "Copy failed: " + err.Error()
		} else {
			v.status = "Copied last reply"
		}
		return v, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd

	case "enter":
		text := strings.TrimSpace(v.input.Value())
		if text == "" || v.streaming {
			return v, nil
		}
		v.input.Reset()
		return v, v.send(text)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// send appends the user message and returns the command that opens the reply.
func (v *ChatView) send(text string) tea.Cmd {
	v.messages = append(v.messages, model.NewUserMessage(text))
	v.current = ""
	v.streaming = true
	v.status = ""

	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel
	v.refresh()

	chatter, p, modelID := v.chatter, v.provider, v.modelID
	msgs := v.Messages()
	return func() tea.Msg {
		ts, err := chatter.Chat(ctx, p, modelID, msgs)
		if err != nil {
			return streamFailedMsg{err: err}
		}
		return streamStartedMsg{ts: ts}
	}
}

func (v *ChatView) endStream() {
	v.streaming = false
	v.ts = nil
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.current = ""
}

func (v ChatView) lastReply() (string, bool) {
	for i := len(v.messages) - 1; i >= 0; i-- {
		if v.messages[i].Role == model.RoleAssistant {
			return v.messages[i].Content, true
		}
	}
	return "", false
}

// waitForToken pulls one token per command so the program loop stays
// responsive between tokens.
func waitForToken(ts *stream.TokenStream) tea.Cmd {
	return func() tea.Msg {
		if ts.Next() {
			return tokenMsg{token: ts.Token()}
		}
		return streamDoneMsg{outcome: ts.Outcome(), err: ts.Err()}
	}
}

func (v *ChatView) refresh() {
	var sb strings.Builder
	for _, m := range v.messages {
		switch m.Role {
		case model.RoleUser:
			sb.WriteString(UserStyle.Render("You: ") + m.Content + "\n\n")
		case model.RoleAssistant:
			sb.WriteString(AssistantStyle.Render(v.provider.DisplayName()+":") + "\n")
			sb.WriteString(RenderMarkdown(m.Content, v.width-2) + "\n\n")
		}
	}
	if v.streaming {
		sb.WriteString(AssistantStyle.Render(v.provider.DisplayName()+":") + "\n")
		sb.WriteString(v.current)
	}
	v.viewport.SetContent(sb.String())
	v.viewport.GotoBottom()
}

func (v ChatView) View() string {
	var footer string
	switch {
	case v.streaming:
		footer = v.spinner.View() + " " + FormatFooter("Esc", "Stop")
	case v.status != "":
		style := DimStyle
		if strings.HasPrefix(v.status, "Error") {
			style = ErrorStyle
		}
		footer = style.Render(v.status) + "  " + FormatFooter("Enter", "Send", "Ctrl+Y", "Copy", "Esc", "Quit")
	default:
		footer = FormatFooter("Enter", "Send", "Ctrl+Y", "Copy", "Esc", "Quit")
	}

	header := TitleStyle.Render(v.provider.DisplayName())
	if v.modelID != "" {
		header += DimStyle.Render(" · " + v.modelID)
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, v.viewport.View(), v.input.View(), footer)
}

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// RunChat runs the interactive chat until the user quits or ctx ends.
func RunChat(ctx context.Context, chatter Chatter, p model.ProviderID, modelID, system string) error {
	prog := tea.NewProgram(
		NewChatView(ctx, chatter, p, modelID, system),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
