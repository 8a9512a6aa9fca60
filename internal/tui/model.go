package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"clawlink/internal/gateway"
	"clawlink/pkg/protocol"
)

const helpText = "Commands:\n\n" +
	"/reconnect - Connect again after giving up\n" +
	"/help - Show this message\n" +
	"/quit, /exit - Exit\n\n" +
	"Enter: Send | Alt+Enter: New line\n" +
	"PgUp/PgDn: Scroll chat | Ctrl+C: Quit"

// ModelConfig holds the configuration for creating a new TUI model
type ModelConfig struct {
	Client      GatewayClient
	GatewayURL  string
	BotName     string
	MaxAttempts int
	// Location is the timezone for rendering timestamps. If nil, times render as-is.
	Location *time.Location
	// Renderer is the Lip Gloss renderer to use for styling. If nil, the
	// default renderer is used.
	Renderer *lipgloss.Renderer
}

// Model is the root BubbleTea model
type Model struct {
	config ModelConfig
	client GatewayClient
	styles Styles

	chat      ChatViewModel
	statusBar StatusBarModel
	input     textarea.Model

	width    int
	height   int
	typing   bool // whether we told the gateway the user is typing
	quitting bool
}

// NewModel creates the root TUI model
func NewModel(config ModelConfig) Model {
	r := config.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	styles := NewStyles(r)

	ti := textarea.New()
	ti.Placeholder = "Type a message... (Enter to send, Alt+Enter for new line)"
	ti.ShowLineNumbers = false
	ti.SetHeight(3)
	ti.SetWidth(80)
	ti.Focus()
	ti.CharLimit = 4000
	ti.Cursor.SetChar("█")
	ti.Cursor.Style = styles.WhiteCursor
	ti.Cursor.Blink = false

	statusBar := NewStatusBarModel(styles)
	statusBar.GatewayURL = config.GatewayURL
	statusBar.MaxAttempts = config.MaxAttempts

	return Model{
		config:    config,
		client:    config.Client,
		styles:    styles,
		chat:      NewChatViewModel(styles, config.BotName, config.Location),
		statusBar: statusBar,
		input:     ti,
	}
}

// Init connects and starts listening for gateway messages
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.client.ConnectCmd(),
		m.client.ListenCmd(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()

	case tea.KeyMsg:
		cmd, handled := m.handleKeyMsg(msg)
		if m.quitting {
			return m, tea.Quit
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if handled {
			return m, tea.Batch(cmds...)
		}

	case ConnectResultMsg:
		m.statusBar.State = m.client.State()
		if msg.Err != nil && !errors.Is(msg.Err, gateway.ErrAlreadyConnected) {
			m.chat.AddSystem("Connection failed: " + msg.Err.Error())
		}

	case EventMsg:
		cmds = append(cmds, m.handleEvent(msg.Event))
		cmds = append(cmds, m.client.ListenCmd())

	case DiagnosticMsg:
		m.handleDiagnostic(msg.Diagnostic)
		cmds = append(cmds, m.client.ListenCmd())

	case ThinkingTickMsg:
		if m.chat.BotTyping {
			m.chat.ThinkingTick()
			cmds = append(cmds, thinkingTickCmd())
		}

	case ClosedMsg:
		// bridge shut down; nothing more will arrive
	}

	var tiCmd tea.Cmd
	m.input, tiCmd = m.input.Update(msg)
	if tiCmd != nil {
		cmds = append(cmds, tiCmd)
	}
	if _, ok := msg.(tea.KeyMsg); ok {
		m.syncTyping()
	}

	return m, tea.Batch(cmds...)
}

// handleEvent applies a gateway event to the view
func (m *Model) handleEvent(ev protocol.Event) tea.Cmd {
	switch e := ev.(type) {
	case protocol.MessageEvent:
		m.chat.AddChatMessage(e.Message)
	case protocol.StatusEvent:
		m.statusBar.Online = e.Status.Online
		m.statusBar.Model = e.Status.Model
		m.statusBar.Version = e.Status.Version
		if e.Status.Model != "" {
			m.chat.SetBotName(e.Status.Model)
		}
	case protocol.TypingEvent:
		wasTyping := m.chat.BotTyping
		m.chat.SetTyping(e.IsTyping)
		m.statusBar.BotTyping = e.IsTyping
		if e.IsTyping && !wasTyping {
			return thinkingTickCmd()
		}
	case protocol.ErrorEvent:
		m.chat.AddSystem("Gateway error: " + e.Message)
	}
	return nil
}

// handleDiagnostic reflects connection lifecycle in the status bar and chat
func (m *Model) handleDiagnostic(d gateway.Diagnostic) {
	m.statusBar.State = m.client.State()

	switch d.Kind {
	case gateway.DiagConnected:
		m.statusBar.State = gateway.Connected
		m.statusBar.Attempt = 0
		m.chat.AddSystem("Connected to gateway.")
	case gateway.DiagDisconnected:
		if m.chat.BotTyping {
			m.chat.SetTyping(false)
			m.statusBar.BotTyping = false
		}
		if d.Err != nil && !errors.Is(d.Err, gateway.ErrDisconnected) {
			m.chat.AddSystem("Disconnected: " + d.Err.Error())
		}
	case gateway.DiagReconnectScheduled:
		m.statusBar.State = gateway.Reconnecting
		m.statusBar.Attempt = d.Attempt
	case gateway.DiagReconnectExhausted:
		m.statusBar.State = gateway.Disconnected
		m.chat.AddSystem("Gave up reconnecting. Type /reconnect to try again.")
	case gateway.DiagSendRejected:
		if d.Err != nil {
			m.chat.AddSystem("Message not sent: " + d.Err.Error())
		}
	}
}

// handleKeyMsg processes keyboard input.
// Returns (cmd, handled) where handled=true prevents the textarea from also processing the key.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.quit()
		return tea.Quit, true

	case "pgup":
		m.chat.Viewport.HalfViewUp()
		return nil, true

	case "pgdown":
		m.chat.Viewport.HalfViewDown()
		return nil, true

	case "alt+enter":
		m.input.InsertString("\n")
		return nil, true

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return nil, true
		}
		m.input.Reset()

		switch text {
		case "/quit", "/exit":
			m.quit()
			return tea.Quit, true
		case "/help":
			m.chat.AddSystem(helpText)
			return nil, true
		case "/reconnect":
			m.statusBar.State = gateway.Connecting
			return m.client.ConnectCmd(), true
		}

		m.sendChat(text)
		return nil, true
	}

	return nil, false
}

// sendChat shows the message locally and hands it to the client
func (m *Model) sendChat(text string) {
	out := protocol.NewChatMessage(text)
	msg, _ := out.Message()

	if m.client.Send(out) {
		msg.Status = protocol.StatusSent
	} else {
		msg.Status = protocol.StatusError
	}
	m.chat.AddChatMessage(msg)

	if m.typing {
		m.client.Send(protocol.NewTyping(false))
		m.typing = false
	}
}

// syncTyping tells the gateway when the user starts or stops composing
func (m *Model) syncTyping() {
	composing := strings.TrimSpace(m.input.Value()) != ""
	if composing == m.typing || m.client.State() != gateway.Connected {
		return
	}
	if m.client.Send(protocol.NewTyping(composing)) {
		m.typing = composing
	}
}

func (m *Model) quit() {
	m.quitting = true
	if m.client != nil {
		m.client.Close()
	}
}

// updateLayout recalculates sub-model dimensions
func (m *Model) updateLayout() {
	statusBarHeight := 1
	inputHeight := 4 // textarea + border

	chatHeight := m.height - statusBarHeight - inputHeight
	if chatHeight < 5 {
		chatHeight = 5
	}
	chatWidth := m.width
	if chatWidth < 20 {
		chatWidth = 20
	}

	m.statusBar.Width = m.width
	m.input.SetWidth(chatWidth - 2)
	m.chat.SetSize(chatWidth, chatHeight)
}

// View renders the entire TUI
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.chat.View(),
		m.styles.InputStyle.Width(m.width).Render(m.input.View()),
		m.statusBar.View(),
	)
}

// thinkingTickCmd returns a command that fires a ThinkingTickMsg after a short delay.
func thinkingTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return ThinkingTickMsg{}
	})
}
