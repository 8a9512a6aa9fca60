package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"

	"clawlink/pkg/protocol"
)

const roleSystem = "system"

// ChatBubble is a single rendered line of conversation
type ChatBubble struct {
	ID        string
	Role      string // protocol sender, or "system" for local notices
	Content   string
	Timestamp time.Time
	Status    protocol.MessageStatus
}

// ChatViewModel manages the chat message viewport
type ChatViewModel struct {
	Messages      []ChatBubble
	Viewport      viewport.Model
	Width         int
	Height        int
	BotTyping     bool
	ThinkingFrame int
	Styles        Styles
	BotName       string
	Location      *time.Location
}

// NewChatViewModel creates a new chat view
func NewChatViewModel(styles Styles, botName string, location *time.Location) ChatViewModel {
	vp := viewport.New(80, 20)
	vp.SetContent("")
	if botName == "" {
		botName = "Bot"
	}
	return ChatViewModel{
		Viewport: vp,
		Styles:   styles,
		BotName:  botName,
		Location: location,
	}
}

// SetSize updates the viewport dimensions
func (c *ChatViewModel) SetSize(width, height int) {
	c.Width = width
	c.Height = height
	c.Viewport.Width = width
	c.Viewport.Height = height
	c.refreshContent()
}

// AddChatMessage appends a gateway or locally composed chat message. A
// message whose ID is already shown replaces it, so a gateway echo updates
// the local copy's delivery status.
func (c *ChatViewModel) AddChatMessage(msg protocol.ChatMessage) {
	bubble := ChatBubble{
		ID:        msg.ID,
		Role:      string(msg.Sender),
		Content:   msg.Content,
		Timestamp: time.UnixMilli(msg.Timestamp),
		Status:    msg.Status,
	}
	if msg.Timestamp == 0 {
		bubble.Timestamp = time.Now()
	}

	for i := range c.Messages {
		if c.Messages[i].ID != "" && c.Messages[i].ID == msg.ID {
			c.Messages[i] = bubble
			c.refreshContent()
			return
		}
	}
	c.Messages = append(c.Messages, bubble)
	c.refreshContent()
	c.Viewport.GotoBottom()
}

// AddSystem adds a local notice
func (c *ChatViewModel) AddSystem(content string) {
	c.Messages = append(c.Messages, ChatBubble{
		Role:      roleSystem,
		Content:   content,
		Timestamp: time.Now(),
	})
	c.refreshContent()
	c.Viewport.GotoBottom()
}

// SetStatus updates the delivery status of the message with id
func (c *ChatViewModel) SetStatus(id string, status protocol.MessageStatus) {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i].Status = status
			c.refreshContent()
			return
		}
	}
}

// SetTyping toggles the bot typing indicator
func (c *ChatViewModel) SetTyping(typing bool) {
	c.BotTyping = typing
	c.ThinkingFrame = 0
	c.refreshContent()
	c.Viewport.GotoBottom()
}

// ThinkingTick advances the typing scanner by one frame
func (c *ChatViewModel) ThinkingTick() {
	c.ThinkingFrame++
	c.refreshContent()
}

// renderScanner renders a bouncing scanner bar for the typing indicator
func (c *ChatViewModel) renderScanner() string {
	const trackWidth = 16
	const barWidth = 3

	maxPos := trackWidth - barWidth
	cycle := 2 * maxPos
	pos := c.ThinkingFrame % cycle
	if pos > maxPos {
		pos = cycle - pos
	}

	var styled strings.Builder
	styled.WriteString(c.Styles.Muted.Render(fmt.Sprintf("  %s is typing  ", c.BotName)))
	styled.WriteString(c.Styles.ThinkingTrack.Render("["))
	for i := 0; i < trackWidth; i++ {
		if i >= pos && i < pos+barWidth {
			styled.WriteString(c.Styles.ThinkingBar.Render("="))
		} else {
			styled.WriteString(c.Styles.ThinkingTrack.Render(" "))
		}
	}
	styled.WriteString(c.Styles.ThinkingTrack.Render("]"))
	return styled.String()
}

// SetBotName updates the displayed bot name
func (c *ChatViewModel) SetBotName(name string) {
	c.BotName = name
	c.refreshContent()
}

func (c *ChatViewModel) formatTimestamp(t time.Time) string {
	if c.Location != nil {
		return t.In(c.Location).Format("15:04")
	}
	return t.Format("15:04")
}

// refreshContent rebuilds the viewport content from messages
func (c *ChatViewModel) refreshContent() {
	var sb strings.Builder
	maxWidth := c.Width - 6
	if maxWidth < 20 {
		maxWidth = 20
	}

	for i, msg := range c.Messages {
		if i > 0 {
			sb.WriteString(c.Styles.Divider.Render(strings.Repeat("─", maxWidth)))
			sb.WriteString("\n")
		}
		sb.WriteString(c.renderMessage(msg, maxWidth))
		sb.WriteString("\n")
	}

	if c.BotTyping {
		sb.WriteString(c.renderScanner() + "\n")
	}

	c.Viewport.SetContent(sb.String())
}

// renderMessage renders a single chat bubble
func (c *ChatViewModel) renderMessage(msg ChatBubble, maxWidth int) string {
	var sb strings.Builder
	ts := c.Styles.Muted.Render(c.formatTimestamp(msg.Timestamp))

	switch msg.Role {
	case string(protocol.SenderUser):
		sb.WriteString(fmt.Sprintf("%s %s%s\n", c.Styles.UserLabel.Render("You"), ts, c.renderStatus(msg.Status)))
		sb.WriteString(c.Styles.UserBubble.Render(wrapText(msg.Content, maxWidth)))

	case string(protocol.SenderBot):
		sb.WriteString(fmt.Sprintf("%s %s\n", c.Styles.BotLabel.Render(c.BotName), ts))
		sb.WriteString(c.Styles.BotBubble.Render(wrapText(msg.Content, maxWidth)))

	default:
		sb.WriteString(c.Styles.SystemBubble.Render(msg.Content))
	}

	return sb.String()
}

func (c *ChatViewModel) renderStatus(status protocol.MessageStatus) string {
	switch status {
	case protocol.StatusSending:
		return c.Styles.Muted.Render(" ...")
	case protocol.StatusSent:
		return c.Styles.Muted.Render(" ✓")
	case protocol.StatusError:
		return c.Styles.Failed.Render(" not sent")
	default:
		return ""
	}
}

// View renders the chat viewport
func (c ChatViewModel) View() string {
	return c.Viewport.View()
}

// wrapText wraps text to fit within maxWidth
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		if len(line) <= maxWidth {
			result.WriteString(line)
			continue
		}

		current := ""
		for _, word := range strings.Fields(line) {
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) <= maxWidth:
				current += " " + word
			default:
				result.WriteString(current + "\n")
				current = word
			}
		}
		result.WriteString(current)
	}

	return result.String()
}
