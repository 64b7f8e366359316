package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
	"github.com/go-go-golems/hexchat/pkg/uibus"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
)

// consoleView prints bus events to a terminal. With a markdown renderer it
// waits for finalized replies and renders them; without one it streams the
// raw text as it arrives.
type consoleView struct {
	w            io.Writer
	md           *glamour.TermRenderer
	conversation string
	offsets      map[string]int
	done         map[string]bool
}

func newConsoleView(w io.Writer, rich bool, width int) (*consoleView, error) {
	v := &consoleView{w: w, offsets: map[string]int{}, done: map[string]bool{}}
	if !rich {
		return v, nil
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create markdown renderer")
	}
	v.md = md
	return v, nil
}

// Run consumes events until ctx is done or the channel is closed.
func (v *consoleView) Run(ctx context.Context, events <-chan uibus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			v.handle(ev)
		}
	}
}

func (v *consoleView) handle(ev uibus.Event) {
	if ev.Notification != nil {
		v.notification(*ev.Notification)
	}
	if ev.Snapshot != nil {
		v.snapshot(*ev.Snapshot)
	}
}

func (v *consoleView) notification(n uibus.NotificationEvent) {
	style := dimStyle
	switch n.Severity {
	case "success":
		style = successStyle
	case "warning":
		style = warningStyle
	case "error":
		style = errorStyle
	}
	_, _ = fmt.Fprintln(v.w, v.paint(style, fmt.Sprintf("[%s] %s", n.Severity, n.Message)))
}

func (v *consoleView) snapshot(s uibus.SnapshotEvent) {
	if s.ConversationID != v.conversation {
		v.conversation = s.ConversationID
		v.offsets = map[string]int{}
		v.done = map[string]bool{}
		if s.ConversationID != "" {
			_, _ = fmt.Fprintln(v.w, v.paint(dimStyle, fmt.Sprintf("-- conversation %s (package %s)", s.ConversationID, s.PackageID)))
		}
	}

	for _, m := range s.Messages {
		if v.done[m.ID] {
			continue
		}
		switch store.Sender(m.Sender) {
		case store.SenderUser:
			// already on screen from the prompt
			v.done[m.ID] = true
		case store.SenderSystemError:
			_, _ = fmt.Fprintln(v.w, v.paint(errorStyle, m.Content))
			v.done[m.ID] = true
		case store.SenderAssistant:
			v.assistant(m)
		}
	}
}

func (v *consoleView) assistant(m uibus.MessageView) {
	if v.md == nil {
		off, seen := v.offsets[m.ID]
		if !seen {
			v.header(m)
		}
		if len(m.Content) > off {
			_, _ = io.WriteString(v.w, m.Content[off:])
			v.offsets[m.ID] = len(m.Content)
		}
		if !m.Streaming {
			_, _ = fmt.Fprintln(v.w)
			v.done[m.ID] = true
		}
		return
	}

	if m.Streaming {
		return
	}
	out, err := v.md.Render(m.Content)
	if err != nil {
		out = m.Content + "\n"
	}
	v.header(m)
	_, _ = io.WriteString(v.w, out)
	v.done[m.ID] = true
}

func (v *consoleView) header(m uibus.MessageView) {
	label := m.PackageLabel
	if label == "" {
		label = "assistant"
	}
	_, _ = fmt.Fprintln(v.w, v.paint(labelStyle, label+":"))
}

// paint styles s on a rich terminal and leaves it alone otherwise.
func (v *consoleView) paint(style lipgloss.Style, s string) string {
	if v.md == nil {
		return s
	}
	return style.Render(s)
}
