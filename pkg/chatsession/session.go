package chatsession

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/hexchat/pkg/chatsession/connection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/protocol"
	"github.com/go-go-golems/hexchat/pkg/chatsession/selection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
	"github.com/go-go-golems/hexchat/pkg/chatsession/stream"
	"github.com/go-go-golems/hexchat/pkg/render"
)

// Session is one authenticated chat session.
type Session struct {
	mu sync.Mutex

	store     *store.Store
	assembler *stream.Assembler
	selection *selection.Synchronizer
	conn      *connection.Manager
	notifier  Notifier
	actions   ActionHandler
	now       func() time.Time

	stateMu  sync.Mutex
	awaiting bool
	lastErr  error
}

var _ connection.Handler = (*Session)(nil)

func New(opts ...Option) (*Session, error) {
	c := &config{
		notifier: LogNotifier{},
		renderer: render.Markdown{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		c.store = store.New()
	}

	s := &Session{
		store:    c.store,
		notifier: c.notifier,
		actions:  c.actions,
		now:      c.now,
	}
	s.conn = connection.NewManager(s, c.connOpts...)
	s.selection = selection.NewSynchronizer(c.profiles, s.conn, s.store)
	s.assembler = stream.NewAssembler(s.store,
		stream.WithRenderer(c.renderer),
		stream.WithClock(c.now),
	)
	if c.currentProfile != "" {
		if err := s.selection.Preselect(c.currentProfile); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Connect opens the websocket. Dial failures are notified and retried in
// the background; the returned error covers bad arguments only.
func (s *Session) Connect(ctx context.Context, wsHost, token string) error {
	return s.conn.Connect(ctx, wsHost, token)
}

// Close tears the connection down and cancels any pending reconnect.
func (s *Session) Close() error {
	err := s.conn.Close()
	s.setAwaiting(false)
	return err
}

func (s *Session) Status() connection.Status { return s.conn.Status() }

func (s *Session) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Awaiting reports whether a reply to the last user message is pending.
func (s *Session) Awaiting() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.awaiting
}

func (s *Session) Store() *store.Store { return s.store }

func (s *Session) Snapshot() store.Snapshot { return s.store.Snapshot() }

func (s *Session) Profiles() []selection.Profile { return s.selection.Profiles() }

func (s *Session) ProfileSelection() selection.Selected { return s.selection.Profile() }

func (s *Session) PackageSelection() selection.Selected { return s.selection.Package() }

func (s *Session) CurrentProfile() (selection.Profile, bool) { return s.selection.CurrentProfile() }

func (s *Session) CurrentPackage() (selection.Package, bool) { return s.selection.CurrentPackage() }

// SendMessage sends a chat message and appends it to the conversation.
// Local validation failures are returned as *PreconditionError.
func (s *Session) SendMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "send message"
	text = strings.TrimSpace(text)
	if text == "" {
		return asPrecondition(op, ErrEmptyMessage)
	}
	if s.conn.Status() != connection.StatusOpen {
		return asPrecondition(op, connection.ErrNotConnected)
	}
	if !s.selection.Profile().IsSet() {
		return asPrecondition(op, selection.ErrNoProfile)
	}
	if !s.selection.Package().IsSet() {
		return asPrecondition(op, selection.ErrNoPackage)
	}
	if err := s.conn.Send(protocol.ChatMessage{Text: text}); err != nil {
		return asPrecondition(op, err)
	}

	if err := s.store.Append(store.Message{
		ID:        "user-" + uuid.NewString(),
		Sender:    store.SenderUser,
		Content:   text,
		Timestamp: s.now(),
	}); err != nil {
		return errors.Wrap(err, "append user message")
	}
	s.setAwaiting(true)
	return nil
}

func (s *Session) SelectProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return asPrecondition("select profile", s.selection.SelectProfile(id))
}

func (s *Session) SelectPackage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return asPrecondition("select package", s.selection.SelectPackage(id))
}

// NewConversation asks the server to start a fresh conversation. The
// message list is cleared when the server acknowledges.
func (s *Session) NewConversation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return asPrecondition("new conversation", s.selection.RequestNewConversation())
}

// Dispatch applies one inbound event. All state changes caused by the event
// are complete when it returns.
func (s *Session) Dispatch(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case protocol.ConnectionEstablished:
		msg := e.Message
		if msg == "" {
			msg = "Connection established"
		}
		s.notify(SeveritySuccess, msg)
	case protocol.ProfileChangeAck:
		s.selection.OnProfileAck(e.ProfileID)
	case protocol.PackageChangeAck:
		s.selection.OnPackageAck(e.PackageID, e.ConversationID)
	case protocol.NewConversationAck:
		s.selection.OnNewConversationAck(e.ConversationID)
	case protocol.AssistantChunk:
		s.setAwaiting(false)
		s.assembler.Chunk(e.Chunk, s.selection.PackageLabel())
	case protocol.StreamFinalized:
		s.setAwaiting(false)
		s.assembler.Finalize()
	case protocol.UIActions:
		s.notify(SeverityInfo, "UI action received")
		if s.actions != nil {
			s.actions(e.Actions)
		}
	case protocol.Error:
		s.setAwaiting(false)
		if err := s.store.Append(store.Message{
			ID:        "err-" + uuid.NewString(),
			Sender:    store.SenderSystemError,
			Content:   "Error: " + e.Message,
			Timestamp: s.now(),
		}); err != nil {
			log.Warn().Err(err).Str("component", "chatsession").Msg("could not append error message")
		}
		s.notify(SeverityError, "Server error: "+e.Message)
	case protocol.Unknown:
		log.Debug().Str("component", "chatsession").Str("type", e.Type).Msg("ignoring unknown frame")
	default:
		log.Debug().Str("component", "chatsession").Str("type", fmt.Sprintf("%T", ev)).Msg("ignoring event")
	}
}

// OnOpen re-sends the current selection on every new connection.
func (s *Session) OnOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setLastError(nil)
	s.selection.Resync()
	s.notify(SeveritySuccess, "Connected")
}

// OnFrame decodes and dispatches one frame. Frames that do not decode are
// dropped.
func (s *Session) OnFrame(data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("component", "chatsession").Int("bytes", len(data)).Msg("dropping unparsable frame")
		return
	}
	s.Dispatch(ev)
}

func (s *Session) OnClose(code int, reconnectIn time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reconnectIn > 0 {
		s.setLastError(errors.Errorf("connection closed with code %d", code))
		s.notify(SeverityError, fmt.Sprintf("Connection lost. Retrying in %s...", reconnectIn))
		return
	}
	s.notify(SeverityInfo, "Connection closed")
}

func (s *Session) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setLastError(err)
	s.notify(SeverityError, "Connection error: "+err.Error())
}

func (s *Session) notify(sev Severity, msg string) {
	s.notifier.Notify(Notification{Severity: sev, Message: msg, At: s.now()})
}

func (s *Session) setAwaiting(v bool) {
	s.stateMu.Lock()
	s.awaiting = v
	s.stateMu.Unlock()
}

func (s *Session) setLastError(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
}
