package connection

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/hexchat/pkg/chatsession/protocol"
)

// DefaultReconnectDelay is the fixed wait before reconnecting after an
// abnormal close. There is no backoff and no attempt limit.
const DefaultReconnectDelay = 5 * time.Second

const (
	closeWriteTimeout = time.Second
	writeTimeout      = 10 * time.Second
)

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusOpen
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives connection lifecycle events. Callbacks run on the
// manager's goroutines, one at a time per connection, and must not call
// Close.
type Handler interface {
	// OnOpen runs before any frame of the new connection is delivered.
	OnOpen()
	OnFrame(data []byte)
	// OnClose reports the close code. reconnectIn is zero when no reconnect
	// was scheduled.
	OnClose(code int, reconnectIn time.Duration)
	OnError(err error)
}

type Option func(*Manager)

func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.scheduler = s
		}
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reconnectDelay = d
		}
	}
}

// Manager owns the single websocket of a chat session. The handler is never
// called while the manager's lock is held.
type Manager struct {
	dialer         Dialer
	scheduler      Scheduler
	handler        Handler
	reconnectDelay time.Duration

	// writeMu serializes data frames. It is never taken with mu held, so a
	// stalled write cannot block Close.
	writeMu sync.Mutex

	mu         sync.Mutex
	status     Status
	url        string
	baseCtx    context.Context
	conn       Conn
	gen        uint64
	timer      Timer
	cancelDial context.CancelFunc
	readerDone chan struct{}
	terminated bool
}

func NewManager(handler Handler, opts ...Option) *Manager {
	m := &Manager{
		dialer:         WebsocketDialer{},
		scheduler:      SystemScheduler,
		handler:        handler,
		reconnectDelay: DefaultReconnectDelay,
		status:         StatusDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ReconnectPending reports whether a reconnect timer is armed.
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// Connect dials the chat endpoint of wsHost. A failed dial is reported to
// the handler and retried like an abnormal close; Connect itself only fails
// on bad arguments or when a connection is already open or being dialed.
func (m *Manager) Connect(ctx context.Context, wsHost, token string) error {
	u, err := ChatURL(wsHost, token)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.status == StatusConnecting || m.status == StatusOpen {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.url = u
	m.baseCtx = ctx
	m.terminated = false
	m.stopTimerLocked()
	m.mu.Unlock()

	m.dial()
	return nil
}

func (m *Manager) dial() {
	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	m.status = StatusConnecting
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.cancelDial = cancel
	u := m.url
	m.mu.Unlock()

	log.Debug().Str("component", "connection").Uint64("gen", gen).Msg("dialing")
	conn, err := m.dialer.DialContext(ctx, u)
	cancel()

	m.mu.Lock()
	m.cancelDial = nil
	if gen != m.gen || m.terminated {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.status = StatusClosed
		delay := m.scheduleReconnectLocked(gen)
		m.mu.Unlock()

		log.Warn().Err(err).Str("component", "connection").Dur("reconnect_in", delay).Msg("dial failed")
		m.handler.OnError(&TransportError{Op: "dial", Err: err})
		m.handler.OnClose(CloseAbnormal, delay)
		return
	}
	m.conn = conn
	m.status = StatusOpen
	done := make(chan struct{})
	m.readerDone = done
	m.mu.Unlock()

	log.Info().Str("component", "connection").Uint64("gen", gen).Msg("connected")
	m.handler.OnOpen()
	go m.readLoop(gen, conn, done)
}

func (m *Manager) readLoop(gen uint64, conn Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(gen, conn, err)
			return
		}
		if !m.isCurrent(gen) {
			continue
		}
		m.handler.OnFrame(data)
	}
}

func (m *Manager) handleReadError(gen uint64, conn Conn, err error) {
	code := CloseAbnormal
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}

	m.mu.Lock()
	if gen != m.gen || m.terminated {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.readerDone = nil
	m.status = StatusClosed
	var delay time.Duration
	if code == CloseNormal {
		m.terminated = true
	} else {
		delay = m.scheduleReconnectLocked(gen)
	}
	m.mu.Unlock()
	_ = conn.Close()

	if code == CloseNormal {
		log.Info().Str("component", "connection").Msg("closed by server")
	} else {
		log.Warn().Err(err).Str("component", "connection").Int("code", code).Dur("reconnect_in", delay).Msg("connection lost")
	}
	m.handler.OnClose(code, delay)
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && !m.terminated
}

// Send encodes cmd and writes it as one text frame. A write that does not
// complete within writeTimeout fails with a TransportError.
func (m *Manager) Send(cmd protocol.Command) error {
	m.mu.Lock()
	conn := m.conn
	open := m.status == StatusOpen && conn != nil
	m.mu.Unlock()

	if !open {
		return ErrNotConnected
	}
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Close cancels any pending reconnect or dial, closes the websocket with a
// normal close code and waits for the read loop to exit. It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.terminated = true
	m.gen++
	m.stopTimerLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	m.conn = nil
	done := m.readerDone
	m.readerDone = nil
	if m.status != StatusDisconnected {
		m.status = StatusClosed
	}
	m.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(CloseNormal, "client closing")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil {
			log.Debug().Err(err).Str("component", "connection").Msg("close frame not sent")
		}
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (m *Manager) scheduleReconnectLocked(gen uint64) time.Duration {
	m.stopTimerLocked()
	delay := m.reconnectDelay
	m.timer = m.scheduler.AfterFunc(delay, func() { m.reconnect(gen) })
	return delay
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.terminated {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()
	m.dial()
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
