package connection

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	CloseNormal   = websocket.CloseNormalClosure
	CloseAbnormal = websocket.CloseAbnormalClosure
)

// Conn is the subset of *websocket.Conn the manager uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) DialContext(ctx context.Context, rawURL string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial: handshake status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "dial")
	}
	return conn, nil
}

// ChatURL builds the chat endpoint for wsHost with the access token in the
// query string. http and https hosts are mapped to ws and wss.
func ChatURL(wsHost, token string) (string, error) {
	if strings.TrimSpace(wsHost) == "" {
		return "", errors.New("ws host is empty")
	}
	if token == "" {
		return "", errors.New("access token is empty")
	}
	u, err := url.Parse(strings.TrimRight(wsHost, "/") + "/ws/chat/")
	if err != nil {
		return "", errors.Wrapf(err, "parse ws host %q", wsHost)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported ws host scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Errorf("ws host %q has no host", wsHost)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
