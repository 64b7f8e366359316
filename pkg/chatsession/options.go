package chatsession

import (
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/hexchat/pkg/chatsession/connection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/selection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
	"github.com/go-go-golems/hexchat/pkg/render"
)

// ActionHandler receives the payload of ui_actions frames.
type ActionHandler func(actions []map[string]any)

type Option func(*config) error

type config struct {
	profiles       []selection.Profile
	currentProfile string
	connOpts       []connection.Option
	notifier       Notifier
	renderer       render.Renderer
	actions        ActionHandler
	store          *store.Store
	now            func() time.Time
}

// WithProfiles sets the profiles from the startup lookup and the profile
// selected initially. An empty current id selects no profile.
func WithProfiles(profiles []selection.Profile, currentID string) Option {
	return func(c *config) error {
		c.profiles = profiles
		c.currentProfile = currentID
		return nil
	}
}

func WithDialer(d connection.Dialer) Option {
	return func(c *config) error {
		if d == nil {
			return errors.New("dialer is nil")
		}
		c.connOpts = append(c.connOpts, connection.WithDialer(d))
		return nil
	}
}

func WithScheduler(s connection.Scheduler) Option {
	return func(c *config) error {
		if s == nil {
			return errors.New("scheduler is nil")
		}
		c.connOpts = append(c.connOpts, connection.WithScheduler(s))
		return nil
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.Errorf("reconnect delay must be positive, got %s", d)
		}
		c.connOpts = append(c.connOpts, connection.WithReconnectDelay(d))
		return nil
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *config) error {
		if n == nil {
			return errors.New("notifier is nil")
		}
		c.notifier = n
		return nil
	}
}

func WithRenderer(r render.Renderer) Option {
	return func(c *config) error {
		if r == nil {
			return errors.New("renderer is nil")
		}
		c.renderer = r
		return nil
	}
}

func WithActionHandler(h ActionHandler) Option {
	return func(c *config) error {
		c.actions = h
		return nil
	}
}

// WithStore makes the session write into an existing store, typically one
// that already has observers attached.
func WithStore(s *store.Store) Option {
	return func(c *config) error {
		if s == nil {
			return errors.New("store is nil")
		}
		c.store = s
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		if now == nil {
			return errors.New("clock is nil")
		}
		c.now = now
		return nil
	}
}
