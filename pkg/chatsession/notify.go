package chatsession

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is a transient message for the user, shown as a toast or
// status line.
type Notification struct {
	Severity Severity
	Message  string
	At       time.Time
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the global logger.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	level := zerolog.InfoLevel
	switch n.Severity {
	case SeverityWarning:
		level = zerolog.WarnLevel
	case SeverityError:
		level = zerolog.ErrorLevel
	case SeveritySuccess, SeverityInfo:
	}
	log.WithLevel(level).Str("component", "chatsession").Str("severity", n.Severity.String()).Msg(n.Message)
}

// MultiNotifier fans a notification out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}
