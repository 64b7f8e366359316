package uibus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/hexchat/pkg/chatsession"
	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
	"github.com/go-go-golems/hexchat/pkg/render"
)

const (
	TopicSnapshot     = "hexchat.snapshot"
	TopicNotification = "hexchat.notification"
)

// MessageView is a message as shown to a UI. HTML is sanitized.
type MessageView struct {
	ID           string    `json:"id"`
	Sender       string    `json:"sender"`
	Content      string    `json:"content"`
	HTML         string    `json:"html,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Streaming    bool      `json:"streaming,omitempty"`
	PackageLabel string    `json:"package_label,omitempty"`
}

type SnapshotEvent struct {
	ConversationID string        `json:"conversation_id"`
	PackageID      string        `json:"package_id"`
	Messages       []MessageView `json:"messages"`
}

type NotificationEvent struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Event carries exactly one of its fields.
type Event struct {
	Snapshot     *SnapshotEvent
	Notification *NotificationEvent
}

// Bus fans session state out to UI consumers over watermill.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	closers    []func() error
	closeOnce  sync.Once
	closeErr   error
}

var _ chatsession.Notifier = (*Bus)(nil)

// New builds an in-memory bus, or a Redis Streams backed one when enabled.
func New(s Settings) (*Bus, error) {
	if !s.RedisEnabled {
		return NewInMemory(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}
	logger := newLogger(log.Logger)

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis publisher")
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.RedisGroup,
		Consumer:      s.RedisConsumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis subscriber")
	}
	log.Info().Str("component", "uibus").Str("addr", s.RedisAddr).Str("group", s.RedisGroup).Msg("using redis streams")
	return &Bus{
		publisher:  pub,
		subscriber: sub,
		closers:    []func() error{sub.Close, pub.Close, client.Close},
	}, nil
}

// NewInMemory builds a bus on a watermill go channel. Publishing waits for
// subscribers to take the message so events arrive in order.
func NewInMemory() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, newLogger(log.Logger))
	return &Bus{publisher: ch, subscriber: ch, closers: []func() error{ch.Close}}
}

func (b *Bus) PublishSnapshot(snap store.Snapshot) error {
	ev := SnapshotEvent{
		ConversationID: snap.Conversation.ID,
		PackageID:      snap.Conversation.PackageID,
		Messages:       make([]MessageView, 0, len(snap.Messages)),
	}
	for _, m := range snap.Messages {
		view := MessageView{
			ID:           m.ID,
			Sender:       string(m.Sender),
			Content:      m.Content,
			Timestamp:    m.Timestamp,
			Streaming:    m.Streaming,
			PackageLabel: m.PackageLabel,
		}
		if m.HTML != "" {
			view.HTML = render.Sanitize(m.HTML)
		}
		ev.Messages = append(ev.Messages, view)
	}
	return b.publish(TopicSnapshot, ev)
}

// Observer returns a store observer publishing every snapshot.
func (b *Bus) Observer() store.Observer {
	return func(snap store.Snapshot) {
		if err := b.PublishSnapshot(snap); err != nil {
			log.Warn().Err(err).Str("component", "uibus").Msg("could not publish snapshot")
		}
	}
}

func (b *Bus) Notify(n chatsession.Notification) {
	ev := NotificationEvent{Severity: n.Severity.String(), Message: n.Message, At: n.At}
	if err := b.publish(TopicNotification, ev); err != nil {
		log.Warn().Err(err).Str("component", "uibus").Msg("could not publish notification")
	}
}

func (b *Bus) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", topic)
	}
	if err := b.publisher.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return errors.Wrapf(err, "publish %s", topic)
	}
	return nil
}

// Subscribe delivers events from both topics until ctx is done or the bus
// is closed. The returned channel is closed afterwards.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	snaps, err := b.subscriber.Subscribe(ctx, TopicSnapshot)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe snapshots")
	}
	notes, err := b.subscriber.Subscribe(ctx, TopicNotification)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe notifications")
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for snaps != nil || notes != nil {
			var (
				msg *message.Message
				ok  bool
				ev  Event
			)
			select {
			case msg, ok = <-snaps:
				if !ok {
					snaps = nil
					continue
				}
				var s SnapshotEvent
				if err := json.Unmarshal(msg.Payload, &s); err != nil {
					log.Warn().Err(err).Str("component", "uibus").Msg("bad snapshot payload")
					msg.Ack()
					continue
				}
				ev.Snapshot = &s
			case msg, ok = <-notes:
				if !ok {
					notes = nil
					continue
				}
				var n NotificationEvent
				if err := json.Unmarshal(msg.Payload, &n); err != nil {
					log.Warn().Err(err).Str("component", "uibus").Msg("bad notification payload")
					msg.Ack()
					continue
				}
				ev.Notification = &n
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		for _, c := range b.closers {
			if err := c(); err != nil && b.closeErr == nil {
				b.closeErr = err
			}
		}
	})
	return b.closeErr
}
