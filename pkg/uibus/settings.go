package uibus

import (
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
)

const SectionSlug = "bus"

// Settings selects the transport UI events travel on. Without Redis the bus
// is in-process only.
type Settings struct {
	RedisEnabled  bool   `glazed:"bus-redis-enabled"`
	RedisAddr     string `glazed:"bus-redis-addr"`
	RedisGroup    string `glazed:"bus-redis-group"`
	RedisConsumer string `glazed:"bus-redis-consumer"`
}

// NewSection returns the glazed section for the bus settings.
func NewSection() (schema.Section, error) {
	return schema.NewSection(
		SectionSlug,
		"UI event bus (in-memory or Redis Streams)",
		schema.WithFields(
			fields.New("bus-redis-enabled", fields.TypeBool, fields.WithDefault(false),
				fields.WithHelp("Publish UI events to Redis Streams so other processes can follow the chat")),
			fields.New("bus-redis-addr", fields.TypeString, fields.WithDefault("localhost:6379"),
				fields.WithHelp("Redis address host:port")),
			fields.New("bus-redis-group", fields.TypeString, fields.WithDefault("hexchat-ui"),
				fields.WithHelp("Redis consumer group")),
			fields.New("bus-redis-consumer", fields.TypeString, fields.WithDefault("ui-1"),
				fields.WithHelp("Redis consumer name")),
		),
	)
}
