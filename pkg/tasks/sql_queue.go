package tasks

import (
	"database/sql"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wsql "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
)

const defaultConsumerGroup = "veil"

// QueueConfig tunes the Postgres backed job queue.
type QueueConfig struct {
	// Instances sharing a consumer group split the jobs between them.
	ConsumerGroup string
	PollInterval  time.Duration
}

func (c QueueConfig) subscriberConfig() wsql.SubscriberConfig {
	group := c.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}
	return wsql.SubscriberConfig{
		ConsumerGroup:    group,
		PollInterval:     c.PollInterval,
		SchemaAdapter:    wsql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   &wsql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}
}

// NewSQLQueuePublisher writes jobs to one table per topic, creating it on
// first publish.
func NewSQLQueuePublisher(db *sql.DB, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wsql.NewPublisher(
		db,
		wsql.PublisherConfig{
			SchemaAdapter:        wsql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		logger,
	)
}

func NewSQLQueueSubscriber(
	db *sql.DB,
	cfg QueueConfig,
	logger watermill.LoggerAdapter,
) (message.Subscriber, error) {
	return wsql.NewSubscriber(db, cfg.subscriberConfig(), logger)
}
