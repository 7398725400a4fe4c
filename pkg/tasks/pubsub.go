package tasks

import (
	"database/sql"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/veilpii/veil/config"
)

// PubSub hands out the subscriber for each task handler and the publisher
// used to enqueue tasks.
type PubSub interface {
	NewSubscriber() (message.Subscriber, error)
	NewPublisher() (message.Publisher, error)
	Close() error
}

// NewPubSub returns the in-process channel pub/sub, or the Postgres backed
// queue when tasks.pubsub is "postgres".
func NewPubSub(cfg *config.Config, logger watermill.LoggerAdapter) (PubSub, error) {
	switch cfg.Tasks.PubSub {
	case "", "memory":
		return NewChannelPubSub(logger), nil
	case "postgres":
		db, err := NewPostgresConnForQueue(cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return &sqlPubSub{
			db:     db,
			logger: logger,
			queue:  QueueConfig{ConsumerGroup: cfg.Tasks.ConsumerGroup, PollInterval: cfg.Tasks.PollInterval},
		}, nil
	default:
		return nil, fmt.Errorf("unknown tasks.pubsub %q", cfg.Tasks.PubSub)
	}
}

// ChannelPubSub delivers messages between goroutines of one process. Messages
// published while no handler is subscribed are dropped.
type ChannelPubSub struct {
	ch *gochannel.GoChannel
}

func NewChannelPubSub(logger watermill.LoggerAdapter) *ChannelPubSub {
	return &ChannelPubSub{
		ch: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
	}
}

func (p *ChannelPubSub) NewSubscriber() (message.Subscriber, error) { return p.ch, nil }

func (p *ChannelPubSub) NewPublisher() (message.Publisher, error) { return p.ch, nil }

func (p *ChannelPubSub) Close() error { return p.ch.Close() }

type sqlPubSub struct {
	db     *sql.DB
	logger watermill.LoggerAdapter
	queue  QueueConfig
}

func (p *sqlPubSub) NewSubscriber() (message.Subscriber, error) {
	return NewSQLQueueSubscriber(p.db, p.queue, p.logger)
}

func (p *sqlPubSub) NewPublisher() (message.Publisher, error) {
	return NewSQLQueuePublisher(p.db, p.logger)
}

func (p *sqlPubSub) Close() error { return p.db.Close() }

// NewPostgresConnForQueue opens a database/sql connection through pgx. The
// queue must not share the bun.DB: bun runs at an isolation level that is
// incompatible with watermill's SQL subscriber.
func NewPostgresConnForQueue(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required for the postgres task queue")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue connection: %w", err)
	}
	return db, nil
}
