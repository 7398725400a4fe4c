package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/veilpii/veil/pkg/models"
)

var _ models.TaskPublisher = (*TaskPublisher)(nil)

type TaskPublisher struct {
	publisher message.Publisher
}

func NewTaskPublisher(pubsub PubSub) (*TaskPublisher, error) {
	publisher, err := pubsub.NewPublisher()
	if err != nil {
		return nil, fmt.Errorf("failed to create task publisher: %w", err)
	}
	return &TaskPublisher{
		publisher: publisher,
	}, nil
}

// Publish JSON encodes payload onto the task's topic. A "correlation_id"
// metadata entry is carried by the router's CorrelationID middleware.
func (t *TaskPublisher) Publish(taskType models.TaskTopic, metadata map[string]string, payload any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	log.Debugf("publishing %s task (%d bytes)", taskType, len(p))
	m := message.NewMessage(watermill.NewUUID(), p)
	for k, v := range metadata {
		m.Metadata.Set(k, v)
	}
	if id := metadata["correlation_id"]; id != "" {
		middleware.SetCorrelationID(id, m)
	}

	if err := t.publisher.Publish(string(taskType), m); err != nil {
		return fmt.Errorf("failed to publish task message: %w", err)
	}

	return nil
}

func (t *TaskPublisher) Close() error {
	if err := t.publisher.Close(); err != nil {
		return fmt.Errorf("failed to close task publisher: %w", err)
	}

	return nil
}
