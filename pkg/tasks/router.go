package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	wla "github.com/ma-hartma/watermill-logrus-adapter"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/pkg/models"
)

const (
	DefaultTaskThrottle = 50 // messages per second
	DefaultMaxRetries   = 5
)

var _ models.TaskRouter = (*TaskRouter)(nil)

// TaskRouter is a wrapper around watermill's Router that adds some
// functionality for managing tasks and handlers. Every handler gets its own
// subscriber from the PubSub.
type TaskRouter struct {
	*message.Router
	pubsub PubSub
	logger watermill.LoggerAdapter
}

func NewTaskRouter(cfg *config.Config, pubsub PubSub) (*TaskRouter, error) {
	wlog := wla.NewLogrusLogger(log)

	router, err := message.NewRouter(message.RouterConfig{}, wlog)
	if err != nil {
		return nil, err
	}

	throttle := cfg.Tasks.Throttle
	if throttle <= 0 {
		throttle = DefaultTaskThrottle
	}
	maxRetries := cfg.Tasks.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	router.AddMiddleware(
		// CorrelationID will copy the correlation id from the incoming message's metadata to the produced messages
		middleware.CorrelationID,

		// Throttle limits the number of messages processed per second.
		middleware.NewThrottle(throttle, time.Second).Middleware,

		// Recoverer handles panics from handlers.
		// In this case, it passes them as errors to the Retry middleware.
		middleware.Recoverer,

		// The handler function is retried if it returns an error.
		// After MaxRetries, the message is Nacked and it's up to the PubSub to resend it.
		middleware.Retry{
			MaxRetries:      maxRetries,
			InitialInterval: 500 * time.Millisecond,
			Multiplier:      1.5,
			Logger:          wlog,
		}.Middleware,
	)

	return &TaskRouter{
		Router: router,
		pubsub: pubsub,
		logger: wlog,
	}, nil
}

// AddTask adds a task handler to the router.
func (tr *TaskRouter) AddTask(_ context.Context, name string, taskType models.TaskTopic, task models.Task) {
	subscriber, err := tr.pubsub.NewSubscriber()
	if err != nil {
		log.Errorf("failed to create subscriber for task %s: %v", taskType, err)
		return
	}
	tr.AddNoPublisherHandler(
		name,
		string(taskType),
		subscriber,
		TaskHandler(task),
	)
}

// Close stops the router and then the pub/sub it consumes from.
func (tr *TaskRouter) Close() (err error) {
	routerErr := tr.Router.Close()
	defer func() {
		psErr := tr.pubsub.Close()
		if err == nil {
			err = psErr
		}
	}()
	if routerErr != nil {
		err = routerErr
	}
	return err
}

// TaskHandler returns a message handler function for the given task.
// Handlers are NoPublishHandlerFuncs i.e. do not publish messages.
func TaskHandler(task models.Task) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		err := task.Execute(msg.Context(), msg)
		if err != nil {
			task.HandleError(err)
			return err
		}
		return nil
	}
}

// RunTaskRouter builds the router and publisher, registers the tasks and
// starts the router in the background. It returns once the router is
// running, so tasks published afterwards are not lost.
func RunTaskRouter(ctx context.Context, appState *models.AppState, pubsub PubSub) error {
	router, err := NewTaskRouter(appState.Config, pubsub)
	if err != nil {
		return fmt.Errorf("failed to create task router: %w", err)
	}

	publisher, err := NewTaskPublisher(pubsub)
	if err != nil {
		return err
	}
	Initialize(ctx, appState, router)

	appState.TaskRouter = router
	appState.TaskPublisher = publisher

	go func() {
		log.Info("running task router")
		if err := router.Run(ctx); err != nil {
			log.Errorf("task router stopped: %v", err)
		}
	}()

	select {
	case <-router.Running():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
