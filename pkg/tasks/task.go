// Package tasks runs asynchronous analyze jobs on a watermill router.
package tasks

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
)

var log = internal.GetLogger()

type BaseTask struct {
	appState *models.AppState
}

func (b *BaseTask) Execute(
	ctx context.Context, // nolint: revive
	msg *message.Message, // nolint: revive
) error {
	return nil
}

func (b *BaseTask) HandleError(err error) {
	log.Errorf("Task HandleError error: %s", err)
}

// Initialize registers every enabled task with the router.
func Initialize(ctx context.Context, appState *models.AppState, router models.TaskRouter) {
	log.Info("Initializing tasks")

	addTask := func(ctx context.Context, name string, topic models.TaskTopic, enabled bool, newTask func() models.Task) {
		if enabled {
			router.AddTask(ctx, name, topic, newTask())
			log.Infof("%s task added to task router", name)
		}
	}

	addTask(
		ctx,
		string(models.AnalyzeJobTopic),
		models.AnalyzeJobTopic,
		appState.JobStore != nil,
		func() models.Task { return NewAnalyzeJobTask(appState) },
	)
}
