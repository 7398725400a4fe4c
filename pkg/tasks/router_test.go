package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wla "github.com/ma-hartma/watermill-logrus-adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/config"
	"github.com/veilpii/veil/pkg/models"
)

func TestRunTaskRouter(t *testing.T) {
	ctx, done := context.WithTimeout(testCtx, 10*time.Second)
	defer done()

	appState := newTestAppState(t)
	pubsub := NewChannelPubSub(wla.NewLogrusLogger(log))

	require.NoError(t, RunTaskRouter(ctx, appState, pubsub))

	// check that the router is configured
	require.NotNil(t, appState.TaskRouter, "task router is nil")
	require.NotNil(t, appState.TaskPublisher, "task publisher is nil")
	assert.True(t, appState.TaskRouter.IsRunning())

	pending, err := SubmitAnalyzeJob(ctx, appState, &models.AnalyzeRequest{
		Text:          "pay with 4095-2609-9393-4932",
		CorrelationID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, pending.Status)

	var result *models.JobResult
	require.Eventually(t, func() bool {
		result, err = appState.JobStore.Get(ctx, pending.UUID)
		return err == nil && result.Status != models.JobPending
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, models.JobCompleted, result.Status)
	require.NotNil(t, result.Response)
	assert.Len(t, result.Response.Results, 1)

	assert.NoError(t, appState.TaskRouter.Close(), "failed to close task router")
}

func TestNewPubSub(t *testing.T) {
	logger := watermill.NopLogger{}

	cfg := config.Defaults()
	ps, err := NewPubSub(&cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &ChannelPubSub{}, ps)
	assert.NoError(t, ps.Close())

	cfg.Tasks.PubSub = "postgres"
	_, err = NewPubSub(&cfg, logger)
	assert.Error(t, err, "postgres queue needs a dsn")

	cfg.Tasks.PubSub = "kafka"
	_, err = NewPubSub(&cfg, logger)
	assert.Error(t, err)
}

func TestQueueConfig(t *testing.T) {
	sc := QueueConfig{}.subscriberConfig()
	assert.Equal(t, defaultConsumerGroup, sc.ConsumerGroup)

	sc = QueueConfig{ConsumerGroup: "workers", PollInterval: 250 * time.Millisecond}.subscriberConfig()
	assert.Equal(t, "workers", sc.ConsumerGroup)
	assert.Equal(t, 250*time.Millisecond, sc.PollInterval)
	assert.True(t, sc.InitializeSchema)
}
