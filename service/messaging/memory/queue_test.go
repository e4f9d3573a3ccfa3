package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/fleetsched/service/messaging"
)

type notice struct {
	ClientID string
	Outcome  string
}

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[notice](DefaultConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &notice{ClientID: "v1", Outcome: "granted"}))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, notice{ClientID: "v1", Outcome: "granted"}, *message.T())

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
	assert.Error(t, message.Nack(nil))
}

func TestQueue_Nack(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[notice](config)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &notice{ClientID: "v1"}))
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, message.Nack(fmt.Errorf("listener busy")))

	redelivered, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", redelivered.T().ClientID)
	require.NoError(t, redelivered.Nack(fmt.Errorf("listener busy")))

	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_NonBlocking(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 2
	config.NonBlocking = true
	queue := NewQueue[notice](config)
	ctx := context.Background()

	assert.NoError(t, queue.Publish(ctx, &notice{ClientID: "v1"}))
	assert.NoError(t, queue.Publish(ctx, &notice{ClientID: "v2"}))
	assert.ErrorIs(t, queue.Publish(ctx, &notice{ClientID: "v3"}), messaging.ErrQueueFull)
	assert.Equal(t, 2, queue.Size())
}

func TestQueue_ContextCancellation(t *testing.T) {
	queue := NewQueue[notice](DefaultConfig())
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(cancelled, &notice{}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.NoError(t, queue.Publish(context.Background(), &notice{ClientID: "v1"}))
	message, err := queue.Consume(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, message)
}

func TestQueue_Concurrency(t *testing.T) {
	queue := NewQueue[notice](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	producers, perProducer := 8, 25

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &notice{ClientID: fmt.Sprintf("v%d", producer)}))
			}
		}(i)
	}

	consumed := 0
	for consumed < producers*perProducer {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		require.NoError(t, message.Ack())
		consumed++
	}
	wg.Wait()
	assert.Equal(t, 0, queue.Size())
}
