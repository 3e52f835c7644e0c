package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
)

func newTestService() interfaces.EventService {
	return NewService(arbor.NewLogger())
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	svc := newTestService()
	err := svc.Subscribe(interfaces.EventItemProcessed, nil)
	assert.Error(t, err)
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	svc := newTestService()

	var calls atomic.Int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return nil
	}
	require.NoError(t, svc.Subscribe(interfaces.EventItemProcessed, handler))
	require.NoError(t, svc.Subscribe(interfaces.EventItemProcessed, handler))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventItemProcessed,
	}))

	assert.Eventually(t, func() bool {
		return calls.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	svc := newTestService()
	err := svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventRunCompleted})
	assert.NoError(t, err)
}

func TestPublishSyncWaitsForHandlers(t *testing.T) {
	svc := newTestService()

	var calls atomic.Int32
	require.NoError(t, svc.Subscribe(interfaces.EventRunCompleted, func(ctx context.Context, event interfaces.Event) error {
		time.Sleep(20 * time.Millisecond)
		calls.Add(1)
		return nil
	}))

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventRunCompleted,
	}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPublishSyncReportsHandlerErrors(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.Subscribe(interfaces.EventRunCompleted, func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("handler broke")
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRunCompleted})
	assert.Error(t, err)
}

func TestCloseDropsSubscribers(t *testing.T) {
	svc := newTestService()

	var calls atomic.Int32
	require.NoError(t, svc.Subscribe(interfaces.EventItemProcessed, func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, svc.Close())

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventItemProcessed,
	}))
	assert.Equal(t, int32(0), calls.Load())
}
