package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type started struct{ unit string }
type finished struct{ unit string }

func TestPublishDispatchesByType(t *testing.T) {
	b := New()
	Use(b)
	t.Cleanup(func() { Use(nil) })

	var got []string
	Subscribe(func(ctx context.Context, e started) { got = append(got, "first:"+e.unit) })
	Subscribe(func(ctx context.Context, e started) { got = append(got, "second:"+e.unit) })
	Subscribe(func(ctx context.Context, e finished) { got = append(got, "finished:"+e.unit) })

	Publish(context.Background(), started{unit: "Q"})
	Publish(context.Background(), finished{unit: "Q"})
	require.Equal(t, []string{"first:Q", "second:Q", "finished:Q"}, got)
}

func TestUnsubscribeRemovesOnlyItsHandler(t *testing.T) {
	b := New()
	var got []string
	first := SubscribeTo(b, func(ctx context.Context, e started) { got = append(got, "first") })
	SubscribeTo(b, func(ctx context.Context, e started) { got = append(got, "second") })
	require.Equal(t, 2, Subscribers[started](b))

	first()
	first()
	require.Equal(t, 1, Subscribers[started](b))

	b.emit(context.Background(), started{})
	require.Equal(t, []string{"second"}, got)
}

func TestPublishWithoutBus(t *testing.T) {
	Use(nil)
	require.Nil(t, Current())
	called := false
	unsubscribe := Subscribe(func(ctx context.Context, e started) { called = true })
	Publish(context.Background(), started{})
	unsubscribe()
	require.False(t, called)
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	Use(b)
	t.Cleanup(func() { Use(nil) })

	var mu sync.Mutex
	count := 0
	Subscribe(func(ctx context.Context, e finished) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Publish(context.Background(), finished{})
		}()
	}
	wg.Wait()
	require.Equal(t, 16, count)
}
