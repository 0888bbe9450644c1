package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoundedFIFO(t *testing.T) {
	q := NewBounded[string](3)
	require.True(t, q.TryPush("a"))
	require.True(t, q.TryPush("b"))
	require.True(t, q.TryPush("c"))
	require.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pull(context.Background(), time.Second)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	require.Zero(t, q.Len())
}

func TestBoundedTryPushDropsWhenFull(t *testing.T) {
	q := NewBounded[int](1)
	require.True(t, q.TryPush(1))
	require.False(t, q.TryPush(2))

	got, ok := q.Pull(context.Background(), time.Second)
	require.True(t, ok)
	require.Equal(t, 1, got)
}

func TestBoundedMinimumCapacity(t *testing.T) {
	require.Equal(t, 1, NewBounded[int](0).Cap())
}

func TestBoundedPullTimesOut(t *testing.T) {
	q := NewBounded[int](1)
	start := time.Now()
	_, ok := q.Pull(context.Background(), 20*time.Millisecond)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBoundedPullCancelled(t *testing.T) {
	q := NewBounded[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Pull(ctx, time.Minute)
	require.False(t, ok)
}

func TestBoundedPushBlocksUntilSpace(t *testing.T) {
	q := NewBounded[int](1)
	require.True(t, q.TryPush(1))

	done := make(chan error, 1)
	go func() {
		done <- q.Push(context.Background(), 2)
	}()

	select {
	case <-done:
		t.Fatal("push returned while queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	got, ok := q.Pull(context.Background(), time.Second)
	require.True(t, ok)
	require.Equal(t, 1, got)
	require.NoError(t, <-done)

	got, ok = q.Pull(context.Background(), time.Second)
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func TestBoundedPushHonorsContext(t *testing.T) {
	q := NewBounded[int](1)
	require.True(t, q.TryPush(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Push(ctx, 2), context.DeadlineExceeded)
}

func TestBoundedCloseKeepsQueuedItems(t *testing.T) {
	q := NewBounded[int](2)
	require.True(t, q.TryPush(7))
	q.Close()
	q.Close()

	require.False(t, q.TryPush(8))
	require.ErrorIs(t, q.Push(context.Background(), 8), ErrClosed)

	got, ok := q.Pull(context.Background(), time.Second)
	require.True(t, ok)
	require.Equal(t, 7, got)

	_, ok = q.Pull(context.Background(), time.Second)
	require.False(t, ok)
}

func TestBoundedConcurrentProducersPreserveCount(t *testing.T) {
	const producers = 8
	const perProducer = 50

	q := NewBounded[int](16)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				require.NoError(t, q.Push(context.Background(), i))
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for received < producers*perProducer {
		if _, ok := q.Pull(context.Background(), time.Second); ok {
			received++
		}
	}
	<-done
	require.Equal(t, producers*perProducer, received)
}

func TestBoundedConcurrentCloseIsSafe(t *testing.T) {
	q := NewBounded[int](1)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			q.Close()
		}()
	}
	close(start)
	wg.Wait()

	require.False(t, q.TryPush(1))
	require.ErrorIs(t, q.Push(context.Background(), 1), ErrClosed)
}
