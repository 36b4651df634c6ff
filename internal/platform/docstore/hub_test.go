package docstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHub_RegisterDeliversInitialState(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	delivered := make(chan struct{}, 4)
	sub := hub.Register(context.Background(), "walks", "", func(context.Context) {
		delivered <- struct{}{}
	})
	defer sub.Unsubscribe()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("no initial delivery")
	}
}

func TestHub_RegisterWhilePublishing(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			hub.Publish("walks", "")
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			sub := hub.Register(context.Background(), "walks", "", func(context.Context) {})
			sub.Unsubscribe()
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Register blocked while a publish was in flight")
	}
	stop.Store(true)
	wg.Wait()
}

func TestHub_PublishFiltersByDocument(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var calls atomic.Int32
	sub := hub.Register(context.Background(), "walks", "w1", func(context.Context) {
		calls.Add(1)
	})
	defer sub.Unsubscribe()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("walks", "w2")
	hub.Publish("users", "")
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, calls.Load())

	hub.Publish("walks", "w1")
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestHub_CloseRejectsNewSubscriptions(t *testing.T) {
	hub := NewHub()
	hub.Close()

	var calls atomic.Int32
	sub := hub.Register(context.Background(), "walks", "", func(context.Context) { calls.Add(1) })
	sub.Unsubscribe()
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, calls.Load())
	require.Zero(t, hub.Len())
}
