package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"nearbybot/pkg/chat"
)

func TestDrainEventsWaitsForHandlers(t *testing.T) {
	events := make(chan chat.Event)
	var handled atomic.Int32

	go func() {
		for i := 0; i < 8; i++ {
			events <- chat.Event{Kind: chat.EventText, ChatID: int64(i)}
		}
		close(events)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainEvents(context.Background(), events, func(ctx context.Context, ev chat.Event) {
			time.Sleep(10 * time.Millisecond)
			handled.Add(1)
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drainEvents did not return after channel close")
	}
	if got := handled.Load(); got != 8 {
		t.Errorf("drainEvents returned before all handlers finished: %d of 8", got)
	}
}

func TestDrainEventsEmptyChannel(t *testing.T) {
	events := make(chan chat.Event)
	close(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainEvents(context.Background(), events, func(context.Context, chat.Event) {
			t.Error("handler must not run for a closed empty channel")
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drainEvents did not return")
	}
}
