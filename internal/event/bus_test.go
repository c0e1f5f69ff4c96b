package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

func TestPublish_topic_and_wildcard(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var topicHits, allHits int
	bus.Subscribe("supervisor.poller.state", func(context.Context, plugin.Event) { topicHits++ })
	bus.Subscribe("discovery.run.started", func(context.Context, plugin.Event) { topicHits++ })
	bus.SubscribeAll(func(context.Context, plugin.Event) { allHits++ })

	bus.Publish(context.Background(), plugin.Event{Topic: "supervisor.poller.state"})

	if topicHits != 1 {
		t.Errorf("topic hits = %d, want 1", topicHits)
	}
	if allHits != 1 {
		t.Errorf("wildcard hits = %d, want 1", allHits)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())

	hits := 0
	unsub := bus.Subscribe("inventory.device.created", func(context.Context, plugin.Event) { hits++ })
	bus.Publish(context.Background(), plugin.Event{Topic: "inventory.device.created"})
	unsub()
	bus.Publish(context.Background(), plugin.Event{Topic: "inventory.device.created"})

	if hits != 1 {
		t.Errorf("hits = %d, want 1 after unsubscribe", hits)
	}
}

func TestPublish_survives_handler_panic(t *testing.T) {
	bus := NewBus(zap.NewNop())

	called := false
	bus.Subscribe("t", func(context.Context, plugin.Event) { panic("bad handler") })
	bus.Subscribe("t", func(context.Context, plugin.Event) { called = true })

	bus.Publish(context.Background(), plugin.Event{Topic: "t"})
	if !called {
		t.Error("panic in one handler should not skip the next")
	}
}

func TestPublishAsync_delivers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe("t", func(context.Context, plugin.Event) { wg.Done() })

	bus.PublishAsync(context.Background(), plugin.Event{Topic: "t"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}
}
