package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestChannelBus(t *testing.T) {
	eventBus := NewChannelBus(100)
	defer eventBus.Close()
	ctx := context.Background()

	t.Run("PublishSubscribe", func(t *testing.T) {
		var received atomic.Int64
		var lastKey atomic.Value

		sub, err := eventBus.Subscribe(ctx, domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
			received.Add(1)
			lastKey.Store(msg.Key)
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		if err := eventBus.Publish(ctx, domain.TopicAssessmentCompleted, "cust-001", []byte(`{"ok":true}`)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		deadline := time.Now().Add(time.Second)
		for received.Load() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if received.Load() != 1 {
			t.Errorf("expected 1 message, got %d", received.Load())
		}
		if key, _ := lastKey.Load().(string); key != "cust-001" {
			t.Errorf("expected key cust-001, got %q", key)
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var received atomic.Int64
		sub, err := eventBus.Subscribe(ctx, domain.TopicFraudAlert, func(ctx context.Context, msg *domain.Message) error {
			received.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		_ = eventBus.Publish(ctx, domain.TopicAssessmentRequested, "cust-002", []byte("x"))

		time.Sleep(20 * time.Millisecond)
		if received.Load() != 0 {
			t.Errorf("subscriber should not receive other topics, got %d", received.Load())
		}
	})

	t.Run("PublishWithoutSubscribers", func(t *testing.T) {
		if err := eventBus.Publish(ctx, "nobody.listens", "k", []byte("x")); err != nil {
			t.Errorf("publish without subscribers should succeed: %v", err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := eventBus.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestChannelBusFullBufferDoesNotBlock(t *testing.T) {
	eventBus := NewChannelBus(1)
	defer eventBus.Close()
	ctx := context.Background()

	block := make(chan struct{})
	_, err := eventBus.Subscribe(ctx, "slow.topic", func(ctx context.Context, msg *domain.Message) error {
		<-block
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer close(block)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_ = eventBus.Publish(ctx, "slow.topic", "k", []byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestChannelBusClosed(t *testing.T) {
	eventBus := NewChannelBus(10)
	eventBus.Close()

	if err := eventBus.Publish(context.Background(), "t", "k", nil); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if _, err := eventBus.Subscribe(context.Background(), "t", nil); err == nil {
		t.Error("expected error subscribing to closed bus")
	}
	if err := eventBus.Ping(context.Background()); err == nil {
		t.Error("expected ping failure on closed bus")
	}
}

func TestNewBusFactory(t *testing.T) {
	b, err := New(domain.BusConfig{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*ChannelBus); !ok {
		t.Errorf("expected ChannelBus, got %T", b)
	}

	if _, err := New(domain.BusConfig{Type: "bogus"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}
