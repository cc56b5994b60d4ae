package events

import (
	"testing"
	"time"
)

func TestSubscriberReceivesPublishedEvent(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventTaskCreated, Message: "task created"})

	select {
	case ev := <-sub:
		if ev.Type != EventTaskCreated {
			t.Errorf("Type = %q, want %q", ev.Type, EventTaskCreated)
		}
		if ev.Timestamp.IsZero() {
			t.Error("Timestamp should be set on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", b.SubscriberCount())
	}

	b.Unsubscribe(sub)
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", b.SubscriberCount())
	}
}
