package agent

import (
	"testing"

	"github.com/haasonsaas/scout/pkg/models"
)

func TestEventBusDeliversInOrder(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe("s1")
	defer unsubscribe()

	bus.Emit(models.ToolEvent{SessionID: "s1", Name: "search", Status: models.ToolEventStarted})
	bus.Emit(models.ToolEvent{SessionID: "s1", Name: "search", Status: models.ToolEventCompleted})

	first := <-ch
	second := <-ch
	if first.Status != models.ToolEventStarted || second.Status != models.ToolEventCompleted {
		t.Errorf("order = %s, %s", first.Status, second.Status)
	}
}

func TestEventBusIsolatesSessions(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe("s1")
	defer unsubscribe()

	bus.Emit(models.ToolEvent{SessionID: "other", Name: "search", Status: models.ToolEventStarted})

	select {
	case event := <-ch:
		t.Errorf("received foreign event: %+v", event)
	default:
	}
}

func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe("s1")

	unsubscribe()
	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}
	if bus.SubscriberCount("s1") != 0 {
		t.Error("subscriber still registered")
	}
	// Unsubscribing twice is a no-op.
	unsubscribe()

	// Emitting to a session with no subscribers must not panic.
	bus.Emit(models.ToolEvent{SessionID: "s1", Name: "search", Status: models.ToolEventStarted})
}
