package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	if v := <-ch; v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestBusNonBlockingPublish(t *testing.T) {
	bus := New[int]()
	ch := bus.Subscribe()
	for i := 0; i < 20; i++ {
		bus.Publish(i) // must not block once the buffer fills
	}
	if v := <-ch; v != 0 {
		t.Fatalf("expected first event, got %d", v)
	}
	bus.Unsubscribe(ch)
}

func TestBusClose(t *testing.T) {
	bus := New[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatal("expected closed channel")
	}
	if _, ok := <-ch2; ok {
		t.Fatal("expected closed channel")
	}
	// Publish and Close after close are no-ops.
	bus.Publish(1)
	bus.Close()
	if ch := bus.Subscribe(); ch == nil {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
