package bus

import (
	"testing"
)

func TestBus_FanOutInRegistrationOrder(t *testing.T) {
	b := New()

	var calls []string
	b.Subscribe(func(text string) { calls = append(calls, "a:"+text) })
	b.Subscribe(func(text string) { calls = append(calls, "b:"+text) })
	b.Subscribe(func(text string) { calls = append(calls, "c:"+text) })

	b.Notify("x")
	b.Notify("x")

	want := []string{"a:x", "b:x", "c:x", "a:x", "b:x", "c:x"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, calls)
		}
	}
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	b := New()

	count := 0
	sub := b.Subscribe(func(string) { count++ })
	other := b.Subscribe(func(string) {})

	sub.Unsubscribe()
	sub.Unsubscribe()

	b.Notify("x")
	if count != 0 {
		t.Errorf("unsubscribed handler called %d times", count)
	}
	if b.Len() != 1 || !other.Active() {
		t.Errorf("expected the other subscription to survive, len=%d", b.Len())
	}
	if sub.Active() {
		t.Error("expected subscription to be inactive")
	}
}

func TestBus_UnsubscribeDuringFanOut(t *testing.T) {
	b := New()

	var second *Subscription
	b.Subscribe(func(string) { second.Unsubscribe() })
	called := false
	second = b.Subscribe(func(string) { called = true })

	b.Notify("x")
	if called {
		t.Error("handler removed mid fan-out should not be called")
	}
}

func TestBus_PanicPropagates(t *testing.T) {
	b := New()
	b.Subscribe(func(string) { panic("boom") })

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected subscriber panic to propagate")
		}
	}()
	b.Notify("x")
}

func TestBus_Close(t *testing.T) {
	b := New()
	count := 0
	sub := b.Subscribe(func(string) { count++ })

	b.Close()
	b.Close()
	b.Notify("x")

	if count != 0 || sub.Active() || b.Len() != 0 {
		t.Errorf("expected closed bus to drop subscriptions")
	}
	sub.Unsubscribe()
}
