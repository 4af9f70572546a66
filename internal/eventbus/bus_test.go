package eventbus

import (
	"testing"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(2)
	c, unsubC := b.Subscribe(2)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: RecipientUnreachable, Data: RecipientIssue{RecipientID: "1", Reason: "blocked"}})

	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != RecipientUnreachable || e.Time.IsZero() {
			t.Fatalf("unexpected event %+v", e)
		}
		if iss, ok := e.Data.(RecipientIssue); !ok || iss.RecipientID != "1" {
			t.Fatalf("unexpected payload %+v", e.Data)
		}
	}
}

func TestPublishDropsWhenFullAndAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"}) // dropped, buffer full

	if e := <-ch; e.Type != "a" {
		t.Fatalf("got %q", e.Type)
	}
	unsub()
	unsub()
	b.Publish(Event{Type: "c"})
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}
