package hub

import (
	"testing"
)

func TestBroadcastFiltersByService(t *testing.T) {
	h := New(nil)
	all := &Client{ID: "all", Send: make(chan []byte, 1)}
	ktp := &Client{ID: "ktp", Send: make(chan []byte, 1), Subscription: Subscription{ServiceID: "svc-a"}}
	kk := &Client{ID: "kk", Send: make(chan []byte, 1), Subscription: Subscription{ServiceID: "svc-b"}}
	for _, c := range []*Client{all, ktp, kk} {
		h.Register(c)
	}

	h.Broadcast([]byte("called"), Subscription{ServiceID: "svc-a"})

	if len(all.Send) != 1 || len(ktp.Send) != 1 {
		t.Fatalf("expected delivery to matching clients")
	}
	if len(kk.Send) != 0 {
		t.Fatalf("expected no delivery to other service")
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := New(nil)
	c := &Client{ID: "slow", Send: make(chan []byte, 1)}
	h.Register(c)
	h.Broadcast([]byte("one"), Subscription{})
	h.Broadcast([]byte("two"), Subscription{})
	if got := string(<-c.Send); got != "one" {
		t.Fatalf("expected first message, got %q", got)
	}
	if len(c.Send) != 0 {
		t.Fatalf("expected second message dropped")
	}
}

func TestUnregisterTwice(t *testing.T) {
	h := New(nil)
	c := &Client{ID: "c", Send: make(chan []byte, 1)}
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)
	if h.Len() != 0 {
		t.Fatalf("expected empty hub, got %d", h.Len())
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","service_id":"svc-a"}`))
	if !ok || msg.ServiceID != "svc-a" {
		t.Fatalf("unexpected parse result %+v %v", msg, ok)
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"shout"}`)); ok {
		t.Fatalf("expected unknown action to be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatalf("expected invalid json to be rejected")
	}
}
