package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"custody-wallet/internal/event"
)

func TestEncode(t *testing.T) {
	data, err := Encode(event.EventRatesRefreshed, map[string]string{"symbol": "BTC"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var m struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Event != "rates.refreshed" || m.Data["symbol"] != "BTC" {
		t.Errorf("unexpected message %s", data)
	}
}

func TestForwardWithoutClients(t *testing.T) {
	h := NewHub()
	bus := event.NewBus()
	h.Forward(bus, event.EventTransactionCompleted)

	bus.Publish(event.EventTransactionCompleted, map[string]string{"id": "t1"})
	h.Broadcast([]byte(`{}`))

	if n := h.Clients(); n != 0 {
		t.Errorf("expected no clients, got %d", n)
	}
}

type fakeConn struct {
	got     chan []byte
	release chan struct{}
	fail    error
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		got:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.release != nil {
		<-f.release
	}
	if f.fail != nil {
		return f.fail
	}
	f.got <- data
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func waitClosed(t *testing.T, f *fakeConn) {
	t.Helper()
	select {
	case <-f.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("connection was never closed")
	}
}

func TestBroadcast_StalledClientIsDropped(t *testing.T) {
	h := NewHub()

	stalled := newFakeConn()
	stalled.release = make(chan struct{})
	healthy := newFakeConn()

	h.register(stalled)
	h.register(healthy)

	for i := 0; i < sendBuffer+2; i++ {
		sent := make(chan struct{})
		go func() {
			h.Broadcast([]byte(`{}`))
			close(sent)
		}()
		select {
		case <-sent:
		case <-time.After(5 * time.Second):
			t.Fatalf("broadcast %d blocked behind a stalled client", i)
		}
		select {
		case <-healthy.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("healthy client missed message %d", i)
		}
	}

	if n := h.Clients(); n != 1 {
		t.Errorf("expected only the healthy client left, got %d", n)
	}

	close(stalled.release)
	waitClosed(t, stalled)
}

func TestBroadcast_FailedWriteDropsClient(t *testing.T) {
	h := NewHub()

	broken := newFakeConn()
	broken.fail = errors.New("broken pipe")
	h.register(broken)

	h.Broadcast([]byte(`{}`))
	waitClosed(t, broken)

	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client with a failed write was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
