package push

import (
	"encoding/json"
	"testing"

	"paydash/internal/domain"
)

// fakeTransport counts subscribe/unsubscribe traffic and lets tests fire
// events straight into channel bindings.
type fakeTransport struct {
	connected    bool
	subscribes   map[string]int
	unsubscribes map[string]int
	channels     map[string]*channel
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected:    true,
		subscribes:   make(map[string]int),
		unsubscribes: make(map[string]int),
		channels:     make(map[string]*channel),
	}
}

func (f *fakeTransport) Subscribe(name string) BoundChannel {
	f.subscribes[name]++
	if ch, ok := f.channels[name]; ok {
		return ch
	}
	ch := newChannel(name)
	f.channels[name] = ch
	return ch
}

func (f *fakeTransport) Unsubscribe(name string) {
	f.unsubscribes[name]++
	if ch, ok := f.channels[name]; ok {
		ch.clear()
		delete(f.channels, name)
	}
}

func (f *fakeTransport) IsConnected() bool { return f.connected }

func (f *fakeTransport) fire(channelName, event, data string) {
	if ch, ok := f.channels[channelName]; ok {
		ch.dispatch(event, json.RawMessage(data))
	}
}

func TestWatchInvoice_MapsEvents(t *testing.T) {
	transport := newFakeTransport()
	router := NewRouter(transport)

	var received []domain.PaymentEvent
	record := func(ev *domain.PaymentEvent) {
		received = append(received, *ev) // copy: events are pooled
	}

	w := router.WatchInvoice(42, Handlers{
		OnPaymentReceived: record,
		OnStatusChanged:   record,
		OnUpdated:         record,
	})
	defer w.Stop()

	transport.fire("invoice.42", "payment.received", `{"invoiceId":42,"status":"paid"}`)
	transport.fire("invoice.42", "invoice.status.changed", `{"invoiceId":42,"status":"expired"}`)
	transport.fire("invoice.42", "invoice.updated", `{"invoiceId":42}`)

	if len(received) != 3 {
		t.Fatalf("received %d events, want 3", len(received))
	}
	if received[0].Kind != domain.EventPaymentReceived || received[0].Status != domain.StatusPaid {
		t.Errorf("first event = %+v", received[0])
	}
	if received[1].Kind != domain.EventStatusChanged {
		t.Errorf("second event kind = %s", received[1].Kind)
	}
	if received[2].Kind != domain.EventInvoiceUpdated {
		t.Errorf("third event kind = %s", received[2].Kind)
	}
}

func TestWatchUserInvoices_IdempotentSubscription(t *testing.T) {
	transport := newFakeTransport()
	router := NewRouter(transport)

	fired := 0
	w1 := router.WatchUserInvoices("7", Handlers{
		OnCreated: func(*domain.PaymentEvent) { fired++ },
	})
	w2 := router.WatchUserInvoices("7", Handlers{
		OnCreated: func(*domain.PaymentEvent) { fired += 10 },
	})

	if w1 != w2 {
		t.Error("same identity must return the same watch")
	}
	if got := transport.subscribes["user.7.invoices"]; got != 1 {
		t.Errorf("subscribed %d times, want 1", got)
	}

	// The second call's handlers win: exactly one bound handler set.
	transport.fire("user.7.invoices", "invoice.created", `{"invoiceId":1}`)
	if fired != 10 {
		t.Errorf("fired = %d, want 10 (latest handlers, once)", fired)
	}
}

func TestWatchUserInvoices_IdentityChange(t *testing.T) {
	transport := newFakeTransport()
	router := NewRouter(transport)

	var fromA, fromB int
	router.WatchUserInvoices("A", Handlers{
		OnCreated: func(*domain.PaymentEvent) { fromA++ },
	})
	router.WatchUserInvoices("B", Handlers{
		OnCreated: func(*domain.PaymentEvent) { fromB++ },
	})

	if got := transport.unsubscribes["user.A.invoices"]; got != 1 {
		t.Errorf("A unsubscribed %d times, want exactly 1", got)
	}
	if got := transport.subscribes["user.B.invoices"]; got != 1 {
		t.Errorf("B subscribed %d times, want 1", got)
	}

	// Nothing fired on A's channel reaches a callback after the switch.
	transport.fire("user.A.invoices", "invoice.created", `{"invoiceId":1}`)
	transport.fire("user.B.invoices", "invoice.created", `{"invoiceId":2}`)

	if fromA != 0 {
		t.Errorf("A received %d events after switch, want 0", fromA)
	}
	if fromB != 1 {
		t.Errorf("B received %d events, want 1", fromB)
	}
}

func TestWatch_StopSilencesLateEvents(t *testing.T) {
	transport := newFakeTransport()
	router := NewRouter(transport)

	fired := 0
	w := router.WatchInvoice(9, Handlers{
		OnPaymentReceived: func(*domain.PaymentEvent) { fired++ },
	})

	w.Stop()
	w.Stop() // idempotent

	if got := transport.unsubscribes["invoice.9"]; got != 1 {
		t.Errorf("unsubscribed %d times, want 1", got)
	}

	// Simulate a frame already in flight when Stop ran.
	ch := newChannel("invoice.9")
	ch.Bind("payment.received", func(data json.RawMessage) {
		w.dispatch(domain.EventPaymentReceived, data)
	})
	ch.dispatch("payment.received", json.RawMessage(`{"invoiceId":9}`))

	if fired != 0 {
		t.Errorf("fired = %d after Stop, want 0", fired)
	}
}

func TestWatch_HandlerSwapWithoutResubscribe(t *testing.T) {
	transport := newFakeTransport()
	router := NewRouter(transport)

	var calls []string
	w := router.WatchInvoice(5, Handlers{
		OnUpdated: func(*domain.PaymentEvent) { calls = append(calls, "first") },
	})
	defer w.Stop()

	transport.fire("invoice.5", "invoice.updated", `{}`)

	// Fresh closures every render must not tear the channel down.
	w.SetHandlers(Handlers{
		OnUpdated: func(*domain.PaymentEvent) { calls = append(calls, "second") },
	})

	transport.fire("invoice.5", "invoice.updated", `{}`)

	if got := transport.subscribes["invoice.5"]; got != 1 {
		t.Errorf("subscribed %d times, want 1", got)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v", calls)
	}
}

func TestWatch_MalformedPayloadDropped(t *testing.T) {
	transport := newFakeTransport()
	router := NewRouter(transport)

	fired := 0
	w := router.WatchInvoice(3, Handlers{
		OnUpdated: func(*domain.PaymentEvent) { fired++ },
	})
	defer w.Stop()

	transport.fire("invoice.3", "invoice.updated", `{broken`)

	if fired != 0 {
		t.Errorf("fired = %d for malformed payload, want 0", fired)
	}
}
