package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"paydash/internal/domain"
	"paydash/internal/event"
)

// Handlers are the caller-supplied reactions to invoice domain events.
// Events are pooled: handlers must not retain the pointer past the call.
type Handlers struct {
	OnCreated         func(*domain.PaymentEvent)
	OnUpdated         func(*domain.PaymentEvent)
	OnStatusChanged   func(*domain.PaymentEvent)
	OnPaymentReceived func(*domain.PaymentEvent)
}

// Router maps transport events on invoice channels to the closed set of
// domain events. It holds no invoice state of its own; when the transport
// drops, it simply goes silent until reconnection.
type Router struct {
	transport Subscriber
	logger    *slog.Logger

	mu           sync.Mutex
	userWatch    *Watch
	userIdentity string
}

// NewRouter creates an invoice event router over the given transport.
func NewRouter(transport Subscriber) *Router {
	return &Router{
		transport: transport,
		logger:    slog.Default().With("module", "invoice_router"),
	}
}

// Connected exposes the transport's liveness flag. The router never
// synthesizes disconnect events; callers needing liveness read this.
func (r *Router) Connected() bool {
	return r.transport.IsConnected()
}

// Watch is one live channel subscription with a mutable handler cell.
// Handler identity is decoupled from subscription lifecycle: swapping
// handlers never tears the channel down.
type Watch struct {
	router  *Router
	channel BoundChannel
	cell    atomic.Pointer[Handlers]
	stopped atomic.Bool
}

// SetHandlers replaces the callbacks read at event-fire time.
func (w *Watch) SetHandlers(h Handlers) {
	w.cell.Store(&h)
}

// Stop unbinds every event and unsubscribes the channel. Idempotent; a
// late frame after Stop never reaches a callback.
func (w *Watch) Stop() {
	if w.stopped.Swap(true) {
		return
	}
	name := w.channel.Name()
	for _, ev := range []domain.EventKind{
		domain.EventInvoiceCreated,
		domain.EventInvoiceUpdated,
		domain.EventStatusChanged,
		domain.EventPaymentReceived,
	} {
		w.channel.Unbind(string(ev))
	}
	w.router.transport.Unsubscribe(name)
}

// dispatch decodes the frame and forwards to the current handler cell.
func (w *Watch) dispatch(kind domain.EventKind, data json.RawMessage) {
	if w.stopped.Load() {
		return
	}
	handlers := w.cell.Load()
	if handlers == nil {
		return
	}

	ev := event.AcquirePaymentEvent()
	defer event.ReleasePaymentEvent(ev)

	if len(data) > 0 {
		if err := json.Unmarshal(data, ev); err != nil {
			w.router.logger.Debug("event payload parse error",
				slog.String("event", string(kind)), slog.Any("error", err))
			return
		}
	}
	ev.Kind = kind

	var fn func(*domain.PaymentEvent)
	switch kind {
	case domain.EventInvoiceCreated:
		fn = handlers.OnCreated
	case domain.EventInvoiceUpdated:
		fn = handlers.OnUpdated
	case domain.EventStatusChanged:
		fn = handlers.OnStatusChanged
	case domain.EventPaymentReceived:
		fn = handlers.OnPaymentReceived
	}
	if fn != nil {
		fn(ev)
	}
}

// bind wires the watch's dispatch into the channel for the given events.
// The cleanup in Stop targets the same channel instance bound here.
func (w *Watch) bind(kinds ...domain.EventKind) {
	for _, kind := range kinds {
		k := kind
		w.channel.Bind(string(k), func(data json.RawMessage) {
			w.dispatch(k, data)
		})
	}
}

// InvoiceChannel is the per-invoice channel name.
func InvoiceChannel(invoiceID int64) string {
	return fmt.Sprintf("invoice.%d", invoiceID)
}

// UserInvoicesChannel is the per-user aggregate channel name.
func UserInvoicesChannel(identity string) string {
	return fmt.Sprintf("user.%s.invoices", identity)
}

// WatchInvoice subscribes to one invoice's channel. Each call creates an
// independent watch; the caller owns its lifecycle and must Stop it before
// watching a different invoice id.
func (r *Router) WatchInvoice(invoiceID int64, h Handlers) *Watch {
	w := &Watch{
		router:  r,
		channel: r.transport.Subscribe(InvoiceChannel(invoiceID)),
	}
	w.SetHandlers(h)
	w.bind(
		domain.EventPaymentReceived,
		domain.EventStatusChanged,
		domain.EventInvoiceUpdated,
	)
	return w
}

// WatchUserInvoices subscribes to a user's aggregate invoice channel.
// Redundant calls with an unchanged identity only refresh the handler cell;
// the subscription stays put, so unrelated re-wiring cannot cause a
// reconnect storm. An identity change tears the previous identity's channel
// down first, using the value captured before the swap.
func (r *Router) WatchUserInvoices(identity string, h Handlers) *Watch {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.userWatch != nil && !r.userWatch.stopped.Load() {
		if r.userIdentity == identity {
			r.userWatch.SetHandlers(h)
			return r.userWatch
		}
		prev := r.userWatch
		r.logger.Info("user identity changed, resubscribing",
			slog.String("from", r.userIdentity), slog.String("to", identity))
		prev.Stop()
	}

	w := &Watch{
		router:  r,
		channel: r.transport.Subscribe(UserInvoicesChannel(identity)),
	}
	w.SetHandlers(h)
	w.bind(
		domain.EventInvoiceCreated,
		domain.EventInvoiceUpdated,
		domain.EventStatusChanged,
		domain.EventPaymentReceived,
	)
	r.userWatch = w
	r.userIdentity = identity
	return w
}
