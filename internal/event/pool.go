package event

import (
	"sync"

	"paydash/internal/domain"
)

// Pool of PaymentEvent objects for the push dispatch path. Events are
// decoded, handed to handlers synchronously and released when the handler
// returns; handlers must not retain the pointer past the call.
//
// Usage:
//
//	ev := AcquirePaymentEvent()
//	// ... decode into ev, invoke handler ...
//	ReleasePaymentEvent(ev)
var paymentEventPool = sync.Pool{
	New: func() interface{} {
		return &domain.PaymentEvent{}
	},
}

// AcquirePaymentEvent gets a PaymentEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquirePaymentEvent() *domain.PaymentEvent {
	return paymentEventPool.Get().(*domain.PaymentEvent)
}

// ReleasePaymentEvent returns a PaymentEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleasePaymentEvent(ev *domain.PaymentEvent) {
	if ev == nil {
		return
	}
	ev.Kind = ""
	ev.InvoiceID = 0
	ev.Title = ""
	ev.Body = ""
	ev.Status = ""
	ev.Type = ""

	paymentEventPool.Put(ev)
}
