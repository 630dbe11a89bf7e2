package domain

// EventKind is the closed set of domain events derived from the push
// transport.
type EventKind string

const (
	EventInvoiceCreated  EventKind = "invoice.created"
	EventInvoiceUpdated  EventKind = "invoice.updated"
	EventStatusChanged   EventKind = "invoice.status.changed"
	EventPaymentReceived EventKind = "payment.received"
)

// PaymentEvent is a push-delivered notification about one invoice.
type PaymentEvent struct {
	Kind      EventKind     `json:"-"`
	InvoiceID int64         `json:"invoiceId"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Status    InvoiceStatus `json:"status"`
	Type      string        `json:"type"` // e.g. "invoice_completed"
}

// IsCompletion reports whether a status-changed event marks the invoice as
// completed, either by explicit marker or by the paid status itself.
func (e *PaymentEvent) IsCompletion() bool {
	return e.Type == "invoice_completed" || e.Status == StatusPaid
}
