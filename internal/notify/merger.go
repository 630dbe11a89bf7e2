package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"paydash/internal/domain"
	"paydash/internal/infra"
	"paydash/internal/push"
)

// Merger folds the stream of invoice events for one user into dashboard
// notifications: every event becomes a toast, and completion-grade events
// additionally fire the chime and a desktop notification.
type Merger struct {
	router  *push.Router
	toasts  *ToastSink
	sound   *SoundPlayer
	desktop *DesktopNotifier
	logger  *slog.Logger

	soundEnabled   bool
	desktopEnabled bool

	mu       sync.Mutex
	watch    *push.Watch
	identity string
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithSound toggles the payment chime.
func WithSound(enabled bool) MergerOption {
	return func(m *Merger) { m.soundEnabled = enabled }
}

// WithDesktop toggles OS-level notifications.
func WithDesktop(enabled bool) MergerOption {
	return func(m *Merger) { m.desktopEnabled = enabled }
}

func NewMerger(router *push.Router, opts ...MergerOption) *Merger {
	m := &Merger{
		router:         router,
		toasts:         NewToastSink(),
		sound:          NewSoundPlayer(),
		desktop:        NewDesktopNotifier(),
		logger:         slog.Default().With("module", "notification_merger"),
		soundEnabled:   true,
		desktopEnabled: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Toasts exposes the toast history sink for the dashboard.
func (m *Merger) Toasts() *ToastSink {
	return m.toasts
}

// Start subscribes to the user's aggregate invoice channel. Calling again
// with the same user refreshes handlers without resubscribing; a different
// user swaps the subscription. Returns ErrNotConnected while the transport
// is down; callers retry after reconnect.
func (m *Merger) Start(user *domain.UserRecord) error {
	if user == nil {
		return fmt.Errorf("notify: nil user")
	}
	if !m.router.Connected() {
		return domain.ErrNotConnected
	}

	identity := user.BestIdentity()
	if identity == "" {
		return fmt.Errorf("notify: user has no usable identity")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.watch = m.router.WatchUserInvoices(identity, push.Handlers{
		OnCreated:         m.onInfo,
		OnUpdated:         m.onInfo,
		OnStatusChanged:   m.onStatusChanged,
		OnPaymentReceived: m.onPaymentReceived,
	})
	m.identity = identity
	m.logger.Info("notification stream started", slog.String("identity", identity))
	return nil
}

// Stop tears the subscription down. Idempotent.
func (m *Merger) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watch != nil {
		m.watch.Stop()
		m.watch = nil
		m.identity = ""
	}
}

func (m *Merger) onInfo(ev *domain.PaymentEvent) {
	m.emit(ToastInfo, ev, false)
}

func (m *Merger) onStatusChanged(ev *domain.PaymentEvent) {
	if ev.IsCompletion() {
		m.emit(ToastSuccess, ev, true)
		return
	}
	m.emit(ToastInfo, ev, false)
}

func (m *Merger) onPaymentReceived(ev *domain.PaymentEvent) {
	m.emit(ToastSuccess, ev, true)
}

// emit classifies one event into the sink fan-out. The event is pooled, so
// everything needed is copied out before any sink runs.
func (m *Merger) emit(level ToastLevel, ev *domain.PaymentEvent, alert bool) {
	title := ev.Title
	if title == "" {
		title = fallbackTitle(ev.Kind)
	}
	body := ev.Body
	if body == "" && ev.InvoiceID != 0 {
		body = fmt.Sprintf("Invoice #%d", ev.InvoiceID)
	}

	m.toasts.Push(Toast{Level: level, Title: title, Body: body})
	infra.GlobalMetrics.RecordNotification()

	if !alert {
		return
	}
	if m.soundEnabled {
		m.sound.Play()
	}
	if m.desktopEnabled {
		m.desktop.Notify(title, body)
	}
}

func fallbackTitle(kind domain.EventKind) string {
	switch kind {
	case domain.EventInvoiceCreated:
		return "Invoice created"
	case domain.EventInvoiceUpdated:
		return "Invoice updated"
	case domain.EventStatusChanged:
		return "Invoice status changed"
	case domain.EventPaymentReceived:
		return "Payment received"
	default:
		return "Notification"
	}
}
