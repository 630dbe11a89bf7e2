package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"paydash/internal/domain"
	"paydash/internal/infra"
)

// State is the watcher's lifecycle position. Paid, Cancelled and NotFound
// stop all polling. Expired stops nothing: a payment clearing on-chain
// after local expiry must still flip the display to paid.
type State string

const (
	StateLoading   State = "loading"
	StateActive    State = "active"
	StatePaid      State = "paid"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
	StateNotFound  State = "not_found"
	StateFailed    State = "failed"
)

// terminal reports whether the watcher schedules no further network polls.
func (s State) terminal() bool {
	return s == StatePaid || s == StateCancelled || s == StateNotFound || s == StateFailed
}

// StatusClient is the slice of the API client the watcher consumes.
type StatusClient interface {
	PublicInvoiceQR(ctx context.Context, code string) (*domain.Invoice, *domain.QRPayload, error)
	PublicInvoiceStatus(ctx context.Context, code string) (domain.StatusRefresh, error)
}

// Snapshot is a self-contained view of the watcher's state for rendering.
type Snapshot struct {
	State     State
	Invoice   *domain.Invoice // copy; nil until the initial load lands
	QR        *domain.QRPayload
	Remaining time.Duration
	Countdown string
	ErrorMsg  string // user-facing; empty for the cancelled card
}

const defaultPollInterval = 5 * time.Second

// Watcher owns the payment lifecycle of one public invoice code from first
// load to terminal state. All state lives on a single goroutine; polls,
// countdown ticks and push events are serialized through its select loop,
// and every update flows through the same precedence merge, so poll/push
// arrival order cannot change the displayed outcome.
type Watcher struct {
	client       StatusClient
	code         string
	clock        Clock
	pollInterval time.Duration
	onChange     func(Snapshot)
	logger       *slog.Logger

	inbox chan domain.StatusRefresh

	mu       sync.RWMutex
	state    State
	invoice  *domain.Invoice
	qr       *domain.QRPayload
	errorMsg string

	// loadGen marks in-flight initial loads stale: a result whose
	// generation no longer matches is discarded, so a slow response can
	// never overwrite a newer lifecycle.
	loadGen  atomic.Uint64
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithClock injects a clock; tests use a fake.
func WithClock(c Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

// WithPollInterval overrides the status refresh interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange registers the snapshot observer. It is invoked from the
// watcher's own goroutine; observers must not call Stop from it.
func WithOnChange(fn func(Snapshot)) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// New creates a watcher for one public invoice code. Each code change in
// the host view means a new watcher; stopping the old one marks its
// in-flight load stale.
func New(client StatusClient, code string, opts ...Option) *Watcher {
	w := &Watcher{
		client:       client,
		code:         code,
		clock:        NewClock(),
		pollInterval: defaultPollInterval,
		state:        StateLoading,
		inbox:        make(chan domain.StatusRefresh, 16),
		logger:       slog.Default().With("module", "payment_watcher", "code", code),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the watcher loop.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	infra.GlobalMetrics.IncrementWatchers()

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop tears the watcher down: timers stop, the in-flight load (if any) is
// marked stale, and no observer fires afterwards. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.loadGen.Add(1)
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		infra.GlobalMetrics.DecrementWatchers()
	})
}

// ApplyEvent feeds a push-delivered update into the watcher's loop. The
// event is copied immediately; callers may reuse the pointer. Safe to call
// from any goroutine; drops silently once the watcher stopped.
func (w *Watcher) ApplyEvent(ev *domain.PaymentEvent) {
	refresh := domain.StatusRefresh{Status: ev.Status}
	if ev.IsCompletion() {
		refresh.Status = domain.StatusPaid
	}
	select {
	case w.inbox <- refresh:
	default:
		// Inbox full or watcher gone; the next poll carries the truth.
	}
}

// Snapshot returns the current render view.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *Watcher) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    w.state,
		ErrorMsg: w.errorMsg,
	}
	if w.invoice != nil {
		inv := *w.invoice
		snap.Invoice = &inv
	}
	if w.qr != nil {
		qr := *w.qr
		snap.QR = &qr
	}
	if w.invoice != nil && w.invoice.ExpiresAt != nil {
		snap.Remaining = domain.Remaining(w.clock.Now(), w.invoice.ExpiresAt)
		snap.Countdown = domain.FormatRemaining(snap.Remaining)
	}
	return snap
}

// run is the single-threaded loop owning all watcher state.
func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watcher panic recovered", slog.Any("panic", r))
		}
	}()

	if !w.initialLoad(ctx) {
		return
	}

	countdown := w.clock.NewTicker(time.Second)
	defer countdown.Stop()
	poll := w.clock.NewTicker(w.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-countdown.C():
			// Ticks only drive recomputation of the derived countdown
			// and the client-side expiry transition.
			if w.recompute() {
				return
			}

		case <-poll.C():
			// A paid invoice's state cannot regress; the check runs
			// before each refresh is scheduled.
			if w.currentState().terminal() {
				return
			}
			if w.refresh(ctx) {
				return
			}

		case refresh := <-w.inbox:
			if w.applyRefresh(refresh) {
				return
			}
		}
	}
}

// initialLoad performs the one detailed fetch that yields address and QR.
// Returns false when the lifecycle ended (terminal state or stale result).
func (w *Watcher) initialLoad(ctx context.Context) bool {
	gen := w.loadGen.Load()

	inv, qr, err := w.client.PublicInvoiceQR(ctx, w.code)

	if w.loadGen.Load() != gen || ctx.Err() != nil {
		// Superseded while in flight; whatever came back is stale.
		return false
	}

	if err != nil {
		switch {
		case domain.IsCancelled(err):
			// Expected outcome, not a fault: no error banner.
			w.setTerminal(StateCancelled, "")
		case isNotFound(err):
			w.setTerminal(StateNotFound, "Invoice not found")
		default:
			w.logger.Warn("initial invoice load failed", slog.Any("error", err))
			w.setTerminal(StateFailed, "Unable to load invoice. Please try again later.")
		}
		return false
	}

	w.mu.Lock()
	w.invoice = inv
	w.qr = qr
	w.state = StateActive
	w.mu.Unlock()

	// The invoice may already be terminal server-side.
	if w.recompute() {
		return false
	}
	return true
}

// refresh performs one lightweight status fetch. Transient failures are
// swallowed; the loop keeps ticking so a momentary blip cannot strand the
// view on stale data. Returns true when the lifecycle ended.
func (w *Watcher) refresh(ctx context.Context) bool {
	infra.GlobalMetrics.RecordPoll()

	r, err := w.client.PublicInvoiceStatus(ctx, w.code)
	if err != nil {
		if domain.IsCancelled(err) {
			w.setTerminal(StateCancelled, "")
			return true
		}
		infra.GlobalMetrics.RecordPollFailure()
		w.logger.Debug("status refresh failed, retrying next tick", slog.Any("error", err))
		return false
	}
	return w.applyRefresh(r)
}

// applyRefresh merges one update (poll- or push-originated) and recomputes.
func (w *Watcher) applyRefresh(r domain.StatusRefresh) bool {
	w.mu.Lock()
	if w.invoice != nil {
		domain.MergeRefresh(w.invoice, r)
	}
	w.mu.Unlock()
	return w.recompute()
}

// recompute reevaluates the effective status and notifies the observer.
// Returns true when the watcher reached a polling-terminal state.
func (w *Watcher) recompute() bool {
	w.mu.Lock()
	if w.invoice == nil {
		w.mu.Unlock()
		return false
	}

	effective := domain.EffectiveStatus(w.invoice, w.clock.Now())
	if w.invoice.Status != domain.StatusPaid && w.invoice.IsAmountPaid() {
		w.logger.Warn("paid amount satisfies invoice but server status disagrees",
			slog.String("server_status", string(w.invoice.Status)),
			slog.String("paid", w.invoice.PaidAmount.String()),
			slog.String("amount", w.invoice.Amount.String()))
	}

	prev := w.state
	switch effective {
	case domain.StatusPaid:
		w.state = StatePaid
	case domain.StatusCancelled:
		w.state = StateCancelled
	case domain.StatusExpired:
		// One-way from the client's point of view, but not terminal for
		// truth: polling continues so a late paid still lands.
		w.state = StateExpired
	default:
		if prev == StateLoading || prev == StateExpired {
			w.state = StateActive
		}
	}
	done := w.state == StatePaid || w.state == StateCancelled
	snap := w.snapshotLocked()
	changed := w.state != prev
	w.mu.Unlock()

	if changed {
		w.logger.Info("payment state changed",
			slog.String("from", string(prev)), slog.String("to", string(snap.State)))
	}
	w.notify(snap)
	return done
}

func (w *Watcher) setTerminal(s State, msg string) {
	w.mu.Lock()
	w.state = s
	w.errorMsg = msg
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.notify(snap)
}

func (w *Watcher) notify(snap Snapshot) {
	if w.onChange != nil {
		w.onChange(snap)
	}
}

func (w *Watcher) currentState() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func isNotFound(err error) bool {
	if errors.Is(err, domain.ErrInvoiceNotFound) {
		return true
	}
	var ae *domain.APIError
	return errors.As(err, &ae) && ae.Status == 404
}
