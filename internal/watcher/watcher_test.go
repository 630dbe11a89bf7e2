package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paydash/internal/domain"
)

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// fire delivers one tick without blocking; a stopped loop simply never
// drains it.
func (t *fakeTicker) fire(at time.Time) {
	select {
	case t.ch <- at:
	default:
	}
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// The run loop creates the countdown ticker first, the poll ticker second.
func (c *fakeClock) waitTicker(t *testing.T, i int) *fakeTicker {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.tickers) > i {
			tk := c.tickers[i]
			c.mu.Unlock()
			return tk
		}
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("ticker %d was never created", i)
	return nil
}

type statusResult struct {
	r   domain.StatusRefresh
	err error
}

type fakeStatusClient struct {
	mu       sync.Mutex
	loadErr  error
	invoice  domain.Invoice
	qr       domain.QRPayload
	statuses []statusResult
	polls    int
}

func (f *fakeStatusClient) PublicInvoiceQR(context.Context, string) (*domain.Invoice, *domain.QRPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, nil, f.loadErr
	}
	inv := f.invoice
	qr := f.qr
	return &inv, &qr, nil
}

func (f *fakeStatusClient) PublicInvoiceStatus(context.Context, string) (domain.StatusRefresh, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.statuses) == 0 {
		return domain.StatusRefresh{Status: f.invoice.Status}, nil
	}
	next := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return next.r, next.err
}

func (f *fakeStatusClient) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func testInvoice(expiresAt *time.Time) domain.Invoice {
	return domain.Invoice{
		ID:        42,
		Status:    domain.StatusPending,
		Amount:    decimal.RequireFromString("10"),
		Address:   "TXabc123",
		ExpiresAt: expiresAt,
	}
}

func startWatcher(t *testing.T, client *fakeStatusClient, clock *fakeClock) (*Watcher, chan Snapshot) {
	t.Helper()
	snaps := make(chan Snapshot, 32)
	w := New(client, "pub-code-1",
		WithClock(clock),
		WithOnChange(func(s Snapshot) { snaps <- s }))
	w.Start(context.Background())
	t.Cleanup(w.Stop)
	return w, snaps
}

func waitState(t *testing.T, snaps chan Snapshot, want State) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-snaps:
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("never observed state %q", want)
		}
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	clock := newFakeClock()
	exp := clock.Now().Add(3 * time.Second)
	client := &fakeStatusClient{
		invoice: testInvoice(&exp),
		qr:      domain.QRPayload{Address: "TXabc123"},
	}
	w, snaps := startWatcher(t, client, clock)

	s := waitState(t, snaps, StateActive)
	if s.Invoice == nil || s.Invoice.Address != "TXabc123" {
		t.Fatalf("snapshot missing invoice details: %+v", s.Invoice)
	}
	if s.QR == nil || s.QR.Value() != "TXabc123" {
		t.Fatalf("snapshot missing QR payload")
	}
	if s.Countdown != "00:03" {
		t.Fatalf("countdown = %q, want 00:03", s.Countdown)
	}
	if got := w.Snapshot().State; got != StateActive {
		t.Fatalf("Snapshot state = %q", got)
	}
}

// A paid signal and the local expiry transition must resolve to paid no
// matter which arrives first.
func TestWatcherPaidBeatsExpiry(t *testing.T) {
	t.Run("paid before expiry sticks past it", func(t *testing.T) {
		clock := newFakeClock()
		exp := clock.Now().Add(3 * time.Second)
		client := &fakeStatusClient{invoice: testInvoice(&exp)}
		w, snaps := startWatcher(t, client, clock)
		waitState(t, snaps, StateActive)
		countdown := clock.waitTicker(t, 0)

		ev := &domain.PaymentEvent{Kind: domain.EventStatusChanged, Status: domain.StatusPaid}
		w.ApplyEvent(ev)
		waitState(t, snaps, StatePaid)

		// The wall clock passes the expiry; the late tick lands in a
		// stopped loop and changes nothing.
		clock.Advance(5 * time.Second)
		countdown.fire(clock.Now())
		time.Sleep(20 * time.Millisecond)
		if got := w.Snapshot().State; got != StatePaid {
			t.Fatalf("state regressed to %q after expiry passed", got)
		}
	})

	t.Run("paid after expiry overrides it", func(t *testing.T) {
		clock := newFakeClock()
		exp := clock.Now().Add(3 * time.Second)
		client := &fakeStatusClient{invoice: testInvoice(&exp)}
		w, snaps := startWatcher(t, client, clock)
		waitState(t, snaps, StateActive)
		countdown := clock.waitTicker(t, 0)
		poll := clock.waitTicker(t, 1)

		clock.Advance(4 * time.Second)
		countdown.fire(clock.Now())
		s := waitState(t, snaps, StateExpired)
		if s.Countdown != "00:00" {
			t.Fatalf("expired countdown = %q, want 00:00", s.Countdown)
		}
		if s.Invoice == nil || s.Invoice.Address == "" {
			t.Fatalf("expired view dropped the invoice details")
		}

		// Polling is still alive after expiry; the next refresh reports
		// the payment cleared.
		client.mu.Lock()
		client.statuses = []statusResult{{r: domain.StatusRefresh{Status: domain.StatusPaid}}}
		client.mu.Unlock()
		poll.fire(clock.Now())
		waitState(t, snaps, StatePaid)
		if got := w.Snapshot().State; got != StatePaid {
			t.Fatalf("state = %q, want paid", got)
		}
	})
}

func TestWatcherPaidAmountSatisfiesInvoice(t *testing.T) {
	clock := newFakeClock()
	client := &fakeStatusClient{invoice: testInvoice(nil)}
	w, snaps := startWatcher(t, client, clock)
	waitState(t, snaps, StateActive)
	poll := clock.waitTicker(t, 1)

	// Server still says pending, but the paid amount covers the invoice.
	client.mu.Lock()
	client.statuses = []statusResult{{r: domain.StatusRefresh{
		Status:     domain.StatusPending,
		PaidAmount: decimal.RequireFromString("10"),
	}}}
	client.mu.Unlock()
	poll.fire(clock.Now())
	waitState(t, snaps, StatePaid)
	if got := w.Snapshot().State; got != StatePaid {
		t.Fatalf("state = %q, want paid", got)
	}
}

func TestWatcherCancelledShortCircuit(t *testing.T) {
	clock := newFakeClock()
	client := &fakeStatusClient{
		loadErr: &domain.APIError{Status: 200, Code: domain.CodeInvoiceCancelled, Message: "cancelled"},
	}
	w, snaps := startWatcher(t, client, clock)

	s := waitState(t, snaps, StateCancelled)
	if s.ErrorMsg != "" {
		t.Fatalf("cancelled state carries error message %q", s.ErrorMsg)
	}

	// The lifecycle ended before any timers existed: no polls, ever.
	w.Stop()
	if clock.tickerCount() != 0 {
		t.Fatalf("cancelled watcher created %d tickers", clock.tickerCount())
	}
	if client.pollCount() != 0 {
		t.Fatalf("cancelled watcher polled %d times", client.pollCount())
	}
}

func TestWatcherInitialLoadNotFound(t *testing.T) {
	clock := newFakeClock()
	client := &fakeStatusClient{
		loadErr: &domain.APIError{Status: 404, Message: "not found"},
	}
	_, snaps := startWatcher(t, client, clock)

	s := waitState(t, snaps, StateNotFound)
	if s.ErrorMsg == "" {
		t.Fatalf("not-found state should carry a message")
	}
}

func TestWatcherInitialLoadFailure(t *testing.T) {
	clock := newFakeClock()
	client := &fakeStatusClient{
		loadErr: domain.NewNetworkError("dial", nil),
	}
	_, snaps := startWatcher(t, client, clock)

	s := waitState(t, snaps, StateFailed)
	if s.ErrorMsg == "" {
		t.Fatalf("failed state should carry a message")
	}
}

// A transient refresh failure keeps the active view and the polling loop
// intact; the next successful tick applies normally.
func TestWatcherRefreshFailureKeepsPolling(t *testing.T) {
	clock := newFakeClock()
	client := &fakeStatusClient{invoice: testInvoice(nil)}
	w, snaps := startWatcher(t, client, clock)
	waitState(t, snaps, StateActive)
	poll := clock.waitTicker(t, 1)

	client.mu.Lock()
	client.statuses = []statusResult{
		{err: domain.NewNetworkError("timeout", nil)},
		{r: domain.StatusRefresh{Status: domain.StatusPending}},
		{r: domain.StatusRefresh{Status: domain.StatusPaid}},
	}
	client.mu.Unlock()

	for i := 0; i < 3; i++ {
		poll.fire(clock.Now())
		deadline := time.Now().Add(time.Second)
		for client.pollCount() < i+1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
	waitState(t, snaps, StatePaid)
	if n := client.pollCount(); n != 3 {
		t.Fatalf("polls = %d, want 3", n)
	}
	if got := w.Snapshot().State; got != StatePaid {
		t.Fatalf("state = %q, want paid", got)
	}
}

func TestWatcherStop(t *testing.T) {
	clock := newFakeClock()
	exp := clock.Now().Add(time.Hour)
	client := &fakeStatusClient{invoice: testInvoice(&exp)}
	w, snaps := startWatcher(t, client, clock)
	waitState(t, snaps, StateActive)
	countdown := clock.waitTicker(t, 0)
	poll := clock.waitTicker(t, 1)

	w.Stop()
	w.Stop() // idempotent

	// Nothing fires after teardown: not ticks, not pushed events.
	countdown.fire(clock.Now())
	poll.fire(clock.Now())
	w.ApplyEvent(&domain.PaymentEvent{Kind: domain.EventStatusChanged, Status: domain.StatusPaid})

	select {
	case s := <-snaps:
		t.Fatalf("observer fired after Stop: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
	if got := w.Snapshot().State; got != StateActive {
		t.Fatalf("stopped watcher mutated state to %q", got)
	}
	if n := client.pollCount(); n != 0 {
		t.Fatalf("stopped watcher polled %d times", n)
	}
}

func TestWatcherCancelledDuringRefresh(t *testing.T) {
	clock := newFakeClock()
	client := &fakeStatusClient{invoice: testInvoice(nil)}
	w, snaps := startWatcher(t, client, clock)
	waitState(t, snaps, StateActive)
	poll := clock.waitTicker(t, 1)

	client.mu.Lock()
	client.statuses = []statusResult{
		{err: &domain.APIError{Status: 200, Code: domain.CodeInvoiceCancelled, Message: "cancelled"}},
	}
	client.mu.Unlock()
	poll.fire(clock.Now())

	s := waitState(t, snaps, StateCancelled)
	if s.ErrorMsg != "" {
		t.Fatalf("cancelled state carries error message %q", s.ErrorMsg)
	}
	if got := w.Snapshot().State; got != StateCancelled {
		t.Fatalf("state = %q, want cancelled", got)
	}
}
