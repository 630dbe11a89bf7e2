package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"paydash/internal/app"
	"paydash/internal/domain"
	"paydash/internal/infra"
	"paydash/internal/notify"
	"paydash/internal/push"
	"paydash/internal/watcher"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	watchCode := flag.String("watch", "", "public invoice code to watch until terminal")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go bootstrap.SyncCoins(ctx)

	cfg := bootstrap.Config

	// Push transport. With no app key configured the adapter is a no-op and
	// the app runs on polling alone.
	adapter := push.NewAdapter(push.Options{
		AppKey:  cfg.Push.AppKey,
		Cluster: cfg.Push.Cluster,
		Host:    cfg.Push.Host,
		Port:    cfg.Push.Port,
		TLS:     cfg.Push.TLS,
	})
	if err := adapter.Connect(ctx); err != nil {
		slog.Error("Failed to start push transport", slog.Any("error", err))
	}
	defer adapter.Close()

	router := push.NewRouter(adapter)

	// Dashboard notifications for the signed-in user, once the transport
	// comes up.
	merger := notify.NewMerger(router,
		notify.WithSound(cfg.Notifications.Sound),
		notify.WithDesktop(cfg.Notifications.Desktop))
	defer merger.Stop()
	if user, err := bootstrap.Store.CurrentUser(); err == nil && user != nil {
		go startNotifications(ctx, merger, user)
	} else {
		slog.Info("no stored session, notifications disabled")
	}

	go logMetrics(ctx)

	if *watchCode != "" {
		runWatch(ctx, bootstrap, router, *watchCode)
		return
	}

	slog.InfoContext(ctx, "✨ PayDash running. Press Ctrl+C to exit.")
	<-ctx.Done()
	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}

// startNotifications retries the user subscription until the transport is
// connected or the context ends.
func startNotifications(ctx context.Context, merger *notify.Merger, user *domain.UserRecord) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		err := merger.Start(user)
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrNotConnected) {
			slog.Error("notification stream failed", slog.Any("error", err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runWatch follows one public invoice until it reaches a terminal payment
// state, logging each transition. Push events for the invoice are fed into
// the watcher once its id is known from the initial load.
func runWatch(ctx context.Context, bootstrap *app.Bootstrap, router *push.Router, code string) {
	done := make(chan watcher.State, 1)

	var mu sync.Mutex
	var invoiceWatch *push.Watch
	var w *watcher.Watcher

	w = watcher.New(bootstrap.Client, code,
		watcher.WithPollInterval(bootstrap.Config.PollInterval()),
		watcher.WithOnChange(func(s watcher.Snapshot) {
			logSnapshot(s)

			if s.State == watcher.StateActive && s.Invoice != nil && router.Connected() {
				mu.Lock()
				if invoiceWatch == nil {
					invoiceWatch = router.WatchInvoice(s.Invoice.ID, push.Handlers{
						OnStatusChanged:   w.ApplyEvent,
						OnPaymentReceived: w.ApplyEvent,
						OnUpdated:         w.ApplyEvent,
					})
				}
				mu.Unlock()
			}

			switch s.State {
			case watcher.StatePaid, watcher.StateCancelled, watcher.StateNotFound, watcher.StateFailed:
				select {
				case done <- s.State:
				default:
				}
			}
		}))

	w.Start(ctx)
	defer w.Stop()
	defer func() {
		mu.Lock()
		if invoiceWatch != nil {
			invoiceWatch.Stop()
		}
		mu.Unlock()
	}()

	slog.Info("watching invoice", slog.String("code", code))
	select {
	case <-ctx.Done():
	case state := <-done:
		slog.Info("invoice reached terminal state", slog.String("state", string(state)))
	}
}

func logSnapshot(s watcher.Snapshot) {
	attrs := []any{slog.String("state", string(s.State))}
	if s.Invoice != nil {
		attrs = append(attrs,
			slog.Int64("invoice_id", s.Invoice.ID),
			slog.String("status", string(s.Invoice.Status)),
			slog.String("paid", s.Invoice.PaidAmount.String()),
			slog.String("amount", s.Invoice.Amount.String()))
	}
	if s.Countdown != "" {
		attrs = append(attrs, slog.String("remaining", s.Countdown))
	}
	if s.ErrorMsg != "" {
		attrs = append(attrs, slog.String("error", s.ErrorMsg))
	}
	slog.Info("payment status", attrs...)
}

// logMetrics emits a periodic counters line for operability.
func logMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := infra.GlobalMetrics.Snapshot()
			slog.Info("metrics",
				slog.Uint64("polls", snap.PollsTotal),
				slog.Uint64("poll_failures", snap.PollFailures),
				slog.Uint64("events", snap.EventsDelivered),
				slog.Uint64("notifications", snap.NotificationsSent),
				slog.Uint64("reconnects", snap.Reconnects),
				slog.Int("watchers", int(snap.ActiveWatchers)))
		}
	}
}
