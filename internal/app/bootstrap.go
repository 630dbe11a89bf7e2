package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"paydash/internal/api"
	"paydash/internal/domain"
	"paydash/internal/infra"
	"paydash/internal/session"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config     *infra.Config
	Store      *session.Store
	Client     *api.Client
	Downloader *infra.IconDownloader
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logging, the
// session store and the API client bound to it.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping PayDash...")

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // let main handle the error
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	store, err := session.NewStore()
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Session store initialized")

	b.Client = api.NewClient(cfg.API.BaseURL).
		WithSession(store, store).
		OnUnauthorized(func() {
			slog.Warn("session expired, sign in again to resume")
		})

	downloader, err := infra.NewIconDownloader()
	if err != nil {
		return err
	}
	b.Downloader = downloader
	slog.Info("✅ Icon downloader ready")

	return nil
}

// SyncCoins refreshes the local coin cache and icon store from the backend
// coin list. Runs in the background during startup; icon failures degrade
// to text-only rendering.
func (b *Bootstrap) SyncCoins(ctx context.Context) {
	slog.Info("🔄 Starting coin synchronization...")

	coins, err := b.Client.Coins(ctx)
	if err != nil {
		slog.Warn("coin list fetch failed, using cached coins", slog.Any("error", err))
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // limit concurrent downloads

	for _, c := range coins {
		wg.Add(1)
		go func(c domain.Coin) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			coin := &domain.CoinInfo{
				Symbol:    c.Symbol,
				Name:      c.Name,
				IsActive:  true,
				UpdatedAt: time.Now(),
			}
			if existing, _ := b.Store.GetCoin(c.Symbol); existing != nil {
				coin.IconPath = existing.IconPath
				coin.LastSyncedAt = existing.LastSyncedAt
			}
			if err := b.Store.UpsertCoin(coin); err != nil {
				slog.Error("Failed to upsert coin", slog.String("symbol", c.Symbol), slog.Any("error", err))
			}

			path, err := b.Downloader.DownloadIcon(c.Symbol, c.IconURL)
			if err != nil {
				slog.Warn("Failed to download icon", slog.String("symbol", c.Symbol), slog.Any("error", err))
			} else if path != "" {
				coin.IconPath = path
				coin.LastSyncedAt = time.Now()
				if err := b.Store.UpsertCoin(coin); err != nil {
					slog.Error("Failed to record icon path", slog.String("symbol", c.Symbol), slog.Any("error", err))
				}
			}
		}(c)
	}

	wg.Wait()
	slog.Info("✨ Coin synchronization completed")
}
