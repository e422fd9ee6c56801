// streamer connects to a market-data feed and logs every event it emits.
// Usage: go run ./cmd/streamer --config configs/streamer.example.yaml --markets BTC-USD,ETH-USD
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/calebwren/marketstream/internal/config"
	"github.com/calebwren/marketstream/internal/event"
	"github.com/calebwren/marketstream/internal/feed"
	"github.com/calebwren/marketstream/internal/metrics"
	"github.com/calebwren/marketstream/internal/model"
	"github.com/calebwren/marketstream/internal/pricecache"
	"github.com/calebwren/marketstream/internal/subscription"
	"github.com/calebwren/marketstream/internal/version"
)

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/streamer.example.yaml", "path to config file")
	markets := flag.String("markets", "", "comma-separated market ids to subscribe")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Feed.URL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var recorder metrics.Recorder = metrics.Noop{}
	var promRecorder *metrics.PromRecorder
	if cfg.Metrics.Enabled {
		promRecorder = metrics.NewPromRecorder()
		recorder = promRecorder
	}

	dispatcher := event.NewDispatcher(logger)
	registry := subscription.NewRegistry()
	cache := pricecache.New(pricecache.Config{
		StaleThreshold: cfg.Signals.StaleThreshold,
		MovePercent:    cfg.Signals.MovePercent,
	}, recorder)

	manager := feed.NewManager(feed.ManagerConfig{
		URL:                cfg.Feed.URL,
		ReconnectBaseDelay: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Feed.ReconnectMaxDelay,
		HeartbeatInterval:  cfg.Feed.HeartbeatInterval,
		HandshakeTimeout:   cfg.Feed.HandshakeTimeout,
		WriteTimeout:       cfg.Feed.WriteTimeout,
		MessageBufferSize:  cfg.Feed.MessageBufferSize,
	}, dispatcher, registry, cache, recorder, logger)

	registerLoggers(dispatcher, logger)

	g, gCtx := errgroup.WithContext(ctx)

	if promRecorder != nil {
		metricsSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsMux(cfg.Metrics.Path, promRecorder),
		}

		g.Go(func() error {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		manager.Connect()
		for _, id := range splitMarkets(*markets) {
			manager.Subscribe(id)
		}

		<-gCtx.Done()
		manager.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("streamer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("streamer stopped")
}

func metricsMux(path string, rec *metrics.PromRecorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, rec.Handler())
	return mux
}

func splitMarkets(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// registerLoggers attaches a logging handler for every event kind.
func registerLoggers(d *event.Dispatcher, logger *slog.Logger) {
	d.On(event.KindConnected, func(evt event.Event) {
		logger.Info("feed connected")
	})
	d.On(event.KindDisconnected, func(evt event.Event) {
		logger.Warn("feed disconnected")
	})
	d.On(event.KindError, func(evt event.Event) {
		logger.Error("feed error", "error", evt.Data)
	})
	d.On(event.KindPrice, func(evt event.Event) {
		if u, ok := evt.Data.(model.PriceUpdate); ok {
			logger.Info("price",
				"market", u.MarketID,
				"price", u.Price,
				"change_pct", u.ChangePercent,
				"volume_24h", u.Volume24h,
			)
		}
	})
	d.On(event.KindStalePrice, func(evt event.Event) {
		if sig, ok := evt.Data.(model.StaleSignal); ok {
			logger.Warn("stale price refreshed",
				"market", sig.MarketID,
				"age", sig.Age,
			)
		}
	})
	d.On(event.KindSignificantMove, func(evt event.Event) {
		if sig, ok := evt.Data.(model.MoveSignal); ok {
			logger.Warn("significant move",
				"market", sig.MarketID,
				"change_pct", sig.ChangePercent,
			)
		}
	})
	d.On(event.KindOrderbook, func(evt event.Event) {
		if book, ok := evt.Data.(model.OrderbookUpdate); ok {
			logger.Debug("orderbook",
				"market", book.MarketID,
				"bids", len(book.Bids),
				"asks", len(book.Asks),
			)
		}
	})
	d.On(event.KindTrade, func(evt event.Event) {
		if tr, ok := evt.Data.(model.Trade); ok {
			logger.Info("trade",
				"market", tr.MarketID,
				"price", tr.Price,
				"amount", tr.Amount,
			)
		}
	})
	d.On(event.KindUnknownMessage, func(evt event.Event) {
		if um, ok := evt.Data.(feed.UnknownMessage); ok {
			logger.Warn("unknown message type", "type", um.Type)
		}
	})
	d.On(event.KindParseError, func(evt event.Event) {
		if pe, ok := evt.Data.(feed.ParseError); ok {
			logger.Warn("unparseable frame", "error", pe.Err)
		}
	})
}
