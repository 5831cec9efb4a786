package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/adminchat/internal/api"
	"github.com/Vasu1712/adminchat/internal/api/conversations"
	"github.com/Vasu1712/adminchat/internal/chat"
	"github.com/Vasu1712/adminchat/internal/config"
	"github.com/Vasu1712/adminchat/internal/session"
	"github.com/Vasu1712/adminchat/internal/storage"
	"github.com/Vasu1712/adminchat/internal/storage/memory"
	"github.com/Vasu1712/adminchat/internal/storage/postgres"
	valkeystore "github.com/Vasu1712/adminchat/internal/storage/valkey"
	"github.com/Vasu1712/adminchat/internal/transport"
	"github.com/Vasu1712/adminchat/internal/ws"
)

const (
	socketDialTimeout = 3 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}
	}()

	var vclient valkey.Client
	if cfg.UsesValkey() {
		c, err := valkeystore.NewClient(cfg.Store.ValkeyAddr)
		if err != nil {
			return err
		}
		closers = append(closers, func() error { c.Close(); return nil })
		vclient = c
	}

	records, err := openRecords(ctx, cfg, vclient, logger)
	if err != nil {
		return err
	}
	if c, ok := records.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	if cfg.Store.Seed {
		if err := chat.NewStore(records, chat.WithLogger(logger)).Seed(ctx); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := ws.NewHub(logger)
	go hub.Run(hubCtx)
	closers = append(closers, func() error { stopHub(); return nil })

	sessions := session.NewManager(records, newTransportFactory(hubCtx, cfg.Broadcast, hub, vclient, logger), session.Options{
		TypingTimeout: cfg.Chat.TypingTimeout,
		DeliveryDelay: cfg.Chat.DeliveryDelay,
		ReplyDelay:    cfg.Chat.ReplyDelay,
		SimulateReply: cfg.Chat.SimulateReply,
		Logger:        logger,
	})
	closers = append(closers, sessions.Close)

	handler := &conversations.ConversationHandler{
		Sessions:      sessions,
		Hub:           hub,
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logger.With("component", "api"),
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(handler, cfg.AllowedOrigin, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			"addr", cfg.Addr,
			"store", cfg.Store.Backend,
			"broadcast", cfg.Broadcast.Backend,
			"socket", cfg.Broadcast.SocketURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRecords(ctx context.Context, cfg config.Config, vclient valkey.Client, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Store.Backend {
	case "valkey":
		return valkeystore.NewRecordStore(vclient, "", logger), nil
	case "postgres":
		return postgres.NewRecordStore(ctx, cfg.Store.DatabaseURL, logger)
	default:
		return memory.NewRecordStore(), nil
	}
}

// newTransportFactory picks the transport kind once; each session gets its
// own instance. Long-lived subscriptions are bound to baseCtx rather than
// to the request that started the session.
func newTransportFactory(baseCtx context.Context, cfg config.BroadcastConfig, hub *ws.Hub, vclient valkey.Client, logger *slog.Logger) session.TransportFactory {
	return func(ctx context.Context, origin string) (transport.Transport, error) {
		var secondary transport.Transport
		switch cfg.Backend {
		case "valkey":
			secondary = transport.NewValkey(baseCtx, vclient, cfg.Channel, origin, logger)
		default:
			local, err := transport.NewLocal(ctx, hub, cfg.Channel, origin, logger)
			if err != nil {
				return nil, err
			}
			secondary = local
		}

		if !cfg.SocketEnabled() {
			return secondary, nil
		}
		dialCtx, cancel := context.WithTimeout(ctx, socketDialTimeout)
		defer cancel()
		sock, err := transport.DialSocket(dialCtx, cfg.SocketURL, origin, logger)
		if err != nil {
			logger.Warn("real-time socket unavailable, using fallback",
				"session_id", origin,
				"backend", cfg.Backend,
				"error", err)
			return secondary, nil
		}
		return transport.NewFallback(sock, secondary, logger), nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
