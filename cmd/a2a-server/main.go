// Command a2a-server runs the Terra Constellata A2A JSON-RPC server
// with the stock method handlers. Configuration is environment-only;
// see a2ahttp.Config for the variables.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/terra-constellata/a2a-server-go/a2ahttp"
	"github.com/terra-constellata/a2a-server-go/dispatch"
	"github.com/terra-constellata/a2a-server-go/handlers"
	"github.com/terra-constellata/a2a-server-go/storage"
	memorystore "github.com/terra-constellata/a2a-server-go/storage/memory"
	redisstore "github.com/terra-constellata/a2a-server-go/storage/redis"
)

func main() {
	cfg, err := a2ahttp.ConfigFromEnv()
	if err != nil {
		slog.Error("invalid configuration", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var store storage.AnomalyStore
	if cfg.RedisAddr != "" {
		store, err = redisstore.New(redisstore.Config{
			Client: redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
		})
		if err != nil {
			log.Error("failed to create redis store", slog.String("err", err.Error()))
			os.Exit(1)
		}
		log.Info("using redis anomaly store", slog.String("addr", cfg.RedisAddr))
	} else {
		store = memorystore.New()
		log.Info("using in-memory anomaly store")
	}
	defer store.Close()

	d := dispatch.New(dispatch.WithLogger(log))
	if err := handlers.RegisterAll(d, store); err != nil {
		log.Error("failed to register handlers", slog.String("err", err.Error()))
		os.Exit(1)
	}

	h, err := a2ahttp.New(d, a2ahttp.WithLogger(log))
	if err != nil {
		log.Error("failed to create handler", slog.String("err", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: h,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting A2A server", slog.String("addr", cfg.Addr()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		return
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown incomplete", slog.String("err", err.Error()))
	}

	// In-flight notification handlers keep running after their HTTP
	// exchanges finish; give them the rest of the shutdown budget.
	if err := d.Shutdown(shutdownCtx); err != nil {
		log.Warn("notification handlers still in flight", slog.String("err", err.Error()))
	}
}
