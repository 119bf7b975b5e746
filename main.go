package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mahatour/booking"
	"mahatour/config"
	"mahatour/db"
	"mahatour/enrich"
	"mahatour/logging"
	"mahatour/middleware"
	"mahatour/notify"
	"mahatour/ratelim"
	"mahatour/rdx"
	"mahatour/routes"
	"mahatour/store"
	"mahatour/wikimedia"

	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	dotenvErr := config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if dotenvErr != nil {
		log.Warn("could not read .env", zap.Error(dotenvErr))
	}

	ctx := context.Background()
	s, client := openStore(ctx, cfg, log)
	cache := openCache(ctx, cfg, log)

	lookup := &wikimedia.CachedLookup{
		Next:  wikimedia.NewClient(cfg.Wikimedia.APIURL, cfg.Wikimedia.UserAgent, cfg.Wikimedia.ThumbWidth),
		Cache: cache,
		TTL:   cfg.Wikimedia.CacheTTL,
		Log:   log,
	}
	enricher := enrich.NewService(lookup, enrich.StorePersister{Places: s.Places}, enrich.Options{
		Workers:      cfg.Enrich.Workers,
		ItemTimeout:  cfg.Enrich.ItemTimeout,
		BatchTimeout: cfg.Enrich.BatchTimeout,
		Persist:      cfg.Enrich.Persist,
	}, log)

	tokens := middleware.NewAuth(cfg.JWTSecret, cfg.TokenTTL)
	tokens.UseDenylist(cache)

	rateLimiter := ratelim.NewRateLimiter(30, 10, 10*time.Minute)
	stopJanitor := make(chan struct{})
	go rateLimiter.Janitor(time.Minute, stopJanitor)
	enrichLimiter := ratelim.NewRateLimiter(10, 3, 10*time.Minute)
	go enrichLimiter.Janitor(time.Minute, stopJanitor)

	hub := notify.NewHub(log)
	go hub.Run()

	router := routes.NewRouter(routes.Deps{
		Store:         s,
		Cache:         cache,
		Tokens:        tokens,
		Limiter:       rateLimiter,
		EnrichLimiter: enrichLimiter,
		Enricher:      enricher,
		Hub:           hub,
		Vouchers:      booking.NewVouchers(cfg.VoucherSecret),
		Origins:       cfg.Origin,
		Log:           log,
	})

	// logging -> security headers -> CORS -> router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Origin,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)
	handler := middleware.Logging(log)(middleware.SecurityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      cfg.Enrich.BatchTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	server.RegisterOnShutdown(func() {
		log.Info("stopping notification hub")
		hub.Stop()
		close(stopJanitor)
	})

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if client != nil {
		if err := client.Disconnect(shutdownCtx); err != nil {
			log.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	if r, ok := cache.(*rdx.Redis); ok {
		_ = r.Close()
	}
	log.Info("server stopped cleanly")
}

// openStore connects to MongoDB, or returns the in-memory gateway when the
// service runs with APP_ENV=memory.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (*store.Store, *mongo.Client) {
	if cfg.Env == config.EnvMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return store.NewMemory(), nil
	}
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("mongo unavailable", zap.Error(err))
	}
	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.Fatal("creating indexes failed", zap.Error(err))
	}
	return store.NewMongo(database), client
}

// openCache prefers Redis and falls back to a process-local cache.
func openCache(ctx context.Context, cfg config.Config, log *zap.Logger) rdx.Cache {
	if cfg.RedisAddr == "" {
		return rdx.NewMemory()
	}
	r := rdx.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, using in-process cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = r.Close()
		return rdx.NewMemory()
	}
	return r
}
