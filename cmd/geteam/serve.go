package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/kibanana/geteam-http-api/internal/auth"
	"github.com/kibanana/geteam-http-api/internal/config"
	"github.com/kibanana/geteam-http-api/internal/counter"
	"github.com/kibanana/geteam-http-api/internal/db"
	"github.com/kibanana/geteam-http-api/internal/grpcserver"
	"github.com/kibanana/geteam-http-api/internal/httpapi"
	"github.com/kibanana/geteam-http-api/internal/notify"
	"github.com/kibanana/geteam-http-api/internal/reconcile"
	"github.com/kibanana/geteam-http-api/internal/recruit"
	"github.com/kibanana/geteam-http-api/internal/store/postgres"
)

const (
	counterPrefix = "geteam:count:"
	notifyTimeout = 5 * time.Second
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply the schema before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[geteam] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if serveMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}
	log.Println("[geteam] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[geteam] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "geteam")
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	log.Println("[geteam] Redis connected ✓")

	// ── Engine ───────────────────────────────────────────────────────────────
	store := postgres.New(pool)
	notifier, err := buildNotifier(cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer notifier.Wait()

	svc := recruit.NewService(store, counter.NewRedis(rdb, counterPrefix), notifier,
		recruit.WithLogger(logger),
		recruit.WithLimits(cfg.Limits),
		recruit.WithRosterPolicy(cfg.RosterPolicy),
	)
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if !verifier.JWTMode() {
		log.Println("[geteam] JWT_SECRET not set: trusting x-user-id from the gateway")
	}

	// ── Reconciler ───────────────────────────────────────────────────────────
	reconciler := reconcile.New(store, cfg.ReconcileSpec, logger)
	if err := reconciler.Start(ctx); err != nil {
		return err
	}
	defer reconciler.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	httpapi.NewHandler(svc, verifier, logger, version).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[geteam] v%s HTTP listening on :%s", version, cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[geteam] HTTP server error: %v", err)
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	g := grpc.NewServer()
	health := grpcserver.Register(g, grpcserver.NewServer(svc, verifier))

	go func() {
		log.Printf("[geteam] gRPC listening on :%s", cfg.GRPCPort)
		if err := g.Serve(lis); err != nil {
			log.Fatalf("[geteam] gRPC server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[geteam] Shutting down…")
	health.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[geteam] Shutdown error: %v", err)
	}
	g.GracefulStop()
	log.Println("[geteam] Stopped.")
	return nil
}

// buildNotifier publishes every event on Redis and, when a webhook is
// configured, announces formed teams on Discord. Delivery is asynchronous.
func buildNotifier(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (*notify.Async, error) {
	sinks := notify.Multi{notify.NewRedis(rdb, cfg.NotifyChannel)}
	if cfg.DiscordWebhookID != "" {
		d, err := notify.NewDiscord(cfg.DiscordWebhookID, cfg.DiscordWebhookToken)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, d)
		log.Println("[geteam] Discord team announcements enabled")
	}
	return notify.NewAsync(sinks, notifyTimeout, logger), nil
}
