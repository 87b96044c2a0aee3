package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/tonbridge/adapters/backend"
	"github.com/layer-3/tonbridge/adapters/connector"
	"github.com/layer-3/tonbridge/adapters/events"
	"github.com/layer-3/tonbridge/adapters/store"
	"github.com/layer-3/tonbridge/adapters/tokenizer"
	"github.com/layer-3/tonbridge/config"
	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/internal/logger"
	"github.com/layer-3/tonbridge/internal/netutil"
	"github.com/layer-3/tonbridge/ports"
	"github.com/layer-3/tonbridge/service"
	httptransport "github.com/layer-3/tonbridge/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("TONBRIDGE_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.New(cfg.Logging, os.Stdout)
	slog.SetDefault(lg)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wmLogger := watermill.NewStdLogger(cfg.Logging.Level == "debug", false)

	var (
		registry  ports.Registry
		publisher message.Publisher
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to reach Redis: %v", err)
		}

		registry = store.NewRedisStore(redisClient)
		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
	} else {
		lg.Warn("redis not configured; pending handshakes are process-local")
		registry = store.NewMemoryStore()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}
	defer publisher.Close()

	signKey, err := tokenizer.LoadSigningKey(cfg.Auth.SigningKeyFile)
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}

	httpClient := netutil.BuildHTTPClient(cfg.HTTPClient.Timeout)

	handshake := service.NewHandshakeService(
		registry,
		backend.NewHTTPBackend(cfg.Backend.URL, httpClient),
		cfg.Server.BaseURL,
		service.WithProofIssuer(tokenizer.NewJWTTokenizer(signKey, cfg.Auth.ProofTTL)),
		service.WithEventPublisher(events.NewWatermillPublisher(publisher)),
		service.WithPendingTTL(cfg.Auth.PendingTTL),
		service.WithLogger(lg),
	)

	conn := connector.NewHTTPConnector(connector.Config{
		URL:         cfg.Connector.URL,
		ManifestURL: cfg.ManifestURL(),
		HTTPClient:  httpClient,
	})
	go initConnector(ctx, conn, handshake, cfg.Connector.InitInterval, lg)

	router := httptransport.SetupRouter(handshake, core.Manifest{
		URL:     cfg.Manifest.URL,
		Name:    cfg.Manifest.Name,
		IconURL: cfg.Manifest.IconURL,
	}, lg)

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("shutdown failed", "error", err)
		}
	}()

	lg.Info("tonbridge listening", "addr", cfg.Server.Listen, "base_url", cfg.Server.BaseURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initConnector polls the sidecar until it is ready, then makes it available to handshakes.
// Until then both endpoints answer "Connector not initialized".
func initConnector(ctx context.Context, conn *connector.HTTPConnector, handshake *service.HandshakeService, interval time.Duration, lg *slog.Logger) {
	lg = lg.With("component", "connector")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := conn.Init(ctx)
		lg.Info("connector init", "status", logger.Status(err), "error", err)
		if err == nil {
			handshake.AttachConnector(conn)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
