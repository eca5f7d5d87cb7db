package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tillpoint/go-pos-sync/internal/aws"
	"github.com/tillpoint/go-pos-sync/internal/checkout"
	"github.com/tillpoint/go-pos-sync/internal/config"
	"github.com/tillpoint/go-pos-sync/internal/handlers"
	"github.com/tillpoint/go-pos-sync/internal/orders"
	"github.com/tillpoint/go-pos-sync/internal/platform"
	"github.com/tillpoint/go-pos-sync/internal/syncer"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterCheckoutRoutes(r, cfg)
	handlers.RegisterSyncRoutes(r, cfg)

	return r
}

func buildRegistry(cfg *config.Config) *platform.Registry {
	httpClient := &http.Client{Timeout: cfg.DispatchTimeout}
	dispatchers := map[string]platform.Dispatcher{}
	for name, pc := range map[string]config.PlatformConfig{
		orders.PlatformShopify:     cfg.Shopify,
		orders.PlatformWooCommerce: cfg.WooCommerce,
		orders.PlatformBigCommerce: cfg.BigCommerce,
	} {
		if pc.URL == "" {
			continue
		}
		dispatchers[name] = platform.NewRESTDispatcher(name, pc.URL, pc.APIKey, httpClient)
	}
	return platform.NewRegistry(dispatchers)
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := aws.NewAWSClients(ctx, cfg.DynamoEndpoint)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	store := orders.NewStore(clients.DynamoDB, cfg.OrdersTable)
	coordinator := checkout.NewCoordinator(store)
	machine := syncer.NewMachine(store)
	registry := buildRegistry(cfg)

	publisher := aws.NewPublisher(clients.SQS, cfg.SyncQueueURL)
	var metrics *aws.Metrics
	if cfg.MetricsEnabled {
		metrics = aws.NewMetrics(clients.CloudWatch, cfg.TerminalID)
	}

	scheduler := syncer.NewScheduler(store, machine, registry, publisher, metrics, syncer.Config{
		TickInterval:    cfg.TickInterval,
		Concurrency:     cfg.Concurrency,
		DispatchTimeout: cfg.DispatchTimeout,
	})

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
	}()

	r := setupRouter(handlers.HandlerConfig{
		Coordinator: coordinator,
		Scheduler:   scheduler,
		Store:       store,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
