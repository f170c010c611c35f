package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baedrik/skulls2/internal/cache"
	"github.com/baedrik/skulls2/internal/catalog"
	"github.com/baedrik/skulls2/internal/config"
	"github.com/baedrik/skulls2/internal/engine"
	"github.com/baedrik/skulls2/internal/handler"
	"github.com/baedrik/skulls2/internal/middleware"
	"github.com/baedrik/skulls2/internal/router"
	"github.com/baedrik/skulls2/internal/service"
	"github.com/baedrik/skulls2/pkg/response"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting skull alchemy engine...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)
	response.BlockSize = cfg.Engine.BlockSize

	eng, backend, err := engine.FromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer backend.Close()

	gatewayCache, err := cache.Open(&cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	if closer, ok := gatewayCache.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	gateway := service.NewGateway(eng, gatewayCache, cfg.Cache.TTL, cfg.Engine.StartHeight)

	if err := bootstrap(cfg, eng, gateway); err != nil {
		log.Fatalf("Failed to bootstrap engine: %v", err)
	}

	sessions := service.NewSessionService(gatewayCache, eng, cfg.App.SessionTTL)
	maintenance := service.NewMaintenanceScheduler(eng, gatewayCache, service.MaintenanceConfig{
		Interval: cfg.Maintenance.Interval,
		Timeout:  cfg.Maintenance.Timeout,
	})
	maintenance.Start()
	defer maintenance.Stop()

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Sessions: sessions,
		APIKeys:  cfg.App.APIKeys,
	})

	r := router.New(router.Config{
		Handler:        handler.New(cfg.App.Name, cfg.App.Version, eng),
		EngineHandler:  handler.NewEngineHandler(gateway, eng),
		SessionHandler: handler.NewSessionHandler(sessions),
		AdminHandler:   handler.NewAdminHandler(eng, maintenance, gatewayCache, cfg.Store.Type, cfg.Cache.Type),
		AuthMiddleware: authMiddleware,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Final checkpoint once no message can arrive.
	if report := maintenance.RunNow(); report.Error != "" {
		log.Printf("Final checkpoint error: %s", report.Error)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

// bootstrap instantiates a fresh store, from the catalog when one is
// configured and from the engine settings otherwise. A store that is
// already instantiated is left alone.
func bootstrap(cfg *config.Config, eng *engine.Engine, gateway *service.Gateway) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	done, err := eng.Instantiated(ctx)
	if err != nil {
		return err
	}
	if done {
		log.Println("Engine state found, skipping instantiate")
		return nil
	}
	if cfg.Engine.Admin == "" {
		log.Println("Engine is not instantiated and ENGINE_ADMIN is unset; waiting for skullctl init")
		return nil
	}

	if cfg.Engine.CatalogPath != "" {
		f, err := catalog.Load(cfg.Engine.CatalogPath)
		if err != nil {
			return err
		}
		return f.Apply(ctx, eng, cfg.Engine.Admin, func() engine.Env { return gateway.Env(cfg.Engine.Admin, nil) })
	}
	if cfg.Engine.SkullsCollection == "" {
		log.Println("Engine is not instantiated and no catalog or skulls collection is configured")
		return nil
	}
	_, err = eng.Instantiate(ctx, gateway.Env(cfg.Engine.Admin, nil), engine.InitParams{
		Entropy:          cfg.Engine.Entropy,
		SkullsCollection: cfg.Engine.SkullsCollection,
		SvgServer:        cfg.Engine.SvgServer,
		ChargeTime:       cfg.Engine.ChargeTime,
		RewindCooldown:   cfg.Engine.RewindCooldown,
	})
	return err
}
