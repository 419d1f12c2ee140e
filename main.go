// File: courtwatch/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtwatch/clubapi"
	"courtwatch/config"
	"courtwatch/handlers"
	"courtwatch/routes"
	"courtwatch/services/availability"
	"courtwatch/services/booking"
	"courtwatch/services/members"
	"courtwatch/services/monitor"
	"courtwatch/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	loc, err := time.LoadLocation(config.AppConfig.ClubTimezone)
	if err != nil {
		logger.Sugar().Fatalf("main: invalid club timezone %q: %v", config.AppConfig.ClubTimezone, err)
	}

	// The facility adapter that speaks the club's wire protocol is deployed
	// as a separate collaborator; out of the box we run against the
	// in-memory simulator.
	var client clubapi.Client = clubapi.NewSimulator()
	client = clubapi.RateLimited(client, config.AppConfig.ClubAPIRatePerSec)

	roster, err := members.NewStore(config.AppConfig.MembersFile)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to load member roster: %v", err)
	}

	opts := availability.DefaultOptions()
	cache := availability.NewCache(config.AppConfig.CacheFile)
	scanner := &availability.Scanner{Client: client, Cache: cache, Opts: opts}
	finder := &availability.Finder{
		Client:        client,
		Opts:          opts,
		BufferMinutes: config.AppConfig.StartBufferMinutes,
		Location:      loc,
	}

	registry := monitor.NewRegistry(monitor.Deps{
		Finder: finder,
		Client: client,
		Cache:  cache,
		Prefs:  roster,
		Opts:   opts,
	})
	swapper := &booking.Swapper{Client: client}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	handlerBundle := &routes.HandlerBundle{
		Monitors:     handlers.NewMonitorHandler(registry, config.AppConfig.MonitorRetentionMinutes),
		Availability: handlers.NewAvailabilityHandler(scanner, finder, cache),
		Swap:         handlers.NewSwapHandler(swapper),
		Events:       handlers.NewEventsHandler(registry),
	}
	routes.RegisterRoutes(router, handlerBundle)

	// Evict finished monitors in the background.
	retention := time.Duration(config.AppConfig.MonitorRetentionMinutes) * time.Minute
	if retention <= 0 {
		retention = time.Hour
	}
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(retention / 2)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupDone:
				return
			case <-ticker.C:
				registry.Cleanup(retention)
			}
		}
	}()

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")
	close(cleanupDone)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
