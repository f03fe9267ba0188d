package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dxboy266/The-Stoic-Leek/internal/config"
	"github.com/Dxboy266/The-Stoic-Leek/internal/gateway"
	"github.com/Dxboy266/The-Stoic-Leek/internal/handlers"
	"github.com/Dxboy266/The-Stoic-Leek/internal/logger"
	"github.com/Dxboy266/The-Stoic-Leek/internal/middleware"
	"github.com/Dxboy266/The-Stoic-Leek/internal/session"
	"github.com/Dxboy266/The-Stoic-Leek/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Register custom request validators
	validator.Register()

	// Upstream service clients share one timeout-bounded HTTP client
	httpClient := &http.Client{Timeout: appConfig.RequestTimeout}
	quoteClient := gateway.NewQuoteClient(appConfig.QuoteAPIURL, httpClient, appConfig.BatchMax)
	recognizerClient := gateway.NewRecognizerClient(appConfig.OCRAPIURL, httpClient)
	blobClient := gateway.NewBlobStoreClient(appConfig.PersistAPIURL, httpClient)

	// Create the engine session and pull previously persisted state. A load
	// failure is survivable: the session runs in-memory and keeps persistence
	// suppressed so the saved blob is not overwritten.
	sess := session.New(quoteClient, recognizerClient, blobClient, appConfig.SaveDebounce, appConfig.RequestTimeout, log)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), appConfig.RequestTimeout)
	if err := sess.Load(loadCtx); err != nil {
		log.Warnw("failed to load persisted state, starting empty", "error", err)
	}
	cancelLoad()

	// Initialize handlers
	fundHandler := handlers.NewFundHandler(sess)
	settingsHandler := handlers.NewSettingsHandler(sess)

	// Initialize Gin router
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Holdings routes
	holdings := v1.Group("/holdings")
	holdings.GET("", fundHandler.ListHoldings)
	holdings.POST("", fundHandler.AddHolding)
	holdings.PUT("/:code", fundHandler.UpdateHolding)
	holdings.DELETE("/:code", fundHandler.DeleteHolding)
	holdings.POST("/import", fundHandler.ImportHoldings)
	holdings.POST("/refresh", fundHandler.RefreshValuations)

	// Fund data routes
	fund := v1.Group("/fund")
	fund.GET("/search", fundHandler.SearchFunds)
	fund.GET("/:code", fundHandler.GetQuote)
	fund.POST("/import/screenshot", fundHandler.RecognizeScreenshot)

	// Settings routes
	v1.GET("/settings", settingsHandler.GetSettings)
	v1.PUT("/settings", settingsHandler.UpdateSettings)

	server := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: router,
	}

	// Serve until interrupted, then flush pending persistence work
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting fund engine server on port %s", appConfig.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server shutdown failed", "error", err)
	}
	if err := sess.Close(shutdownCtx); err != nil {
		log.Errorw("failed to flush persisted state", "error", err)
	}
	return nil
}
