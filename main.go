package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing-service/controllers"
	"listing-service/database"
	"listing-service/middleware"
	"listing-service/providers"
	"listing-service/repository"
	"listing-service/routes"
	"listing-service/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	// --- Database ---
	if err := database.Connect(logger); err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}

	// --- Redis (optional listing cache) ---
	rdb := database.NewRedisClient(cfg.RedisURL, logger)
	var cacheClient services.RedisCmdable
	if rdb != nil {
		cacheClient = rdb
	}

	// --- SNS events (non-fatal) ---
	var publisher services.EventPublisher
	if snsPublisher, err := services.NewSNSPublisher(context.Background()); err != nil {
		logger.Warn("SNS publisher init failed, events disabled", zap.Error(err))
	} else {
		publisher = snsPublisher
	}

	// --- Pi platform client ---
	pi := providers.NewPiProviderWithBaseURL(cfg.PiAPIKey, cfg.PiAPIURL)

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimitMiddleware())

	// Structured HTTP request logging
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	})

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// --- Dependency injection ---
	userRepo := repository.NewGormUserRepository(database.DB)
	listingRepo := repository.NewGormListingRepository(database.DB)
	intentRepo := repository.NewGormPaymentIntentRepository(database.DB)

	listingService := services.NewListingService(listingRepo, intentRepo, pi, publisher, cacheClient, cfg.ListingTTL, logger)
	userService := services.NewUserService(userRepo, intentRepo, pi, cfg.WelcomeCredit, logger)

	userController := controllers.NewUserController(userService)
	paymentController := controllers.NewPaymentController(listingService)
	listingController := controllers.NewListingController(listingService)

	routes.RegisterRoutes(r, pi, userController, paymentController, listingController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "listing-service"})
	})

	// --- Expiration sweeper ---
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper := services.NewSweeper(listingRepo, cacheClient, cfg.SweepPeriod, logger)
	sweeper.Start(sweepCtx)

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Listing Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Initiating graceful shutdown...")
	httpShutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	stopSweeper()
	sweeper.Wait()

	if err := database.Close(); err != nil {
		logger.Error("Database close error", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	log.Println("Listing Service stopped gracefully")
}
