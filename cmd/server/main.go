package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/songbranch/api/internal/broadcast"
	"github.com/songbranch/api/internal/client"
	"github.com/songbranch/api/internal/config"
	"github.com/songbranch/api/internal/handler"
	"github.com/songbranch/api/internal/middleware"
	"github.com/songbranch/api/internal/service"
	"github.com/songbranch/api/internal/store"
	"github.com/songbranch/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Core components
	jobStore := store.NewJobStore(redisClient, cfg.TTL.Job, cfg.TTL.Tree, cfg.TTL.Candidates)
	broadcaster := broadcast.NewBroadcaster(cfg.TTL.Job)
	spotifyClient := client.NewSpotifyClient(&cfg.Spotify)
	if !spotifyClient.IsConfigured() {
		log.Println("Warning: Spotify credentials not configured, searches will fail")
	}

	// Services
	searchService := service.NewSearchService(jobStore, spotifyClient, broadcaster, asynqClient)
	voteService := service.NewVoteService(jobStore)

	// Handlers
	searchHandler := handler.NewSearchHandler(searchService, validate)
	voteHandler := handler.NewVoteHandler(voteService, validate)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"spotify": spotifyClient.IsConfigured(),
			},
		})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())
	api.Post("/start-search", rateLimiter.SearchLimit(cfg.RateLimit.SearchPerHour), searchHandler.Start)
	api.Get("/search-updates/:jobId", searchHandler.Updates)
	api.Post("/vote", rateLimiter.VoteLimit(cfg.RateLimit.VotePerMin), voteHandler.Cast)

	// WebSocket status stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/search/:jobId", websocket.New(func(c *websocket.Conn) {
		searchHandler.HandleWS(c, c.Params("jobId"))
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, jobStore, spotifyClient, searchService)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, jobStore *store.JobStore, catalog client.Catalog, searchService *service.SearchService) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"search": 10,
			},
		},
	)

	searchWorker := worker.NewSearchWorker(jobStore, catalog, searchService, cfg.Tree.Depth)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSearch, searchWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
