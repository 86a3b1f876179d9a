package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/kee711/threads-saas-sub001/configs"
	"github.com/kee711/threads-saas-sub001/internal/api/handlers"
	"github.com/kee711/threads-saas-sub001/internal/api/middleware"
	"github.com/kee711/threads-saas-sub001/internal/gateway"
	job "github.com/kee711/threads-saas-sub001/internal/jobs"
	"github.com/kee711/threads-saas-sub001/internal/publish"
	"github.com/kee711/threads-saas-sub001/internal/queue"
	"github.com/kee711/threads-saas-sub001/internal/repository"
	"github.com/kee711/threads-saas-sub001/internal/service"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	threadMediaRepo := repository.NewThreadMediaRepository(db)
	accountRepo := repository.NewThreadsAccountRepository(db)
	historyRepo := repository.NewPublishHistoryRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	accountService := service.NewThreadsAccountService(*cfg, accountRepo)
	threadService := service.NewThreadService(db, threadRepo, threadMediaRepo, accountRepo, historyRepo)
	mediaService := service.NewMediaService(*cfg, mediaAssetRepo)
	aiService := service.NewAIService(*cfg)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	threadsGateway := gateway.NewThreadsGateway(*cfg)
	creationWorker := publish.NewCreationWorker(threadRepo, historyRepo, accountService, threadsGateway)
	runner := publish.NewRunner(threadRepo, historyRepo, accountService, threadsGateway, cfg.Scheduler)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	account := handlers.NewAccountHandler(accountService, *cfg)
	app.Get("/auth/threads/callback", account.ConnectCallback)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/auth/threads", account.Connect)
	api.Get("/accounts", account.ListAccounts)
	api.Post("/accounts/remove", account.RemoveAccount)

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	thread := handlers.NewThreadHandler(threadService, creationWorker, client)
	api.Post("/threads/create", thread.CreateThread)
	api.Get("/threads", thread.ListThreads)
	api.Put("/threads/:id", thread.UpdateThread)
	api.Post("/threads/:id/schedule", thread.ScheduleThread)
	api.Post("/threads/:id/cancel", thread.CancelThread)
	api.Post("/threads/:id/create-now", thread.CreateNow)
	api.Get("/threads/:id/history", thread.ThreadHistory)
	api.Post("/threads/remove", thread.RemoveThread)

	pub := handlers.NewPublishHandler(runner)
	api.Post("/publish/tick", pub.Tick)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", media.Upload)
	api.Get("/media", media.ListMedia)

	ai := handlers.NewAIHandler(aiService)
	api.Post("/ai/generate", ai.Generate)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(accountRepo, accountService)
	cleanupJob := job.NewCleanupJob(threadRepo, cfg.Scheduler.Retention)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", func() {
		report := runner.RunTick(context.Background())
		if report.Attempted > 0 {
			log.Printf("publish tick: attempted=%d succeeded=%d failed=%d",
				report.Attempted, report.Succeeded, report.Failed)
		}
	})
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", cleanupJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		worker := queue.NewWorker(creationWorker)
		mux.HandleFunc(queue.TaskTypeCreateContainer, worker.HandleCreateContainerTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
