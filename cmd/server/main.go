package main

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/api/handlers"
	"github.com/postdeckhq/postdeck/internal/api/middleware"
	job "github.com/postdeckhq/postdeck/internal/jobs"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/queue"
	"github.com/postdeckhq/postdeck/internal/repository"
	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("database is unreachable")
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	store, err := service.NewR2Store(*cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	userRepo := repository.NewUserRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	postRepo := repository.NewMemoryPostRepository()
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)
	historyRepo := repository.NewPublishHistoryRepository(db)

	facebookService := service.NewFacebookService(*cfg)
	instagramService := service.NewInstagramService(*cfg)
	twitterService := service.NewTwitterService(*cfg)
	tiktokService := service.NewTiktokService(*cfg)
	amazonService := service.NewAmazonService(*cfg)

	publishers := map[platforms.Platform]service.PlatformPublisher{
		platforms.Facebook:  facebookService,
		platforms.Instagram: instagramService,
		platforms.Twitter:   twitterService,
		platforms.TikTok:    tiktokService,
		platforms.Amazon:    amazonService,
	}

	// Amazon's LWA tokens are not refreshable server-side, so it has no
	// refresher entry.
	refreshers := map[platforms.Platform]service.TokenRefresher{
		platforms.Facebook:  facebookService,
		platforms.Instagram: instagramService,
		platforms.Twitter:   twitterService,
		platforms.TikTok:    tiktokService,
	}

	credentialService := service.NewCredentialService(*cfg, credentialRepo)
	mediaService := service.NewMediaService(*cfg, store, mediaAssetRepo)
	refreshService := service.NewRefreshService(*cfg, credentialRepo, refreshers)
	validatorService := service.NewValidatorService()
	settingsService := service.NewSettingsService(settingsRepo)
	publishService := service.NewPublishService(*cfg, postRepo, historyRepo, credentialService, mediaService, publishers)
	publishQueue := queue.NewQueue(client)
	postService := service.NewPostService(postRepo, validatorService, credentialService, mediaService, settingsService, publishService, publishQueue)
	platformService := service.NewPlatformService(*cfg, credentialService, facebookService, instagramService, twitterService, tiktokService, amazonService)
	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	subscriptionService := service.NewSubscriptionService(*cfg, userRepo, subscriptionRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    520 * 1024 * 1024, // videos up to 512 MB plus form overhead
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    transfer.ErrCodeInternal,
					"message": "something went wrong",
				},
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)
	premiumMiddleware := middleware.NewPremiumMiddleware(subscriptionService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallback)
	app.Post("/logout", auth.Logout)

	platformHandler := handlers.NewPlatformHandler(*cfg, platformService, refreshService)
	app.Get("/connect/:platform/callback", platformHandler.Callback)

	payment := handlers.NewPaymentHandler(subscriptionService)
	app.Post("/payment/webhook", payment.PaymentWebhook)

	// Everything below requires a session cookie or an API key.
	app.Use(authMiddleware.RequireUser())

	app.Get("/connect/:platform", platformHandler.Connect)
	app.Get("/accounts", platformHandler.ListAccounts)
	app.Post("/accounts/remove", platformHandler.RemoveAccount)
	app.Post("/accounts/refresh", platformHandler.RefreshAccounts)

	post := handlers.NewPostHandler(postService)
	app.Post("/posting", premiumMiddleware.RequirePremium(), post.CreatePost)
	app.Get("/posting", post.ListPosts)
	app.Get("/posting/:id", post.GetPost)
	app.Delete("/posting/:id", post.RemovePost)

	media := handlers.NewMediaHandler(mediaService)
	app.Post("/media", media.UploadMedia)

	user := handlers.NewUserHandler(*cfg, userService)
	app.Get("/user/info", user.GetUserInfo)
	app.Post("/user/remove", user.RemoveUser)

	settings := handlers.NewSettingsHandler(settingsService)
	app.Get("/settings/info", settings.GetSettings)
	app.Post("/settings/update", settings.UpdateSettings)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	app.Post("/api_key/new", apiKeys.CreateApiKey)
	app.Get("/api_key/list", apiKeys.ListKeys)
	app.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	refreshJob := job.NewTokenRefreshJob(credentialRepo, refreshService)
	cronRunner := cron.New()
	if err := cronRunner.AddFunc("@every 00h10m00s", refreshJob.RefreshTokens); err != nil {
		log.Fatal().Err(err).Msg("could not schedule token refresh job")
	}
	cronRunner.Start()

	worker := queue.NewWorker(publishService)
	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, worker.HandlePublishPostTask)

		log.Info().Msg("starting the asynq worker")
		if err := server.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("could not start asynq worker")
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("server is running")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
		return
	}
	log.Info().Msg("database connection closed")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("shutting down server")

	if err := app.Shutdown(); err != nil {
		log.Fatal().Err(err).Msg("failed to shut down server")
	}

	closeDB(db)
	log.Info().Msg("server shutdown complete")
}
