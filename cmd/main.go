package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"covid_slayer/internal/adapters"
	"covid_slayer/internal/bootstrap"
	authDelivery "covid_slayer/internal/delivery/auth"
	gameDelivery "covid_slayer/internal/delivery/game"
	healthDelivery "covid_slayer/internal/delivery/health"
	userDelivery "covid_slayer/internal/delivery/user"
	ownMiddleware "covid_slayer/internal/middleware"
	"covid_slayer/internal/repository"
	authUC "covid_slayer/internal/usecase/auth"
	gameUC "covid_slayer/internal/usecase/game"
	userUC "covid_slayer/internal/usecase/user"
)

type mainDeliveryHandler struct {
	auth   *authDelivery.AuthHandler
	game   *gameDelivery.GameHandler
	user   *userDelivery.UserHandler
	health *healthDelivery.HealthHandler

	authMiddleware func(http.Handler) http.Handler
	rateLimit      func(http.Handler) http.Handler
}

type dataBaseAdapters struct {
	redisAdapter *adapters.AdapterRedis
	mongoAdapter *adapters.AdapterMongo
}

func main() {
	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		NewLogger(false).Fatal("Failed to setup configuration", zap.Error(err))
	}
	logger := NewLogger(cfg.LogDevelopment)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	databaseAdapters := initDatabaseAdapters(ctx, logger, cfg)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := databaseAdapters.mongoAdapter.Close(closeCtx); err != nil {
			logger.Warn("MongoDB close: ", err)
		}
		if err := databaseAdapters.redisAdapter.Close(closeCtx); err != nil {
			logger.Warn("Redis close: ", err)
		}
	}()

	var grpcHealth *healthDelivery.GRPCServer
	if cfg.GrpcHealthPort != "" {
		grpcHealth, err = healthDelivery.NewGRPCServer(":"+cfg.GrpcHealthPort, logger)
		if err != nil {
			logger.Fatal("Failed to start gRPC health server", zap.Error(err))
		}
		go func() {
			if err := grpcHealth.Serve(ctx); err != nil {
				logger.Error("gRPC health server stopped: ", err)
			}
		}()
	}

	r := chi.NewRouter()
	handlers := initializeDeliveryHandlers(cfg, logger, databaseAdapters)
	handlers.Router(r, cfg.AllowedOrigins())

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	if grpcHealth != nil {
		grpcHealth.SetServing(true)
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	if grpcHealth != nil {
		grpcHealth.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: ", err)
	}
}

func NewLogger(development bool) *zap.SugaredLogger {
	build := zap.NewProduction
	if development {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func (h *mainDeliveryHandler) Router(r *chi.Mux, origins []string) {
	r.Use(middleware.RequestID)
	r.Use(ownMiddleware.PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(ownMiddleware.CORS(origins))

	r.NotFound(healthDelivery.HandleNotFound)
	r.Get("/api/health", h.health.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.rateLimit)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.auth.Register)
			r.Post("/login", h.auth.Login)
			r.Post("/logout", h.auth.Logout)
			r.With(h.authMiddleware).Get("/me", h.auth.Me)
		})

		r.Route("/games", func(r chi.Router) {
			r.Use(h.authMiddleware)
			r.Post("/", h.game.HandleNewGame)
			r.Get("/", h.game.HandleListGames)
			r.Get("/stats/summary", h.game.HandleStats)
			r.Get("/{id}", h.game.HandleGetGame)
			r.Post("/{id}/action", h.game.HandleAction)
			r.Get("/{id}/stream", h.game.HandleStream)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/leaderboard", h.user.Leaderboard)
			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware)
				r.Get("/profile", h.user.GetProfile)
				r.Put("/profile", h.user.UpdateProfile)
				r.Get("/recent-games", h.user.RecentGames)
			})
		})
	})
}

func initDatabaseAdapters(ctx context.Context, log *zap.SugaredLogger, cfg *bootstrap.Config) *dataBaseAdapters {
	mongoAdapter := adapters.NewAdapterMongo(cfg)
	if err := mongoAdapter.Init(ctx); err != nil {
		log.Fatal("Failed to initialize MongoDB", zap.Error(err))
	}

	redisAdapter := adapters.NewAdapterRedis(cfg)
	if err := redisAdapter.Init(ctx); err != nil {
		log.Fatal("Failed to initialize Redis", zap.Error(err))
	}

	log.Info("Database adapters initialized")
	return &dataBaseAdapters{
		redisAdapter: redisAdapter,
		mongoAdapter: mongoAdapter,
	}
}

func initializeDeliveryHandlers(
	cfg *bootstrap.Config,
	log *zap.SugaredLogger,
	databaseAdapters *dataBaseAdapters,
) *mainDeliveryHandler {
	db := databaseAdapters.mongoAdapter.Database
	redisClient := databaseAdapters.redisAdapter.GetClient()

	userStorage := repository.NewMongoUserStorage(log, db)
	gameStorage := repository.NewGameRepository(log, db)

	indexCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := userStorage.EnsureIndexes(indexCtx); err != nil {
		log.Fatal("Failed to create user indexes", zap.Error(err))
	}
	if err := gameStorage.EnsureIndexes(indexCtx); err != nil {
		log.Fatal("Failed to create game indexes", zap.Error(err))
	}

	tokens := authUC.NewTokenIssuer(cfg.JwtSecret, cfg.SessionTTL(), time.Now)
	authUsecase := authUC.NewAuthUsecaseHandler(userStorage, repository.NewRedisTokenDenylist(redisClient), tokens, log)
	gameUsecase := gameUC.NewGameUseCase(gameStorage, userStorage, log,
		gameUC.WithDefaultGameTime(cfg.DefaultGameTime),
		gameUC.WithPageLimit(cfg.PageLimitGames),
	)
	userUsecase := userUC.NewUserUseCase(userStorage, gameUsecase, log, cfg.PageLimitPlayers)

	limiter := repository.NewRedisRateLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)

	return &mainDeliveryHandler{
		auth:   authDelivery.NewAuthHandler(authUsecase, gameUsecase, cfg.CookieSecure, log),
		game:   gameDelivery.NewGameHandler(gameUsecase, gameDelivery.NewHub(log), cfg.AllowedOrigins(), log),
		user:   userDelivery.NewUserHandler(userUsecase, gameUsecase, log),
		health: healthDelivery.NewHealthHandler(map[string]healthDelivery.Pinger{
			"mongo": databaseAdapters.mongoAdapter,
			"redis": databaseAdapters.redisAdapter,
		}, log),
		authMiddleware: ownMiddleware.Auth(authUsecase, log),
		rateLimit:      ownMiddleware.RateLimit(limiter, log),
	}
}
