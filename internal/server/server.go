package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/accounthub/apiserver/config"
	"github.com/accounthub/apiserver/internal/auth"
	"github.com/accounthub/apiserver/internal/db"
	"github.com/accounthub/apiserver/internal/events"
	"github.com/accounthub/apiserver/internal/handlers"
	"github.com/accounthub/apiserver/internal/mq"
	"github.com/accounthub/apiserver/internal/services"
	"github.com/accounthub/apiserver/internal/storage"
	"github.com/accounthub/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	mongo      *mongo.Client
	queue      *mq.MQ
	log        *zap.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{log: logger}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET is required: %w", err)
	}

	var repo services.UserRepository
	var healthCheck func(context.Context) error
	switch cfg.Store.Backend {
	case "", "mongo":
		client, database, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.mongo = client
		repo = store.NewUserRepository(database)
		healthCheck = func(ctx context.Context) error { return db.Ping(ctx, client) }
	case "memory":
		logger.Warn("using in-memory user store; accounts are lost on restart")
		repo = store.NewMemoryUserRepository()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	accounts := services.NewAccountService(
		repo,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		logger.Named("accounts"),
	)

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}
	if queue != nil {
		s.queue = queue
		accounts.WithEvents(events.NewPublisher(queue, cfg.MQ.EventsChannel, logger.Named("events")))
	}

	photos, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}
	if photos != nil {
		accounts.WithPhotoStorage(photos)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger.Named("http")),
		middleware.Timeout(60*time.Second),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)
	router.Get("/healthz", handlers.Healthz(healthCheck, logger))
	router.Route("/users", func(r chi.Router) {
		handlers.AccountRouter(r, accounts, handlers.RequireAuth(tokens), logger.Named("handlers"))
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server configured",
		zap.Int("port", port),
		zap.String("store", cfg.Store.Backend),
		zap.String("mq", cfg.MQ.Backend),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("photo_uploads", accounts.PhotoUploadsEnabled()),
	)
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the broker and
// database connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.log.Warn("close message queue", zap.Error(err))
		}
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mongo.Disconnect(ctx); err != nil {
			s.log.Warn("disconnect mongo", zap.Error(err))
		}
	}
}
