package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/techtrust/backend/config"
	"github.com/techtrust/backend/internal/auth"
	"github.com/techtrust/backend/internal/db"
	"github.com/techtrust/backend/internal/handlers"
	"github.com/techtrust/backend/internal/mail"
	"github.com/techtrust/backend/internal/mq"
	"github.com/techtrust/backend/internal/services"
	"github.com/techtrust/backend/internal/storage"
	"github.com/techtrust/backend/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
}

// New constructs a Server with basic middleware and defaults. All external
// collaborators are built here from config and injected; nothing below this
// layer reads the environment.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := buildMailer(cfg.Mail)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objectStorage, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	events, err := buildEvents(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	accountRepo := store.NewAccountRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	claimRepo := store.NewClaimRepository(dbConn)
	vettingRepo := store.NewVettingRepository(dbConn)

	authService := services.NewAuthService(accountRepo, mailer)
	profileService := services.NewProfileService(profileRepo)
	claimService := services.NewClaimService(claimRepo, objectStorage)
	trustScoreService := services.NewTrustScoreService(
		cfg.TrustScore, accountRepo, profileRepo, vettingRepo, events, cfg.MQ.Channel)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authMiddleware := handlers.RequireAuth(tokens, cfg.Auth.CookieName)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           86400,
		}),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, tokens, cfg.Auth.CookieName)
	})
	router.Route("/profiles", func(r chi.Router) {
		handlers.ProfileRouter(r, profileService, authService, authMiddleware)
	})
	router.Route("/claims", func(r chi.Router) {
		handlers.ClaimRouter(r, claimService, authMiddleware)
	})
	router.Route("/trust-score", func(r chi.Router) {
		handlers.TrustScoreRouter(r, trustScoreService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	return s.httpServer.Close()
}

func buildMailer(cfg config.MailConfig) (*mail.Mailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return mail.New(nil), nil
	}
	client, err := mail.NewBrevoClient(cfg)
	if err != nil {
		return nil, err
	}
	return mail.New(client), nil
}

func buildStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildEvents(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
