package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/todolist-app/server/config"
	"github.com/todolist-app/server/internal/db"
	"github.com/todolist-app/server/internal/handlers"
	"github.com/todolist-app/server/internal/mq"
	"github.com/todolist-app/server/internal/services"
	"github.com/todolist-app/server/internal/store"
	"github.com/todolist-app/server/internal/views"
)

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	mq         *mq.MQ
}

// Deps are the collaborators needed to build the HTTP handler.
type Deps struct {
	Auth          *services.AuthService
	Lists         *services.ListService
	Views         *views.Renderer
	SessionSecret string
	Production    bool
}

// New constructs a Server backed by Postgres and, when configured, an event broker.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	renderer, err := views.New()
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	var events *services.Events
	if broker != nil {
		events = services.NewEvents(broker, cfg.Events.Channel)
		log.Printf("publishing activity events to %s via %s", cfg.Events.Channel, cfg.Events.Backend)
	}

	userRepo := store.NewUserRepository(dbConn)
	itemRepo := store.NewItemRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)

	router := NewRouter(Deps{
		Auth:          services.NewAuthService(userRepo, sessionRepo, events, cfg.SessionTTL),
		Lists:         services.NewListService(itemRepo, events),
		Views:         renderer,
		SessionSecret: cfg.SessionSecret,
		Production:    cfg.Production,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
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
		db:         dbConn,
		mq:         broker,
	}, nil
}

// NewRouter wires middleware and routes around the given services.
func NewRouter(deps Deps) *chi.Mux {
	sessions := handlers.NewSessionManager(deps.Auth, deps.SessionSecret, deps.Production)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Compress(5),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/static/*", http.StripPrefix("/static/", views.Static()))

	router.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		handlers.AuthRouter(r, deps.Auth, sessions, deps.Views)
		handlers.ListRouter(r, deps.Lists, deps.Views)
	})

	return router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Printf("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if mqErr := s.mq.Close(); mqErr != nil {
			log.Printf("close mq: %v", mqErr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
