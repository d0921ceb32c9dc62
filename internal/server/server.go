// Package server - HTTP-поверхность приложения: страницы дашборда, постов,
// менеджеров и websocket-ленты изменений.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/ButyrinIA/socials/internal/access"
	"github.com/ButyrinIA/socials/internal/config"
	"github.com/ButyrinIA/socials/internal/content"
	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/permit"
	"github.com/ButyrinIA/socials/internal/realtime"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Gate - проверки прав, которые нужны маршрутам
type Gate interface {
	Allowed(ctx context.Context, userID string, action models.Action) bool
	Permissions(ctx context.Context, userID string) permit.Permissions
	SyncRole(ctx context.Context, user models.Identity, role models.Role) error
}

type Server struct {
	cfg      *config.Config
	storage  storage.Storage
	gate     Gate
	hub      *realtime.Hub
	resolver *access.Resolver
	content  *content.Service
	validate *validator.Validate
	log      *zap.Logger
	handler  http.Handler

	// done закрывается при остановке, чтобы завершить websocket-соединения
	done     chan struct{}
	doneOnce sync.Once
}

func New(cfg *config.Config, store storage.Storage, gate Gate, hub *realtime.Hub, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		storage:  store,
		gate:     gate,
		hub:      hub,
		resolver: access.NewResolver(store, store, log.Named("access")),
		content:  content.NewService(store, gate, hub, log.Named("content")),
		validate: validator.New(),
		log:      log,
		done:     make(chan struct{}),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Get("/health", s.handleHealth)
	r.Get("/login-register", s.handleLoginPage)
	r.Get("/error", s.handleErrorPage)
	if s.cfg.Server.DevTokens {
		r.Post("/token", s.handleToken)
	}

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)

		r.Get("/", s.handleIndex)
		r.Get("/dashboard", s.handleDashboard)

		r.Get("/select-role", s.handleRoles)
		r.Post("/select-role", s.handleSelectRole)

		r.Get("/profile", s.handleProfile)
		r.Put("/profile", s.handleUpdateProfile)

		r.Get("/managers", s.handleManagers)
		r.Post("/managers", s.handleAddManager)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", s.handleAccountPosts)
			r.Post("/", s.handleCreatePost)
			r.Get("/feed", s.handleFeed)
			r.Get("/{id}", s.handlePost)
			r.Post("/{id}/comments", s.handleCreateComment)
		})

		r.Get("/ws/posts", s.handlePostsFeed)
		r.Get("/ws/posts/{id}/comments", s.handleCommentsFeed)
	})
	return r
}

// Run слушает порт до отмены ctx, затем останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.Server.Port,
		Handler: s.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	s.doneOnce.Do(func() { close(s.done) })
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
