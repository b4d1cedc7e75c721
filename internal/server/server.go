// Пакет server — HTTP-сервер Forum Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/forum-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/forum-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/forum-module/internal/config"
)

// Handlers — обработчики, из которых собирается роутер.
type Handlers struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Forum    *handlers.ForumHandler
	Admin    *handlers.AdminHandler
	Identity *middleware.Identity
	// Realtime — websocket endpoint (realtime.Handler)
	Realtime http.Handler
}

// Server — HTTP-сервер Forum Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     NewRouter(logger, h),
		ReadTimeout: 30 * time.Second,
		// WriteTimeout не задан: websocket-соединения живут дольше любого лимита
		IdleTimeout: 120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер.
//
//	/health/*, /metrics      — без сессии
//	/login, /auth/*, /logout — вход через Discord
//	/ws                      — realtime-события
//	/api/v1/*                — JSON API; запись требует входа, /admin — admin-доступа
func NewRouter(logger *slog.Logger, h Handlers) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)
	router.Get("/", h.Health.Index)

	router.Get("/login", h.Auth.HandleLogin)
	router.Get("/auth/discord/callback", h.Auth.HandleCallback)
	router.Get("/logout", h.Auth.HandleLogout)
	router.Post("/logout", h.Auth.HandleLogout)

	// Подписка анонимна: читать форум может любой
	router.Handle("/ws", h.Realtime)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Identity.Middleware())

		r.Get("/me", handlers.Me)
		r.Get("/categories", h.Forum.ListCategories)
		r.Get("/categories/{key}/posts", h.Forum.ListPosts)
		r.Get("/posts/{id}", h.Forum.GetPost)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/categories/{key}/posts", h.Forum.CreatePost)
			r.Post("/posts/{id}/replies", h.Forum.CreateReply)
			r.Post("/posts/{id}/close", h.Forum.ClosePost)
			r.Post("/posts/{id}/reopen", h.Forum.ReopenPost)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/users", h.Admin.ListUsers)
			r.Get("/access-roles", h.Admin.ListAccessRoles)
			r.Post("/access-roles", h.Admin.AddAccessRole)
			r.Delete("/access-roles/{roleID}", h.Admin.RemoveAccessRole)
			r.Get("/role-labels", h.Admin.ListRoleLabels)
			r.Put("/role-labels/{roleID}", h.Admin.PutRoleLabel)
			r.Delete("/role-labels/{roleID}", h.Admin.DeleteRoleLabel)
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket-соединения Shutdown не ждёт, они закрываются вместе с процессом
	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
