package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"docspace/entity"
	"docspace/internal/config"
	"docspace/internal/http-server/handlers/analytics"
	"docspace/internal/http-server/handlers/errors"
	"docspace/internal/http-server/handlers/invite"
	"docspace/internal/http-server/handlers/register"
	"docspace/internal/http-server/handlers/track"
	"docspace/internal/http-server/middleware/authenticate"
	"docspace/internal/http-server/middleware/metrics"
	"docspace/internal/http-server/middleware/timeout"
	"docspace/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	invite.Core
	register.Core
	track.Core
	analytics.Core
}

// NewRouter builds the API routes. The metrics endpoint is mounted only when
// a non-nil Observer is given and metrics are enabled in conf.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler, observer metrics.Observer) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(5 * time.Second))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	if observer != nil {
		router.Use(metrics.New(observer))
	}

	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	if observer != nil && conf.Metrics.Enabled {
		router.Handle(conf.Metrics.Path, promhttp.Handler())
	}

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Route("/register", func(reg chi.Router) {
			reg.Post("/validate", register.Validate(log, handler))
			reg.Post("/redeem", register.Redeem(log, handler))
		})
		rootApi.Route("/track/session", func(tr chi.Router) {
			tr.Post("/", track.StartSession(log, handler))
			tr.Post("/{id}/view", track.PageView(log, handler))
			tr.Post("/{id}/exit", track.PageExit(log, handler))
			tr.Post("/{id}/search", track.Search(log, handler))
			tr.Post("/{id}/end", track.EndSession(log, handler))
		})
		rootApi.Route("/admin", func(admin chi.Router) {
			admin.Use(authenticate.New(log, handler))
			admin.Use(authenticate.RequireRole(entity.RoleAdmin))
			admin.Route("/invites", func(inv chi.Router) {
				inv.Get("/", invite.List(log, handler))
				inv.Post("/", invite.Generate(log, handler))
				inv.Get("/active", invite.ListActive(log, handler))
				inv.Get("/stats", invite.Stats(log, handler))
				inv.Post("/{id}/deactivate", invite.Deactivate(log, handler))
				inv.Delete("/{id}", invite.Delete(log, handler))
			})
			admin.Route("/analytics", func(an chi.Router) {
				an.Get("/summary", analytics.Summary(log, handler))
				an.Get("/popular", analytics.Popular(log, handler))
				an.Get("/recent", analytics.Recent(log, handler))
				an.Get("/daily", analytics.Daily(log, handler))
				an.Get("/daily/{date}", analytics.Day(log, handler))
				an.Get("/countries", analytics.Countries(log, handler))
				an.Get("/report", analytics.Report(log, handler))
				an.Post("/purge", analytics.Purge(log, handler))
			})
		})
	})

	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler, observer metrics.Observer) *Server {
	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	return &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
		httpServer: &http.Server{
			Handler:      NewRouter(conf, log, handler, observer),
			ErrorLog:     httpLog,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start listens and serves until Shutdown; it returns http.ErrServerClosed
// after a graceful stop.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIp, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	return s.httpServer.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping api server")
	return s.httpServer.Shutdown(ctx)
}
