package track

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"docspace/entity"
	"docspace/internal/analytics"
	"docspace/internal/http-server/middleware/authenticate"
	"docspace/lib/api/response"
	"docspace/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// countryHeaders are set by the CDN or reverse proxy in front of the service
var countryHeaders = []string{"CF-IPCountry", "X-Country-Code"}

type Core interface {
	InitSession(req *entity.SessionRequest) entity.UserSession
	TrackPageView(sessionId string, req *entity.PageViewRequest) (entity.PageView, error)
	TrackPageExit(sessionId string) (bool, error)
	TrackSearch(sessionId string, req *entity.SearchRequest) (entity.SearchQuery, error)
	EndSession(sessionId string) (bool, error)
}

type closed struct {
	SessionId string `json:"session_id"`
	Closed    bool   `json:"closed"`
}

func StartSession(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.track"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.SessionRequest
		if err := bindSession(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		if req.IpAddress == "" {
			req.IpAddress = clientIp(r)
		}
		if req.Country == "" {
			for _, h := range countryHeaders {
				if value := r.Header.Get(h); value != "" {
					req.Country = value
					break
				}
			}
		}

		session := handler.InitSession(&req)
		log.With(slog.String("session_id", session.Id)).Debug("session started")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(session))
	}
}

// bindSession accepts an empty body as a request with all fields omitted.
func bindSession(r *http.Request, req *entity.SessionRequest) error {
	if r.ContentLength == 0 {
		return req.Bind(r)
	}
	err := render.Bind(r, req)
	if errors.Is(err, io.EOF) {
		return req.Bind(r)
	}
	return err
}

func PageView(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionId := chi.URLParam(r, "id")
		log := logger.With(
			sl.Module("http.handlers.track"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", sessionId),
		)

		var req entity.PageViewRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		view, err := handler.TrackPageView(sessionId, &req)
		if err != nil {
			trackFailed(w, r, log, err)
			return
		}
		render.JSON(w, r, response.Ok(view))
	}
}

func PageExit(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionId := chi.URLParam(r, "id")
		log := logger.With(
			sl.Module("http.handlers.track"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", sessionId),
		)

		ok, err := handler.TrackPageExit(sessionId)
		if err != nil {
			trackFailed(w, r, log, err)
			return
		}
		render.JSON(w, r, response.Ok(closed{SessionId: sessionId, Closed: ok}))
	}
}

func Search(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionId := chi.URLParam(r, "id")
		log := logger.With(
			sl.Module("http.handlers.track"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", sessionId),
		)

		var req entity.SearchRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		query, err := handler.TrackSearch(sessionId, &req)
		if err != nil {
			trackFailed(w, r, log, err)
			return
		}
		render.JSON(w, r, response.Ok(query))
	}
}

func EndSession(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionId := chi.URLParam(r, "id")
		log := logger.With(
			sl.Module("http.handlers.track"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", sessionId),
		)

		ok, err := handler.EndSession(sessionId)
		if err != nil {
			trackFailed(w, r, log, err)
			return
		}
		render.JSON(w, r, response.Ok(closed{SessionId: sessionId, Closed: ok}))
	}
}

func trackFailed(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, analytics.ErrSessionNotFound):
		log.Debug("unknown session")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("Session not found"))
	case errors.Is(err, analytics.ErrSessionEnded):
		log.Debug("session already ended")
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("Session already ended"))
	default:
		log.Error("tracking failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
	}
}

func clientIp(r *http.Request) string {
	addr := authenticate.RemoteAddr(r)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}
