package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"docspace/entity"
	"docspace/internal/http-server/middleware/authenticate"
	"docspace/internal/invites"
	"docspace/lib/api/response"
	"docspace/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	GenerateInvite(ctx context.Context, user *entity.User, req *entity.InviteRequest) (entity.InviteCode, error)
	Invites() []entity.InviteCode
	ActiveInvites() []entity.InviteCode
	InviteStats() entity.InviteStats
	DeactivateInvite(ctx context.Context, id string) error
	DeleteInvite(ctx context.Context, id string) error
}

func Generate(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.invite"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user := authenticate.User(r.Context())
		if user == nil {
			log.Error("user not found")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("User not found"))
			return
		}

		var req entity.InviteRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		code, err := handler.GenerateInvite(r.Context(), user, &req)
		if err != nil {
			log.Error("generate invite code", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(code))
	}
}

func List(_ *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.Invites()))
	}
}

func ListActive(_ *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.ActiveInvites()))
	}
}

func Stats(_ *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(handler.InviteStats()))
	}
}

func Deactivate(logger *slog.Logger, handler Core) http.HandlerFunc {
	return byId(logger, "deactivate", handler.DeactivateInvite)
}

func Delete(logger *slog.Logger, handler Core) http.HandlerFunc {
	return byId(logger, "delete", handler.DeleteInvite)
}

func byId(logger *slog.Logger, action string, fn func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := logger.With(
			sl.Module("http.handlers.invite"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("id", id),
		)

		err := fn(r.Context(), id)
		if errors.Is(err, invites.ErrNotFound) {
			log.Warn(action+": invite code not found")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Invite code not found"))
			return
		}
		if err != nil {
			log.Error(action, sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok(map[string]string{"id": id}))
	}
}
