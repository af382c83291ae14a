package register

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"docspace/entity"
	"docspace/lib/api/response"
	"docspace/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	ValidateInvite(code string) entity.InviteValidation
	RedeemInvite(ctx context.Context, req *entity.RedeemRequest) entity.InviteValidation
}

// result is the public view of a validation; usage details stay admin-only.
type result struct {
	Valid     bool               `json:"valid"`
	Error     entity.InviteError `json:"error,omitempty"`
	Message   string             `json:"message,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

func publicResult(v entity.InviteValidation) result {
	res := result{Valid: v.Valid, Error: v.Error, Message: v.Error.Message()}
	if v.InviteCode != nil {
		res.ExpiresAt = v.InviteCode.ExpiresAt
	}
	return res
}

// Validate checks a code without using it. An unusable code is still a
// successful request; the reason is in the result.
func Validate(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.register"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.CodeRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok(publicResult(handler.ValidateInvite(req.Code))))
	}
}

// Redeem consumes one use of a code. A rejected code answers 409 with the
// reason in error_code.
func Redeem(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.register"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.RedeemRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		redeemed := handler.RedeemInvite(r.Context(), &req)
		if !redeemed.Valid {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.ErrorWithCode(string(redeemed.Error), redeemed.Error.Message()))
			return
		}

		render.JSON(w, r, response.Ok(publicResult(redeemed)))
	}
}
