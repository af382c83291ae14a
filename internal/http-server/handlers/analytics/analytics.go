package analytics

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"docspace/entity"
	tracker "docspace/internal/analytics"
	"docspace/lib/api/request"
	"docspace/lib/api/response"
	"docspace/lib/clock"
	"docspace/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

const (
	maxDays  = 365
	maxLimit = 100
)

type Core interface {
	Now() time.Time
	AnalyticsSummary(days int) entity.AnalyticsSummary
	PopularPages(limit, days int) []entity.PopularPage
	RecentActivity(limit int) []entity.ActivityItem
	DailyStats(days int) []entity.DailyPoint
	DayStats(date string) (entity.DailyStat, error)
	TopCountries(limit, days int) []entity.CountryCount
	AnalyticsReport(start, end time.Time) (entity.Report, error)
	PurgeAnalytics(daysToKeep int) entity.PurgeResult
}

func Summary(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, ok := intParam(w, r, logger, "days", 0, maxDays)
		if !ok {
			return
		}
		render.JSON(w, r, response.Ok(handler.AnalyticsSummary(days)))
	}
}

func Popular(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intParam(w, r, logger, "limit", tracker.DefaultLimit, maxLimit)
		if !ok {
			return
		}
		days, ok := intParam(w, r, logger, "days", 0, maxDays)
		if !ok {
			return
		}
		render.JSON(w, r, response.Ok(handler.PopularPages(limit, days)))
	}
}

func Recent(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intParam(w, r, logger, "limit", tracker.DefaultLimit, maxLimit)
		if !ok {
			return
		}
		render.JSON(w, r, response.Ok(handler.RecentActivity(limit)))
	}
}

func Daily(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, ok := intParam(w, r, logger, "days", 0, maxDays)
		if !ok {
			return
		}
		render.JSON(w, r, response.Ok(handler.DailyStats(days)))
	}
}

func Day(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")
		stat, err := handler.DayStats(date)
		if err != nil {
			badRequest(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Ok(entity.DayBreakdown{Date: date, DailyStat: stat}))
	}
}

func Countries(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intParam(w, r, logger, "limit", tracker.DefaultLimit, maxLimit)
		if !ok {
			return
		}
		days, ok := intParam(w, r, logger, "days", 0, maxDays)
		if !ok {
			return
		}
		render.JSON(w, r, response.Ok(handler.TopCountries(limit, days)))
	}
}

// Report expects start and end as YYYY-MM-DD; end defaults to today and
// start to 30 days before end.
func Report(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		end := clock.StartOfDay(handler.Now())
		if value := r.URL.Query().Get("end"); value != "" {
			t, err := clock.ParseDate(value)
			if err != nil {
				badRequest(w, r, logger, err)
				return
			}
			end = t
		}
		start := end.AddDate(0, 0, -30)
		if value := r.URL.Query().Get("start"); value != "" {
			t, err := clock.ParseDate(value)
			if err != nil {
				badRequest(w, r, logger, err)
				return
			}
			start = t
		}

		report, err := handler.AnalyticsReport(start, end)
		if errors.Is(err, tracker.ErrInvalidRange) {
			badRequest(w, r, logger, err)
			return
		}
		if err != nil {
			logger.With(sl.Module("http.handlers.analytics")).Error("report", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		render.JSON(w, r, response.Ok(report))
	}
}

// Purge removes raw events older than ?days= days; without it the configured
// retention applies.
func Purge(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, ok := intParam(w, r, logger, "days", 0, 0)
		if !ok {
			return
		}
		result := handler.PurgeAnalytics(days)
		logger.With(
			sl.Module("http.handlers.analytics"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Int("days", days),
		).Info("analytics purge requested")
		render.JSON(w, r, response.Ok(result))
	}
}

func intParam(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string, def, upper int) (int, bool) {
	n, err := request.IntParam(r, name, def, upper)
	if err != nil {
		badRequest(w, r, logger, err)
		return 0, false
	}
	return n, true
}

func badRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.With(
		sl.Module("http.handlers.analytics"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	).Warn("invalid request", sl.Err(err))
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
}
