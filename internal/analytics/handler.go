package analytics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/air-waffle/finance/internal/platform/httpx"
	"github.com/air-waffle/finance/internal/shared"
)

// Handler wires HTTP interactions for aggregation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the analytics handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rg, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dashboard, err := h.service.GetDashboard(r.Context(), rg)
	if err != nil {
		h.logger.Error("dashboard failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) Pivot(w http.ResponseWriter, r *http.Request) {
	rg, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	granularity, err := parseGranularity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		depth, err = strconv.Atoi(v)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("depth", "must be an integer"))
			return
		}
	}
	grouping := PivotGrouping(r.URL.Query().Get("rows"))
	periods, err := h.service.GetPivot(r.Context(), rg, granularity, depth, grouping)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

func (h *Handler) ByCategory(w http.ResponseWriter, r *http.Request) {
	rg, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	shares, err := h.service.GetByCategory(r.Context(), rg, r.URL.Query().Get("type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shares)
}

func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	rg, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	granularity, err := parseGranularity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	points, err := h.service.GetTrend(r.Context(), rg, granularity)
	if err != nil {
		h.logger.Error("trend failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) CellDetails(w http.ResponseWriter, r *http.Request) {
	rg, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	granularity, err := parseGranularity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		httpx.RespondError(w, shared.Validationf("period", "required"))
		return
	}
	categoryID, err := strconv.ParseInt(q.Get("category_id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("category_id", "must be an integer"))
		return
	}
	details, err := h.service.GetCellDetails(r.Context(), rg, period, granularity, q.Get("type"), categoryID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func parseRange(r *http.Request) (Range, error) {
	q := r.URL.Query()
	from, err := time.Parse("2006-01-02", q.Get("start_date"))
	if err != nil {
		return Range{}, shared.Validationf("start_date", "must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", q.Get("end_date"))
	if err != nil {
		return Range{}, shared.Validationf("end_date", "must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return Range{}, shared.Validationf("end_date", "must not precede start_date")
	}
	rg := Range{From: from, To: to}
	if v := q.Get("location_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Range{}, shared.Validationf("location_id", "must be an integer")
		}
		rg.LocationID = &id
	}
	return rg, nil
}

func parseGranularity(r *http.Request) (Granularity, error) {
	switch v := r.URL.Query().Get("granularity"); v {
	case "", string(ByDay):
		return ByDay, nil
	case string(ByMonth):
		return ByMonth, nil
	default:
		return "", shared.Validationf("granularity", "must be day or month")
	}
}
