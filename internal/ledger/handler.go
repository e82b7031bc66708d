package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/air-waffle/finance/internal/platform/httpx"
	"github.com/air-waffle/finance/internal/shared"
)

// DriftEnqueuer schedules a background balance drift scan.
type DriftEnqueuer interface {
	EnqueueDriftScan(ctx context.Context, heal bool) error
}

// Handler wires HTTP interactions for the timeline.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	drift    DriftEnqueuer
	validate *validator.Validate
}

// NewHandler constructs the ledger handler. drift may be nil when no job
// queue is configured.
func NewHandler(logger *slog.Logger, service *Service, drift DriftEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, drift: drift, validate: validator.New()}
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf(firstFieldError(err), "invalid value"))
		return
	}
	event, err := h.service.RecordEvent(r.Context(), shared.ActorFromContext(r.Context()), req)
	if err != nil {
		if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("record event failed", "error", err)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, event)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var patch UpdateEventRequest
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(patch); err != nil {
		httpx.RespondError(w, shared.Validationf(firstFieldError(err), "invalid value"))
		return
	}
	event, err := h.service.UpdateEvent(r.Context(), shared.ActorFromContext(r.Context()), id, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, event)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteEvent(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	events, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("query timeline failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	if events == nil {
		events = []EventView{}
	}
	httpx.JSON(w, http.StatusOK, events)
}

func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.RecomputeBalances(r.Context())
	if err != nil {
		h.logger.Error("recompute balances failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports)
}

// DriftScan enqueues a background drift scan; the worker picks it up from the
// queue. heal=1 rewrites drifted balances instead of only reporting them.
func (h *Handler) DriftScan(w http.ResponseWriter, r *http.Request) {
	if !shared.ActorFromContext(r.Context()).Privileged() {
		httpx.RespondError(w, &shared.AuthorizationError{Rule: "only owner or manager may trigger drift scans"})
		return
	}
	if h.drift == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue not configured")
		return
	}
	heal := r.URL.Query().Get("heal") != ""
	if err := h.drift.EnqueueDriftScan(r.Context(), heal); err != nil {
		h.logger.Error("enqueue drift scan failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"enqueued": true, "heal": heal})
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	var filter Filter
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Filter{}, shared.Validationf("start_date", "must be YYYY-MM-DD")
		}
		filter.DateFrom = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Filter{}, shared.Validationf("end_date", "must be YYYY-MM-DD")
		}
		filter.DateTo = &t
	}
	if v := q.Get("type"); v != "" {
		eventType := EventType(v)
		switch eventType {
		case TypeExpense, TypeIncome, TypeTransfer:
			filter.Type = &eventType
		default:
			return Filter{}, shared.Validationf("type", "must be expense, income or transfer")
		}
	}
	for name, target := range map[string]**int64{
		"category_id": &filter.CategoryID,
		"account_id":  &filter.AccountID,
		"location_id": &filter.LocationID,
	} {
		if v := q.Get(name); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Filter{}, shared.Validationf(name, "must be an integer")
			}
			*target = &id
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return Filter{}, shared.Validationf("limit", "must be an integer")
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return Filter{}, shared.Validationf("offset", "must be an integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func firstFieldError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldErrs[0].Field()
	}
	return "body"
}
