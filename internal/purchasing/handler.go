package purchasing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	stats    *StatsService
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, stats *StatsService) *Handler {
	return &Handler{logger: logger, service: service, stats: stats, validate: validator.New()}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/stats", h.statsHandler)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/submit", h.submit)
	r.Put("/{id}/status", h.decide)
	r.Post("/{id}/payments", h.addPayment)
	r.Post("/{id}/restore", h.restore)
	r.Delete("/{id}/permanent", h.permanentDelete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendorID, _ := strconv.ParseInt(q.Get("vendorId"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	filters := ListFilters{
		Status:        Status(q.Get("status")),
		PaymentStatus: PaymentStatus(q.Get("paymentStatus")),
		VendorID:      vendorID,
		Search:        q.Get("search"),
		Deleted:       q.Get("deleted") == "true",
		SortBy:        q.Get("sortBy"),
		SortDir:       q.Get("sortDir"),
		Page:          page,
		PerPage:       perPage,
	}
	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.RespondError(w, fields)
		return
	}
	po, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.RespondError(w, fields)
		return
	}
	po, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update purchase order", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	po, err := h.service.Submit(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	var req DecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.RespondError(w, fields)
		return
	}
	po, err := h.service.Decide(r.Context(), id, req)
	if err != nil {
		h.logger.Error("decide purchase order", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	var req AddPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		httpx.RespondError(w, fields)
		return
	}
	po, err := h.service.AddPayment(r.Context(), id, req)
	if err != nil {
		h.logger.Error("add payment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	if err := h.service.SoftDelete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	po, err := h.service.Restore(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) permanentDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	if err := h.service.PermanentDelete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.invalidateStats(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) statsHandler(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "stats not configured")
		return
	}
	stats, err := h.stats.Overview(r.Context())
	if err != nil {
		h.logger.Error("purchase order stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// invalidateStats drops the cached overview after any mutation so the
// dashboard never serves a full TTL of stale counts.
func (h *Handler) invalidateStats(r *http.Request) {
	if h.stats != nil {
		h.stats.Invalidate(r.Context())
	}
}

func (h *Handler) validateStruct(req any) httpx.FieldErrors {
	if err := h.validate.Struct(req); err != nil {
		fields := httpx.FieldErrors{}
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fields[fieldErr.Field()] = "failed " + fieldErr.Tag() + " validation"
		}
		return fields
	}
	return nil
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
