package cart

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/cartflow/internal/httpapi"
)

type Handler struct {
	service   *Service
	projector *Projector
	logger    *slog.Logger
}

func NewHandler(service *Service, projector *Projector, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		projector: projector,
		logger:    logger,
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := h.service.AddToCart(r.Context(), httpapi.UserID(r), req.ProductID, req.Quantity)
	if err != nil {
		httpapi.WriteErr(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, h.logger, http.StatusOK, line)
}

func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.projector.Project(r.Context(), httpapi.UserID(r))
	if err != nil {
		h.logger.Error("failed to load cart", "error", err)
		httpapi.WriteErr(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, h.logger, http.StatusOK, view)
}

func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CartCount(r.Context(), httpapi.UserID(r))
	if err != nil {
		httpapi.WriteErr(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, h.logger, http.StatusOK, map[string]int{"count": count})
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	line, err := h.service.UpdateQuantity(r.Context(), httpapi.UserID(r), lineID, req.Quantity)
	if err != nil {
		httpapi.WriteErr(w, h.logger, err)
		return
	}

	if line == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpapi.WriteJSON(w, h.logger, http.StatusOK, line)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveFromCart(r.Context(), httpapi.UserID(r), lineID); err != nil {
		httpapi.WriteErr(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), httpapi.UserID(r)); err != nil {
		httpapi.WriteErr(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lineID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpapi.WriteError(w, h.logger, http.StatusBadRequest, "invalid line id")
		return 0, false
	}
	return id, true
}
