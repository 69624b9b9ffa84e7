package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// Products is the storage the catalog handler serves from.
type Products interface {
	ListAll(ctx context.Context) ([]domain.ProductSnapshot, error)
	Get(ctx context.Context, id string) (*domain.ProductSnapshot, error)
	Decrement(ctx context.Context, id string, amount int) (*domain.ProductSnapshot, error)
	Increment(ctx context.Context, id string, amount int) (*domain.ProductSnapshot, error)
}

type Handler struct {
	repo   Products
	logger *slog.Logger
}

func NewHandler(repo Products, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("products listed", "count", len(products))
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, err, "failed to get product", id)
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type amountRequest struct {
	Amount int `json:"amount"`
}

func (h *Handler) HandleDecrement(w http.ResponseWriter, r *http.Request) {
	id, amount, ok := h.parseAmount(w, r)
	if !ok {
		return
	}

	product, err := h.repo.Decrement(r.Context(), id, amount)
	if err != nil {
		h.writeRepoError(w, err, "failed to decrement stock", id)
		return
	}

	h.logger.Info("stock decremented", "product_id", id, "amount", amount, "stock", product.StockAvailable)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	id, amount, ok := h.parseAmount(w, r)
	if !ok {
		return
	}

	product, err := h.repo.Increment(r.Context(), id, amount)
	if err != nil {
		h.writeRepoError(w, err, "failed to increment stock", id)
		return
	}

	h.logger.Info("stock incremented", "product_id", id, "amount", amount, "stock", product.StockAvailable)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) parseAmount(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return "", 0, false
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return "", 0, false
	}
	if req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "amount must be positive")
		return "", 0, false
	}

	return id, req.Amount, true
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, msg, id string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, domain.ErrInsufficientStock):
		h.writeError(w, http.StatusConflict, "insufficient stock")
	default:
		h.logger.Error(msg, "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
