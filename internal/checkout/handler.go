package checkout

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/httpapi"
)

type Handler struct {
	engine *Engine
	logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

type failureResponse struct {
	LineID    int64  `json:"line_id"`
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type rejectionResponse struct {
	Error     string            `json:"error"`
	Retryable bool              `json:"retryable"`
	Failures  []failureResponse `json:"failures"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Checkout(r.Context(), httpapi.UserID(r), httpapi.IdempotencyKey(r))
	if err == nil {
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		httpapi.WriteJSON(w, h.logger, status, result)
		return
	}

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		resp := rejectionResponse{
			Error:     "checkout rejected",
			Retryable: rejected.Retryable(),
			Failures:  make([]failureResponse, 0, len(rejected.Failures)),
		}
		for _, f := range rejected.Failures {
			resp.Failures = append(resp.Failures, failureResponse{
				LineID:    f.LineID,
				ProductID: f.ProductID,
				Reason:    f.ReasonCode(),
				Requested: f.Requested,
				Available: f.Available,
			})
		}
		status := http.StatusUnprocessableEntity
		if resp.Retryable {
			status = http.StatusServiceUnavailable
		}
		httpapi.WriteJSON(w, h.logger, status, resp)
		return
	}

	httpapi.WriteErr(w, h.logger, err)
}
