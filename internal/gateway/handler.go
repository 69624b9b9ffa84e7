package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Handler fronts the cart service and the read side of the catalog.
type Handler struct {
	cartProxy    *ServiceProxy
	catalogProxy *ServiceProxy
	logger       *slog.Logger
}

func NewHandler(cartProxy, catalogProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		cartProxy:    cartProxy,
		catalogProxy: catalogProxy,
		logger:       logger,
	}
}

// HandleShop forwards cart, checkout and order requests unchanged.
func (h *Handler) HandleShop(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, h.cartProxy, r.URL.Path)
}

// HandleCatalog maps /catalog/products... onto the catalog service's
// /products... routes.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, h.catalogProxy, strings.TrimPrefix(r.URL.Path, "/catalog"))
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, upstream *ServiceProxy, path string) {
	resp, err := upstream.Forward(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "method", r.Method, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range []string{"Content-Type", "Retry-After"} {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
