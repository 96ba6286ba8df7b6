package products

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/products", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/products", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/products", h.handleDeleteAll).Methods(http.MethodDelete)
	router.HandleFunc("/products/{id}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/products/{id}", h.handleUpdate).Methods(http.MethodPut)
	router.HandleFunc("/products/{id}", h.handleDelete).Methods(http.MethodDelete)
}

type writeRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

func (r writeRequest) toInput() WriteInput {
	return WriteInput{
		SKU:         r.SKU,
		Name:        r.Name,
		Description: r.Description,
		Active:      r.Active,
	}
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := ListFilters{
		SKU:         q.Get("sku"),
		Name:        q.Get("name"),
		Description: q.Get("description"),
	}
	if raw := q.Get("active"); raw != "" {
		active := raw == "true" || raw == "1" || raw == "yes"
		filters.Active = &active
	}

	page := intQuery(q.Get("page"), 1)
	pageSize := intQuery(q.Get("page_size"), 20)

	items, total, err := h.service.List(r.Context(), filters, page, pageSize)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list products")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":   items,
		"count":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	product, created, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to create product")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, product)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch product")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	product, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "product not found", http.StatusNotFound)
		case errors.Is(err, ErrSKUConflict):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Log.WithError(err).Error("failed to update product")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to delete product")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.DeleteAll(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to bulk delete products")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": count})
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
