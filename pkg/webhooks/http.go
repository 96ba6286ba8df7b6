package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/models"
	"gorm.io/datatypes"
)

type HTTPHandler struct {
	repo       *Repository
	dispatcher *Dispatcher
}

func NewHTTPHandler(repo *Repository, dispatcher *Dispatcher) *HTTPHandler {
	return &HTTPHandler{repo: repo, dispatcher: dispatcher}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/webhooks", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/webhooks", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/webhooks/{id}", h.handleUpdate).Methods(http.MethodPut)
	router.HandleFunc("/webhooks/{id}", h.handleDelete).Methods(http.MethodDelete)
	router.HandleFunc("/webhooks/{id}/test", h.handleTest).Methods(http.MethodPost)
}

type writeRequest struct {
	URL       string                 `json:"url"`
	EventType string                 `json:"event_type"`
	Enabled   *bool                  `json:"enabled"`
	Headers   map[string]interface{} `json:"headers"`
}

func (r writeRequest) validate() error {
	url := strings.TrimSpace(r.URL)
	if url == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.New("url must be http or https")
	}
	if !models.IsValidEventType(r.EventType) {
		return errors.New("event_type must be one of: " + strings.Join(models.EventTypes(), ", "))
	}
	return nil
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.List(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to list webhooks")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	wh := &Webhook{
		ID:        uuid.New().String(),
		URL:       strings.TrimSpace(req.URL),
		EventType: req.EventType,
		Enabled:   enabled,
		Headers:   datatypes.JSONMap(req.Headers),
	}
	if err := h.repo.Create(r.Context(), wh); err != nil {
		logger.Log.WithError(err).Error("failed to create webhook")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, wh)
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	wh, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "webhook not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch webhook")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if url := strings.TrimSpace(req.URL); url != "" {
		wh.URL = url
	}
	if req.EventType != "" {
		if !models.IsValidEventType(req.EventType) {
			http.Error(w, "invalid event_type", http.StatusBadRequest)
			return
		}
		wh.EventType = req.EventType
	}
	if req.Enabled != nil {
		wh.Enabled = *req.Enabled
	}
	if req.Headers != nil {
		wh.Headers = datatypes.JSONMap(req.Headers)
	}

	if err := h.repo.Save(r.Context(), wh); err != nil {
		logger.Log.WithError(err).Error("failed to update webhook")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, wh)
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "webhook not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to delete webhook")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleTest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// The delivery runs on its own timeout; the request context would cut
	// it short.
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()

	attempt, err := h.dispatcher.Test(ctx, id, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "webhook not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to test webhook")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, attempt)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
