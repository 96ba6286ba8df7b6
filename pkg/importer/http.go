package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
)

type HTTPHandler struct {
	service   *Service
	maxUpload int64
	keepalive time.Duration
}

func NewHTTPHandler(service *Service, maxUpload int64, keepalive time.Duration) *HTTPHandler {
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	return &HTTPHandler{service: service, maxUpload: maxUpload, keepalive: keepalive}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/imports", h.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/imports", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/imports/{id}", h.handleProgress).Methods(http.MethodGet)
	router.HandleFunc("/imports/{id}/stream", h.handleStream).Methods(http.MethodGet)
	router.HandleFunc("/imports/{id}/cancel", h.handleCancel).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	part, fileName, err := filePart(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	defer part.Close()

	job, err := h.service.CreateJob(r.Context(), fileName, part)
	if err != nil {
		if IsInvalidInput(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		logger.Log.WithError(err).Error("failed to accept upload")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, job.Snapshot())
}

// filePart streams to the first multipart part named "file" without
// buffering the upload in memory.
func filePart(r *http.Request) (io.ReadCloser, string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", errors.New("expected a multipart file upload")
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "", errors.New("no file provided")
		}
		if err != nil {
			return nil, "", fmt.Errorf("reading upload: %w", err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		name := part.FileName()
		if name == "" {
			name = "upload.csv"
		}
		if !strings.HasSuffix(strings.ToLower(name), ".csv") {
			part.Close()
			return nil, "", errors.New("file must be a CSV file")
		}
		return part, name, nil
	}
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	snaps, err := h.service.List(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list import jobs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (h *HTTPHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, err := h.service.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch import job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleStream is the push channel: one SSE message per snapshot change,
// closed after the terminal event.
func (h *HTTPHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the initial pull: a terminal publish landing between
	// the two is then delivered on the channel instead of being missed, and
	// the lastProcessed guard dedupes anything seen twice.
	sub, cancel, err := h.service.Subscribe(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to subscribe to progress")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer cancel()

	snap, err := h.service.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch import job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastProcessed := -1
	writeEvent := func(s Snapshot) bool {
		// Guard against a stale broker message racing the initial pull.
		if s.ProcessedRecords < lastProcessed {
			return false
		}
		lastProcessed = s.ProcessedRecords
		payload, err := json.Marshal(s)
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		return s.Terminal()
	}

	if writeEvent(snap) {
		return
	}

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case s, ok := <-sub:
			if !ok {
				return
			}
			if writeEvent(s) {
				return
			}
		}
	}
}

func (h *HTTPHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to request cancellation")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
