// Package handlers exposes the journal over a local HTTP API for companion
// tooling. The server binds to loopback only; there is no remote access story.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quill/pkg/backup"
	"quill/pkg/config"
	"quill/pkg/crypto"
	"quill/pkg/errors"
	"quill/pkg/models"
	"quill/pkg/recall"
	"quill/pkg/storage"
)

// APIHandlers contains API endpoint handlers
type APIHandlers struct {
	store  *storage.Store
	engine *recall.Engine
	config *config.Config
	cipher *crypto.Cipher
}

// NewAPIHandlers creates a new API handlers instance. The cipher may be nil
// when encryption is disabled; encrypted entries are then served as-is.
func NewAPIHandlers(store *storage.Store, engine *recall.Engine, cfg *config.Config, cipher *crypto.Cipher) *APIHandlers {
	return &APIHandlers{
		store:  store,
		engine: engine,
		config: cfg,
		cipher: cipher,
	}
}

// Router assembles the API routes.
func (h *APIHandlers) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/entries", h.GetEntriesHandler)
		r.Post("/entries", h.CreateEntryHandler)
		r.Get("/search", h.SearchHandler)
		r.Get("/recaps", h.RecapsHandler)
		r.Post("/export", h.ExportHandler)
		r.Post("/sync", h.SyncHandler)
	})
	return r
}

// writeError maps structured application errors onto HTTP statuses and emits
// the user-facing message, never the internal one.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := http.StatusInternalServerError
	switch appErr.Type {
	case errors.ErrTypeAuth:
		status = http.StatusUnauthorized
	case errors.ErrTypeConfig, errors.ErrTypeExport:
		status = http.StatusBadRequest
	case errors.ErrTypeSync:
		if appErr.Code == "SYNC_CONFLICT" {
			status = http.StatusConflict
		} else if appErr.Code == "SYNC_MISCONFIGURED" {
			status = http.StatusBadRequest
		}
	}
	appErr.Log()
	http.Error(w, appErr.GetUserMessage(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// GetEntriesHandler returns all entries as JSON. Encrypted entries that cannot
// be decrypted are included as ciphertext unless include_encrypted=false.
func (h *APIHandlers) GetEntriesHandler(w http.ResponseWriter, r *http.Request) {
	includeEncrypted := true
	if v := r.URL.Query().Get("include_encrypted"); v != "" {
		includeEncrypted = v != "false" && v != "0"
	}
	entries := h.store.Load(h.cipher, includeEncrypted)
	writeJSON(w, http.StatusOK, entries)
}

// CreateEntryHandler appends a new entry
func (h *APIHandlers) CreateEntryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content   string   `json:"content"`
		EntryType string   `json:"entry_type"`
		Tags      []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Missing content", http.StatusBadRequest)
		return
	}
	if req.EntryType == "" {
		req.EntryType = string(models.EntryTypeDiary)
	}

	entry, err := h.store.Add(req.Content, models.EntryType(req.EntryType), storage.AddOptions{
		Tags:   req.Tags,
		Cipher: h.cipher,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *APIHandlers) searchOptions(r *http.Request) recall.Options {
	opts := recall.Options{
		Threshold:      h.config.Search.FuzzyThreshold,
		DateBonus:      h.config.Search.DateBonus,
		FuzzyWeight:    h.config.Search.FuzzyWeight,
		SemanticWeight: h.config.Search.SemanticWeight,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			opts.Limit = limit
		}
	}
	return opts
}

// SearchHandler searches entries by query. The mode parameter selects fuzzy,
// semantic, or hybrid (the default).
func (h *APIHandlers) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing query parameter", http.StatusBadRequest)
		return
	}

	entries := h.store.Load(h.cipher, false)
	opts := h.searchOptions(r)

	var hits []recall.Hit
	var err error
	switch r.URL.Query().Get("mode") {
	case "fuzzy":
		hits = recall.SearchEntries(query, entries, opts)
	case "semantic":
		hits, err = h.engine.Search(query, entries, opts)
	default:
		hits, err = h.engine.Hybrid(query, entries, opts)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if hits == nil {
		hits = []recall.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

// RecapsHandler returns weekly or monthly summaries of recent entries.
func (h *APIHandlers) RecapsHandler(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = recall.PeriodWeek
	}

	entries := h.store.Load(h.cipher, false)
	recaps := recall.RecentRecaps(entries, period,
		h.config.Search.RecapLookbackDays,
		recall.NewFallbackSummarizer(h.config.Search.RecapSentences))
	if recaps == nil {
		recaps = []recall.Recap{}
	}
	writeJSON(w, http.StatusOK, recaps)
}

// ExportHandler renders the journal to a file on the local machine.
func (h *APIHandlers) ExportHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination string `json:"destination"`
		Format      string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Destination == "" {
		http.Error(w, "Missing destination", http.StatusBadRequest)
		return
	}
	if req.Format == "" {
		req.Format = storage.FormatMarkdown
	}

	path, err := h.store.Export(req.Destination, req.Format, h.cipher)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"path":    path,
	})
}

// SyncHandler packages the journal and ships it to the configured backend.
func (h *APIHandlers) SyncHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Backend        string `json:"backend"`
		AllowOverwrite bool   `json:"allow_overwrite"`
		DryRun         bool   `json:"dry_run"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	result, err := backup.Perform(r.Context(), h.config, h.store, h.cipher, backup.Options{
		Backend:        req.Backend,
		AllowOverwrite: req.AllowOverwrite,
		DryRun:         req.DryRun,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
