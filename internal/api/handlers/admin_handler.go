package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/journal"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/pipeline"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// AdminHandler serves the authenticated inspection and trigger surface.
type AdminHandler struct {
	orch    *pipeline.Orchestrator
	journal *journal.Journal
	log     *zap.SugaredLogger
}

func NewAdminHandler(orch *pipeline.Orchestrator, jnl *journal.Journal, log *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{orch: orch, journal: jnl, log: log}
}

// Status reports queue depth, guard occupancy, remaining daily budget, and
// recent per-file outcomes when the journal is configured.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	recent, err := h.journal.RecentOutcomes(r.Context(), 20)
	if err != nil {
		h.log.Warnw("journal read failed", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pipeline": h.orch.Status(),
		"recent":   recent,
	})
}

type rescanRequest struct {
	Backend string `json:"backend"`
	Force   bool   `json:"force"`
}

// Rescan enqueues a full reconciliation of the watched folders.
func (h *AdminHandler) Rescan(w http.ResponseWriter, r *http.Request) {
	var req rescanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	accepted := h.orch.Enqueue(models.Trigger{
		Kind:    models.TriggerRescan,
		Backend: models.Backend(req.Backend),
		Force:   req.Force,
	})
	if !accepted {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"queued": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

type processRequest struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
	Force   bool   `json:"force"`
}

// ProcessFile enqueues a single file by backend path, bypassing folder
// listing but not the dedup, budget, or validation gates.
func (h *AdminHandler) ProcessFile(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Backend == "" || req.Path == "" {
		http.Error(w, "backend and path are required", http.StatusBadRequest)
		return
	}

	accepted := h.orch.Enqueue(models.Trigger{
		Kind:    models.TriggerManual,
		Backend: models.Backend(req.Backend),
		Path:    req.Path,
		Force:   req.Force,
	})
	if !accepted {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"queued": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
