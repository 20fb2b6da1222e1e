package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/pipeline"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// maxWebhookBody bounds how much of a notification we read; provider
// payloads are small and anything larger is abuse.
const maxWebhookBody = 64 << 10

// WebhookHandler receives storage-provider notifications, collapses
// duplicate deliveries, and converts the rest into pipeline triggers. The
// HTTP response always returns immediately; processing happens in the
// background and callers must not infer outcomes from the status code.
type WebhookHandler struct {
	orch      *pipeline.Orchestrator
	notifs    *pipeline.NotificationGuard
	appSecret string
	log       *zap.SugaredLogger
}

func NewWebhookHandler(orch *pipeline.Orchestrator, notifs *pipeline.NotificationGuard, dropboxAppSecret string, log *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{orch: orch, notifs: notifs, appSecret: dropboxAppSecret, log: log}
}

// DropboxVerify answers Dropbox's endpoint verification: echo the challenge
// back as plain text.
func (h *WebhookHandler) DropboxVerify(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	fmt.Fprint(w, challenge)
}

// DropboxNotify handles change notifications. The signature header is an
// HMAC-SHA256 of the raw body under the app secret; a bad signature is
// rejected before any dedup or queueing.
func (h *WebhookHandler) DropboxNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if !h.validSignature(r.Header.Get("X-Dropbox-Signature"), body) {
		h.log.Warnw("dropbox webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	if h.notifs.Seen(body) {
		h.log.Debugw("duplicate dropbox notification dropped")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.orch.Enqueue(models.Trigger{
		Kind:    models.TriggerWebhook,
		Backend: models.BackendDropbox,
	})
	w.WriteHeader(http.StatusOK)
}

// DriveNotify handles Google Drive push notifications. Drive sends change
// metadata in headers with an empty body, so the dedup digest is built from
// the channel and message identifiers.
func (h *WebhookHandler) DriveNotify(w http.ResponseWriter, r *http.Request) {
	state := r.Header.Get("X-Goog-Resource-State")
	if state == "sync" {
		// Channel registration handshake, not a change.
		w.WriteHeader(http.StatusOK)
		return
	}

	digest := []byte(fmt.Sprintf("%s|%s|%s",
		r.Header.Get("X-Goog-Channel-ID"),
		r.Header.Get("X-Goog-Message-Number"),
		state,
	))
	if h.notifs.Seen(digest) {
		h.log.Debugw("duplicate drive notification dropped")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.orch.Enqueue(models.Trigger{
		Kind:    models.TriggerWebhook,
		Backend: models.BackendGDrive,
	})
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) validSignature(signature string, body []byte) bool {
	if h.appSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
