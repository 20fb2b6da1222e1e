package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/pipeline"
)

const testSecret = "app-secret"

func newTestWebhookHandler() (*WebhookHandler, *pipeline.Orchestrator) {
	log := zap.NewNop().Sugar()
	orch := pipeline.NewOrchestrator(nil, nil, nil,
		pipeline.NewGuard(time.Minute, 100),
		pipeline.NewDailyBudget(10),
		pipeline.NewValidator(pipeline.ValidationConfig{}),
		nil, pipeline.Options{}, log)
	notifs := pipeline.NewNotificationGuard(time.Minute, 100)
	return NewWebhookHandler(orch, notifs, testSecret, log), orch
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestDropboxVerifyEchoesChallenge(t *testing.T) {
	h, _ := newTestWebhookHandler()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/dropbox?challenge=abc123", nil)
	rec := httptest.NewRecorder()
	h.DropboxVerify(rec, req)

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", string(body))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestDropboxNotifyRejectsBadSignature(t *testing.T) {
	h, orch := newTestWebhookHandler()

	payload := []byte(`{"list_folder":{"accounts":["dbid:a"]}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dropbox", bytes.NewReader(payload))
	req.Header.Set("X-Dropbox-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	h.DropboxNotify(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, orch.Status().QueueDepth, "unverified notification must not enqueue")
}

func TestDropboxNotifyEnqueuesOnceForDuplicates(t *testing.T) {
	h, orch := newTestWebhookHandler()
	payload := []byte(`{"list_folder":{"accounts":["dbid:a"]}}`)

	deliver := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/dropbox", bytes.NewReader(payload))
		req.Header.Set("X-Dropbox-Signature", sign(payload))
		rec := httptest.NewRecorder()
		h.DropboxNotify(rec, req)
		return rec
	}

	first := deliver()
	second := deliver()

	// Both deliveries are acknowledged, but only the first queues work.
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, orch.Status().QueueDepth)
}

func TestDriveNotifySkipsSyncHandshake(t *testing.T) {
	h, orch := newTestWebhookHandler()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/drive", nil)
	req.Header.Set("X-Goog-Resource-State", "sync")
	req.Header.Set("X-Goog-Channel-ID", "chan-1")
	rec := httptest.NewRecorder()
	h.DriveNotify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, orch.Status().QueueDepth)
}

func TestDriveNotifyDedupsByHeaders(t *testing.T) {
	h, orch := newTestWebhookHandler()

	deliver := func(msg string) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/drive", nil)
		req.Header.Set("X-Goog-Resource-State", "update")
		req.Header.Set("X-Goog-Channel-ID", "chan-1")
		req.Header.Set("X-Goog-Message-Number", msg)
		h.DriveNotify(httptest.NewRecorder(), req)
	}

	deliver("7")
	deliver("7") // redelivery
	deliver("8") // new change

	assert.Equal(t, 2, orch.Status().QueueDepth)
}
