package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// ErrTranscriptionUnavailable is returned when no transcription credentials
// were configured; audio files then fail at file granularity instead of
// crashing the process.
var ErrTranscriptionUnavailable = errors.New("transcription service not configured")

// WhisperClient talks to an OpenAI-compatible audio transcription endpoint.
type WhisperClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewWhisperClient(apiKey, baseURL, model string, timeout time.Duration) *WhisperClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe uploads the audio as multipart form data and requests the
// verbose response so duration and detected language come back with the text.
func (w *WhisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (*models.Transcription, error) {
	if w.apiKey == "" {
		return nil, ErrTranscriptionUnavailable
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("write format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, truncateForError(raw))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal transcription response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("transcription API error: %s", parsed.Error.Message)
	}

	return &models.Transcription{
		Text:            parsed.Text,
		DurationSeconds: parsed.Duration,
		Language:        parsed.Language,
	}, nil
}

func truncateForError(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
