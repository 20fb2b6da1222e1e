package core

import (
	"context"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// InsightClient is the language-model surface the pipeline depends on.
// Completion and vision run against Gemini; transcription runs against an
// OpenAI-compatible whisper endpoint. The composite in internal/core/insight
// hides the split.
type InsightClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (*models.Transcription, error)
	VisionExtract(ctx context.Context, image []byte, mimeType, instruction string) (string, error)
}
