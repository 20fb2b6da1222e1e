package insight

import (
	"context"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// Composite presents one InsightClient over the two providers: Gemini for
// completion and vision, whisper for transcription.
type Composite struct {
	gemini  *GeminiClient
	whisper *WhisperClient
}

func NewComposite(gemini *GeminiClient, whisper *WhisperClient) *Composite {
	return &Composite{gemini: gemini, whisper: whisper}
}

var _ core.InsightClient = (*Composite)(nil)

func (c *Composite) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	return c.gemini.Complete(ctx, prompt, maxTokens, temperature)
}

func (c *Composite) VisionExtract(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	return c.gemini.VisionExtract(ctx, image, mimeType, instruction)
}

func (c *Composite) Transcribe(ctx context.Context, audio []byte, filename string) (*models.Transcription, error) {
	if c.whisper == nil {
		return nil, ErrTranscriptionUnavailable
	}
	return c.whisper.Transcribe(ctx, audio, filename)
}

func (c *Composite) Close() error {
	if c.gemini != nil {
		return c.gemini.Close()
	}
	return nil
}
