package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// extractSpeech sends the audio to the transcription service. There is no
// fallback chain for audio: a transcription failure is terminal for the
// file and surfaces as an error.
func (e *FileExtractor) extractSpeech(ctx context.Context, file *models.DownloadedFile, data []byte) (*models.ExtractionResult, error) {
	tr, err := e.ai.Transcribe(ctx, data, file.SanitizedName)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", file.SanitizedName, err)
	}

	text := cleanText(tr.Text)
	return &models.ExtractionResult{
		Text:   text,
		Method: models.MethodTranscription,
		Speech: &models.SpeechInfo{
			DurationSeconds: tr.DurationSeconds,
			Language:        tr.Language,
			WordCount:       len(strings.Fields(text)),
		},
	}, nil
}
