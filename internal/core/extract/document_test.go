package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

type stubAI struct {
	visionText string
	visionErr  error
	transcript *models.Transcription
	transErr   error
}

func (s *stubAI) Complete(context.Context, string, int, float32) (string, error) {
	return "", errors.New("not used")
}

func (s *stubAI) VisionExtract(context.Context, []byte, string, string) (string, error) {
	return s.visionText, s.visionErr
}

func (s *stubAI) Transcribe(context.Context, []byte, string) (*models.Transcription, error) {
	return s.transcript, s.transErr
}

func stageFile(t *testing.T, name string, data []byte) *models.DownloadedFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return &models.DownloadedFile{
		LocalPath:     path,
		OriginalName:  name,
		SanitizedName: name,
		SizeBytes:     int64(len(data)),
	}
}

func TestExtractPlainTextUTF8(t *testing.T) {
	e := NewFileExtractor(&stubAI{}, zap.NewNop().Sugar())
	file := stageFile(t, "notes.txt", []byte("First line.\r\n\r\nSecond line.\r\n"))

	res, err := e.Extract(context.Background(), file, models.FamilyDocument)
	require.NoError(t, err)
	assert.Equal(t, models.MethodStructured, res.Method)
	assert.Equal(t, "First line.\nSecond line.", res.Text)
}

func TestExtractPlainTextBOMAndUTF16(t *testing.T) {
	e := NewFileExtractor(&stubAI{}, zap.NewNop().Sugar())

	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello world")...)
	res, err := e.Extract(context.Background(), stageFile(t, "bom.txt", bom), models.FamilyDocument)
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)

	// UTF-16 LE "hi"
	utf16 := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}
	res, err = e.Extract(context.Background(), stageFile(t, "utf16.txt", utf16), models.FamilyDocument)
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
}

func TestExtractImageUsesVision(t *testing.T) {
	e := NewFileExtractor(&stubAI{visionText: "text read from the image"}, zap.NewNop().Sugar())
	file := stageFile(t, "scan.png", []byte("not-a-real-png"))

	res, err := e.Extract(context.Background(), file, models.FamilyImage)
	require.NoError(t, err)
	assert.Equal(t, models.MethodOCR, res.Method)
	assert.Equal(t, "text read from the image", res.Text)
}

func TestExtractImageVisionFailureYieldsPlaceholder(t *testing.T) {
	e := NewFileExtractor(&stubAI{visionErr: errors.New("model offline")}, zap.NewNop().Sugar())
	file := stageFile(t, "scan.png", []byte("not-a-real-png"))

	res, err := e.Extract(context.Background(), file, models.FamilyImage)
	require.NoError(t, err, "image extraction must not propagate errors")
	assert.Equal(t, models.MethodPlaceholder, res.Method)
	assert.Contains(t, res.Text, "scan.png")
}

func TestExtractScannedPDFFallsBackToVision(t *testing.T) {
	// Not a parseable PDF, so the text layer fails and vision takes over.
	e := NewFileExtractor(&stubAI{visionText: "recovered document text"}, zap.NewNop().Sugar())
	file := stageFile(t, "scan.pdf", []byte("%PDF-1.4 garbage"))

	res, err := e.Extract(context.Background(), file, models.FamilyDocument)
	require.NoError(t, err)
	assert.Equal(t, models.MethodVision, res.Method)
	assert.Equal(t, "recovered document text", res.Text)
}

func TestExtractSpeech(t *testing.T) {
	e := NewFileExtractor(&stubAI{transcript: &models.Transcription{
		Text:            "hello from the  recording",
		DurationSeconds: 12.5,
		Language:        "en",
	}}, zap.NewNop().Sugar())
	file := stageFile(t, "memo.mp3", []byte("fake-audio"))

	res, err := e.Extract(context.Background(), file, models.FamilySpeech)
	require.NoError(t, err)
	assert.Equal(t, models.MethodTranscription, res.Method)
	require.NotNil(t, res.Speech)
	assert.Equal(t, 12.5, res.Speech.DurationSeconds)
	assert.Equal(t, "en", res.Speech.Language)
	assert.Equal(t, 4, res.Speech.WordCount)
}

func TestExtractSpeechFailureIsTerminal(t *testing.T) {
	e := NewFileExtractor(&stubAI{transErr: errors.New("service down")}, zap.NewNop().Sugar())
	file := stageFile(t, "memo.mp3", []byte("fake-audio"))

	_, err := e.Extract(context.Background(), file, models.FamilySpeech)
	assert.Error(t, err, "audio has no fallback chain")
}

func TestExtractMissingLocalFile(t *testing.T) {
	e := NewFileExtractor(&stubAI{}, zap.NewNop().Sugar())
	file := &models.DownloadedFile{LocalPath: "/nonexistent/file.pdf", SanitizedName: "file.pdf"}

	res, err := e.Extract(context.Background(), file, models.FamilyDocument)
	require.NoError(t, err)
	assert.Equal(t, models.MethodPlaceholder, res.Method)
}

func TestCleanText(t *testing.T) {
	in := "line one\r\n\r\n  line two  \rline three\x00"
	assert.Equal(t, "line one\nline two\nline three", cleanText(in))
}
