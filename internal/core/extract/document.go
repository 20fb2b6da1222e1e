package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// minStructuredChars is the point below which a PDF is assumed to be
// scanned/image-based and routed to the vision fallback.
const minStructuredChars = 100

const visionInstruction = "Extract all readable text from this document exactly as written. " +
	"Preserve paragraph order. Return only the extracted text."

// FileExtractor routes a downloaded file through the extraction chain for
// its content family.
type FileExtractor struct {
	ai  core.InsightClient
	log *zap.SugaredLogger
}

func NewFileExtractor(ai core.InsightClient, log *zap.SugaredLogger) *FileExtractor {
	return &FileExtractor{ai: ai, log: log}
}

var _ core.Extractor = (*FileExtractor)(nil)

// Extract dispatches on family. Document and image extraction never return
// an error: exhausted fallbacks yield a placeholder result so the rest of
// the pipeline (cleanup, guard release) runs deterministically.
func (e *FileExtractor) Extract(ctx context.Context, file *models.DownloadedFile, family models.FileFamily) (*models.ExtractionResult, error) {
	data, err := os.ReadFile(file.LocalPath)
	if err != nil {
		if family == models.FamilySpeech {
			return nil, fmt.Errorf("read %s: %w", file.SanitizedName, err)
		}
		return placeholder(file.SanitizedName, err), nil
	}

	switch family {
	case models.FamilySpeech:
		return e.extractSpeech(ctx, file, data)
	case models.FamilyImage:
		return e.extractImage(ctx, file, data), nil
	default:
		return e.extractDocument(ctx, file, data), nil
	}
}

func (e *FileExtractor) extractDocument(ctx context.Context, file *models.DownloadedFile, data []byte) *models.ExtractionResult {
	ext := strings.ToLower(file.SanitizedName)
	switch {
	case strings.HasSuffix(ext, ".pdf"):
		return e.extractPDF(ctx, file, data)
	case strings.HasSuffix(ext, ".txt"), strings.HasSuffix(ext, ".md"):
		return extractPlainText(file.SanitizedName, data)
	default:
		res, err := docconv.Convert(bytes.NewReader(data), MimeType(file.SanitizedName), false)
		if err != nil || strings.TrimSpace(res.Body) == "" {
			e.log.Warnw("structured extraction failed", "file", file.SanitizedName, "err", err)
			return placeholder(file.SanitizedName, err)
		}
		return &models.ExtractionResult{
			Text:     cleanText(res.Body),
			Method:   models.MethodStructured,
			Document: &models.DocumentInfo{PageCount: 1, Confidence: 0.9},
		}
	}
}

// extractPDF reads the text layer page by page; a near-empty text layer
// means a scanned PDF, which falls back to vision extraction over the raw
// document bytes.
func (e *FileExtractor) extractPDF(ctx context.Context, file *models.DownloadedFile, data []byte) *models.ExtractionResult {
	text, pages, err := pdfTextLayer(data)
	if err == nil && utf8.RuneCountInString(text) >= minStructuredChars {
		return &models.ExtractionResult{
			Text:     text,
			Method:   models.MethodStructured,
			Document: &models.DocumentInfo{PageCount: pages, Confidence: 0.9},
		}
	}
	if err != nil {
		e.log.Warnw("pdf text layer unreadable", "file", file.SanitizedName, "err", err)
	}

	visionText, verr := e.ai.VisionExtract(ctx, data, "application/pdf", visionInstruction)
	if verr != nil || strings.TrimSpace(visionText) == "" {
		e.log.Warnw("vision fallback failed", "file", file.SanitizedName, "err", verr)
		if err == nil {
			err = verr
		}
		return placeholder(file.SanitizedName, err)
	}
	return &models.ExtractionResult{
		Text:     cleanText(visionText),
		Method:   models.MethodVision,
		Document: &models.DocumentInfo{PageCount: pages, Confidence: 0.7},
	}
}

func (e *FileExtractor) extractImage(ctx context.Context, file *models.DownloadedFile, data []byte) *models.ExtractionResult {
	prepared, mime := preprocessImage(data)
	if prepared == nil {
		// Preprocessing failure falls back to the unmodified original bytes.
		e.log.Debugw("image preprocessing failed, using original bytes", "file", file.SanitizedName)
		prepared, mime = data, MimeType(file.SanitizedName)
	}

	text, err := e.ai.VisionExtract(ctx, prepared, mime, visionInstruction)
	if err != nil || strings.TrimSpace(text) == "" {
		e.log.Warnw("image text extraction failed", "file", file.SanitizedName, "err", err)
		return placeholder(file.SanitizedName, err)
	}
	return &models.ExtractionResult{
		Text:     cleanText(text),
		Method:   models.MethodOCR,
		Document: &models.DocumentInfo{PageCount: 1, Confidence: 0.7},
	}
}

// preprocessImage applies grayscale, contrast normalization and sharpening
// to improve text yield. Returns nil when the bytes cannot be decoded.
func preprocessImage(data []byte) ([]byte, string) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ""
	}
	img = imaging.Grayscale(img)
	img = imaging.AdjustContrast(img, 20)
	img = imaging.Sharpen(img, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, ""
	}
	return buf.Bytes(), "image/png"
}

func pdfTextLayer(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // unreadable page, keep going
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), pages, nil
}

// extractPlainText decodes BOM-prefixed, UTF-16 and legacy encodings before
// giving up and treating the bytes as UTF-8.
func extractPlainText(name string, data []byte) *models.ExtractionResult {
	text := cleanText(decodeText(data))
	if text == "" {
		return placeholder(name, fmt.Errorf("empty text file"))
	}
	return &models.ExtractionResult{
		Text:     text,
		Method:   models.MethodStructured,
		Document: &models.DocumentInfo{PageCount: 1, Confidence: 1.0},
	}
}

func decodeText(data []byte) string {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return string(data[3:])
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if decoded, _, err := transform.Bytes(decoder, data); err == nil {
			return string(decoded)
		}
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		if decoded, _, err := transform.Bytes(decoder, data); err == nil {
			return string(decoded)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	if decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data); err == nil {
		return string(decoded)
	}
	return string(data)
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// placeholder records that extraction was attempted so the pipeline can
// still publish a diagnostic page instead of silently losing the file.
func placeholder(name string, err error) *models.ExtractionResult {
	reason := "no readable text"
	if err != nil {
		reason = err.Error()
	}
	return &models.ExtractionResult{
		Text:     fmt.Sprintf("[extraction produced no text for %s: %s]", name, reason),
		Method:   models.MethodPlaceholder,
		Document: &models.DocumentInfo{},
	}
}
