package extract

import (
	"path/filepath"
	"strings"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// Extension lists live here and nowhere else so filtering and extraction
// can never drift apart.
var familyByExt = map[string]models.FileFamily{
	".mp3":  models.FamilySpeech,
	".m4a":  models.FamilySpeech,
	".wav":  models.FamilySpeech,
	".aac":  models.FamilySpeech,
	".ogg":  models.FamilySpeech,
	".flac": models.FamilySpeech,
	".webm": models.FamilySpeech,
	// mp4 can be either; the original pipeline treated it as audio input.
	".mp4": models.FamilySpeech,

	".pdf":  models.FamilyDocument,
	".docx": models.FamilyDocument,
	".doc":  models.FamilyDocument,
	".rtf":  models.FamilyDocument,
	".txt":  models.FamilyDocument,
	".md":   models.FamilyDocument,
	".html": models.FamilyDocument,

	".jpg":  models.FamilyImage,
	".jpeg": models.FamilyImage,
	".png":  models.FamilyImage,
	".gif":  models.FamilyImage,
	".bmp":  models.FamilyImage,
	".tiff": models.FamilyImage,
	".webp": models.FamilyImage,
}

// Classify assigns a content family from the filename extension.
// Unknown extensions classify as FamilyUnknown, which is routine noise for
// the pipeline, not an error.
func Classify(filename string) models.FileFamily {
	ext := strings.ToLower(filepath.Ext(filename))
	if fam, ok := familyByExt[ext]; ok {
		return fam
	}
	return models.FamilyUnknown
}

// MimeType maps an extension to the MIME type sent to extraction services.
func MimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".rtf":
		return "application/rtf"
	case ".html":
		return "text/html"
	case ".txt", ".md":
		return "text/plain"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/x-m4a"
	case ".wav":
		return "audio/wav"
	case ".mp4":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}
