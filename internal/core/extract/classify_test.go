package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

func TestClassify(t *testing.T) {
	cases := map[string]models.FileFamily{
		"recording.mp3":   models.FamilySpeech,
		"VOICE.M4A":       models.FamilySpeech,
		"clip.mp4":        models.FamilySpeech,
		"report.pdf":      models.FamilyDocument,
		"notes.txt":       models.FamilyDocument,
		"letter.docx":     models.FamilyDocument,
		"scan.png":        models.FamilyImage,
		"photo.JPEG":      models.FamilyImage,
		"archive.zip":     models.FamilyUnknown,
		"no-extension":    models.FamilyUnknown,
		"weird.pdf.exe":   models.FamilyUnknown,
		"nested/file.pdf": models.FamilyDocument,
	}
	for name, want := range cases {
		assert.Equal(t, want, Classify(name), "file %q", name)
	}
}

func TestMimeTypeFallback(t *testing.T) {
	assert.Equal(t, "application/pdf", MimeType("a.pdf"))
	assert.Equal(t, "image/png", MimeType("a.png"))
	assert.Equal(t, "application/octet-stream", MimeType("a.unknown"))
}
