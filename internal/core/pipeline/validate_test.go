package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

func newTestValidator() *Validator {
	return NewValidator(ValidationConfig{
		MinTextChars:       50,
		MinSummaryChars:    20,
		RepetitionRatio:    3.0,
		RepetitionMaxWords: 200,
	})
}

func TestCheckNameTestPatterns(t *testing.T) {
	v := newTestValidator()

	rejected := []string{
		"test-recording.mp3",
		"my_test.pdf",
		"Test file.docx",
		"sample-doc.pdf",
		"dummy.txt",
		".hidden.pdf",
		"~$report.docx",
	}
	for _, name := range rejected {
		assert.NotEmpty(t, v.CheckName(name), "expected %q to be rejected", name)
	}

	accepted := []string{
		"quarterly-report.pdf",
		"attestation.pdf", // contains "test" but not as a token
		"contest-results.docx",
		"meeting_notes.mp3",
	}
	for _, name := range accepted {
		assert.Empty(t, v.CheckName(name), "expected %q to pass", name)
	}
}

func TestCheckResultShortText(t *testing.T) {
	v := newTestValidator()

	reason := v.CheckResult(
		&models.ExtractionResult{Text: "too short", Method: models.MethodTranscription},
		&models.InsightResult{Summary: "a perfectly reasonable summary"},
	)
	assert.Contains(t, reason, "too short")
}

func TestCheckResultPlaceholder(t *testing.T) {
	v := newTestValidator()

	reason := v.CheckResult(
		&models.ExtractionResult{
			Text:   "[extraction produced no text for scan.pdf: no text layer]",
			Method: models.MethodPlaceholder,
		},
		&models.InsightResult{Summary: "a perfectly reasonable summary"},
	)
	assert.Contains(t, reason, "placeholder")
}

func TestCheckResultRepetition(t *testing.T) {
	v := newTestValidator()

	degenerate := strings.Repeat("the same words again ", 30)
	reason := v.CheckResult(
		&models.ExtractionResult{Text: degenerate, Method: models.MethodOCR},
		&models.InsightResult{Summary: "a perfectly reasonable summary"},
	)
	assert.Contains(t, reason, "repetition")
}

func TestCheckResultPasses(t *testing.T) {
	v := newTestValidator()

	text := "The quarterly planning meeting covered budget allocation, hiring plans for the platform team, and the revised launch timeline for the mobile application."
	reason := v.CheckResult(
		&models.ExtractionResult{Text: text, Method: models.MethodStructured},
		&models.InsightResult{Summary: "Planning meeting covering budget, hiring, and launch timeline."},
	)
	assert.Empty(t, reason)
}

func TestCheckResultShortSummary(t *testing.T) {
	v := newTestValidator()

	text := "The quarterly planning meeting covered budget allocation, hiring plans, and launch timelines in detail."
	reason := v.CheckResult(
		&models.ExtractionResult{Text: text, Method: models.MethodStructured},
		&models.InsightResult{Summary: "Too brief."},
	)
	assert.Contains(t, reason, "summary too short")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report_2024.pdf", SanitizeFilename("report/2024.pdf"))
	assert.Equal(t, "notes.txt", SanitizeFilename("notes\x00\x1f.txt"))
	assert.Equal(t, "a_b_c.pdf", SanitizeFilename(`a\b:c.pdf`))
	assert.Equal(t, "unnamed", SanitizeFilename("\x01\x02"))
}
