package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// testNamePattern matches "test" used as a filename token (test-recording,
// my_test, test.mp3) without firing on words that merely contain it, like
// "attestation" or "contest".
var testNamePattern = regexp.MustCompile(`(?i)(^|[\s_\-.(])(test|sample|dummy|placeholder)([\s_\-.)]|$)`)

// ValidationConfig holds the gate thresholds. They are tuning knobs and
// come from the environment, not constants.
type ValidationConfig struct {
	MinTextChars       int
	MinSummaryChars    int
	RepetitionRatio    float64
	RepetitionMaxWords int
}

// Validator is the post-analysis gate that keeps test recordings, empty
// extractions, and degenerate model output from being published. A rejection
// is a policy decision, not an error: callers mark the file skipped with the
// returned reason.
type Validator struct {
	cfg ValidationConfig
}

func NewValidator(cfg ValidationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// CheckName rejects filenames that look like test or scratch artifacts.
// Returning a non-empty reason means skip.
func (v *Validator) CheckName(name string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		return "empty filename"
	}
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return "hidden or temporary file"
	}
	if testNamePattern.MatchString(base) {
		return fmt.Sprintf("filename %q matches a test-file pattern", name)
	}
	return ""
}

// CheckResult validates the extracted text and the derived insight together.
func (v *Validator) CheckResult(extraction *models.ExtractionResult, insight *models.InsightResult) string {
	text := strings.TrimSpace(extraction.Text)

	if extraction.Method == models.MethodPlaceholder {
		return "extraction produced placeholder text"
	}
	if len(text) < v.cfg.MinTextChars {
		return fmt.Sprintf("extracted text too short (%d chars, need %d)", len(text), v.cfg.MinTextChars)
	}
	if reason := v.checkRepetition(text); reason != "" {
		return reason
	}
	if len(strings.TrimSpace(insight.Summary)) < v.cfg.MinSummaryChars {
		return fmt.Sprintf("summary too short (%d chars, need %d)", len(strings.TrimSpace(insight.Summary)), v.cfg.MinSummaryChars)
	}
	return ""
}

// checkRepetition rejects degenerate text where a few words repeat over and
// over, a common failure mode of both bad OCR and looping model output. The
// ratio is total words over unique words across the leading sample.
func (v *Validator) checkRepetition(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > v.cfg.RepetitionMaxWords {
		words = words[:v.cfg.RepetitionMaxWords]
	}
	// Too few words to measure meaningfully.
	if len(words) < 20 {
		return ""
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	ratio := float64(len(words)) / float64(len(unique))
	if ratio > v.cfg.RepetitionRatio {
		return fmt.Sprintf("text repetition ratio %.1f exceeds %.1f", ratio, v.cfg.RepetitionRatio)
	}
	return ""
}

// SanitizeFilename strips control characters, path separators, and
// backend-ambiguous characters so a remote filename is always safe to use
// as a local path component.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// drop control characters
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "unnamed"
	}
	return out
}
