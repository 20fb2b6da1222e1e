package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

const (
	titleMinWords = 2
	titleMaxWords = 7

	// maxSummaryChars bounds a runaway model summary on a sentence boundary.
	maxSummaryChars = 600

	analysisTemperature = 0.3
	titleTemperature    = 0.5
)

// Generator turns extracted text into a normalized InsightResult. Generate
// never fails: model errors and malformed output degrade through fallbacks
// so every file that reaches analysis leaves with a usable result.
type Generator struct {
	ai           core.InsightClient
	promptTokens int
	log          *zap.SugaredLogger
}

func NewGenerator(ai core.InsightClient, promptTokens int, log *zap.SugaredLogger) *Generator {
	if promptTokens <= 0 {
		promptTokens = 6000
	}
	return &Generator{ai: ai, promptTokens: promptTokens, log: log}
}

// rawInsight is the JSON shape requested from the model.
type rawInsight struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []string `json:"action_items"`
	Topics      []string `json:"topics"`
	Sentiment   string   `json:"sentiment"`
}

func (g *Generator) Generate(ctx context.Context, text, filename string) *models.InsightResult {
	body := truncateToTokenBudget(text, g.promptTokens)

	content, err := g.ai.Complete(ctx, analysisPrompt(body), 1024, analysisTemperature)
	if err != nil {
		g.log.Warnw("insight completion failed, using text fallback", "file", filename, "err", err)
		return g.fallback(text, filename)
	}

	raw, ok := parseStructured(content)
	if !ok {
		// Same output shape as the structured path; callers never branch on
		// which parser ran.
		raw = parseHeuristic(content)
	}

	result := &models.InsightResult{
		Summary:     normalizeSummary(raw.Summary),
		KeyPoints:   trimAll(raw.KeyPoints),
		ActionItems: trimAll(raw.ActionItems),
		Topics:      trimAll(raw.Topics),
		Sentiment:   NormalizeSentiment(raw.Sentiment),
	}
	if result.Summary == "" {
		result.Summary = leadingSentences(text, maxSummaryChars)
	}
	result.Title = g.generateTitle(ctx, result.Summary, filename)
	return result
}

func analysisPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following content and respond ONLY with a valid JSON object (no markdown, no code blocks) with this structure:
{
  "summary": "2-4 sentence summary",
  "key_points": ["point", ...],
  "action_items": ["action", ...],
  "topics": ["topic", ...],
  "sentiment": "positive|negative|neutral|mixed"
}

Content:
%s`, text)
}

// generateTitle asks the model once; output violating the 2-7 word contract
// falls back to a filename-derived title rather than retrying the model.
func (g *Generator) generateTitle(ctx context.Context, summary, filename string) string {
	prompt := fmt.Sprintf("Write a title of 2 to 7 words for this content. Respond with the title only, no quotes.\n\n%s",
		truncateToTokenBudget(summary, 200))

	out, err := g.ai.Complete(ctx, prompt, 32, titleTemperature)
	if err == nil {
		title := cleanTitle(out)
		if n := len(strings.Fields(title)); n >= titleMinWords && n <= titleMaxWords {
			return title
		}
	}
	return TitleFromFilename(filename)
}

// fallback builds an insight from the text alone when the model is down.
func (g *Generator) fallback(text, filename string) *models.InsightResult {
	return &models.InsightResult{
		Title:     TitleFromFilename(filename),
		Summary:   leadingSentences(text, maxSummaryChars),
		Sentiment: models.SentimentNeutral,
	}
}

// parseStructured accepts direct JSON or JSON wrapped in a markdown fence.
func parseStructured(content string) (rawInsight, bool) {
	var raw rawInsight
	candidate := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(candidate), &raw); err == nil {
		return raw, true
	}
	candidate = stripFence(candidate)
	if err := json.Unmarshal([]byte(candidate), &raw); err == nil {
		return raw, true
	}
	return rawInsight{}, false
}

// parseHeuristic scans for marker words line by line when the model ignored
// the JSON contract.
func parseHeuristic(content string) rawInsight {
	var raw rawInsight
	var summaryLines []string
	section := "summary"

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "summary"):
			section = "summary"
			if rest := markerRest(line); rest != "" {
				summaryLines = append(summaryLines, rest)
			}
		case strings.HasPrefix(lower, "key point") || strings.HasPrefix(lower, "key_point"):
			section = "key"
			if rest := markerRest(line); rest != "" {
				raw.KeyPoints = append(raw.KeyPoints, rest)
			}
		case strings.HasPrefix(lower, "action"):
			section = "action"
			if rest := markerRest(line); rest != "" {
				raw.ActionItems = append(raw.ActionItems, rest)
			}
		case strings.HasPrefix(lower, "topic"):
			section = "topic"
			if rest := markerRest(line); rest != "" {
				raw.Topics = append(raw.Topics, splitList(rest)...)
			}
		case strings.HasPrefix(lower, "sentiment"):
			raw.Sentiment = markerRest(line)
		default:
			switch section {
			case "summary":
				summaryLines = append(summaryLines, line)
			case "key":
				raw.KeyPoints = append(raw.KeyPoints, line)
			case "action":
				raw.ActionItems = append(raw.ActionItems, line)
			case "topic":
				raw.Topics = append(raw.Topics, splitList(line)...)
			}
		}
	}
	raw.Summary = strings.Join(summaryLines, " ")
	return raw
}

// NormalizeSentiment maps arbitrary model output onto the canonical
// four-value set. Anything unrecognized is neutral.
func NormalizeSentiment(s string) models.Sentiment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "good":
		return models.SentimentPositive
	case "negative", "neg", "bad":
		return models.SentimentNegative
	case "mixed":
		return models.SentimentMixed
	default:
		return models.SentimentNeutral
	}
}

// TitleFromFilename derives a deterministic 2-7 word title from the cleaned
// filename.
func TitleFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)

	words := strings.Fields(base)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Untitled Note"
	}
	if len(words) < titleMinWords {
		words = append(words, "Notes")
	}
	return strings.Join(words, " ")
}

// truncateToTokenBudget cuts text past the budget with an explicit marker.
// Uses the cheap ~4 chars per token estimate.
func truncateToTokenBudget(text string, tokens int) string {
	limit := tokens * 4
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "\n[truncated]"
}

func normalizeSummary(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxSummaryChars {
		return s
	}
	return leadingSentences(s, maxSummaryChars)
}

// leadingSentences takes whole sentences up to max characters, falling back
// to a hard cut when no boundary exists.
func leadingSentences(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if idx := strings.LastIndexAny(cut, ".!?"); idx > max/4 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}

func markerRest(line string) string {
	if idx := strings.IndexAny(line, ":-"); idx >= 0 {
		return strings.TrimSpace(line[idx+1:])
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func trimAll(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(strings.TrimSuffix(s, "."))
}

func stripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	if idx := strings.Index(content, "\n"); idx >= 0 {
		content = content[idx+1:]
	}
	if idx := strings.LastIndex(content, "```"); idx >= 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}
