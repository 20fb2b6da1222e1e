package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

type stubAI struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (s *stubAI) Complete(_ context.Context, prompt string, _ int, _ float32) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *stubAI) Transcribe(context.Context, []byte, string) (*models.Transcription, error) {
	return nil, ErrTranscriptionUnavailable
}

func (s *stubAI) VisionExtract(context.Context, []byte, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func newTestGenerator(ai *stubAI) *Generator {
	return NewGenerator(ai, 6000, zap.NewNop().Sugar())
}

func TestGenerateStructuredResponse(t *testing.T) {
	ai := &stubAI{responses: []string{
		`{"summary":"A planning meeting about Q3.","key_points":["Budget approved"],"action_items":["Send recap"],"topics":["planning","budget"],"sentiment":"Positive"}`,
		"Quarterly Planning Recap",
	}}

	res := newTestGenerator(ai).Generate(context.Background(), "meeting text", "meeting_notes.mp3")
	require.NotNil(t, res)

	assert.Equal(t, "A planning meeting about Q3.", res.Summary)
	assert.Equal(t, []string{"Budget approved"}, res.KeyPoints)
	assert.Equal(t, []string{"Send recap"}, res.ActionItems)
	assert.Equal(t, []string{"planning", "budget"}, res.Topics)
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
	assert.Equal(t, "Quarterly Planning Recap", res.Title)
}

func TestGenerateFencedJSON(t *testing.T) {
	ai := &stubAI{responses: []string{
		"```json\n{\"summary\":\"Fenced summary.\",\"sentiment\":\"mixed\"}\n```",
		"Two Words",
	}}

	res := newTestGenerator(ai).Generate(context.Background(), "text", "doc.pdf")
	assert.Equal(t, "Fenced summary.", res.Summary)
	assert.Equal(t, models.SentimentMixed, res.Sentiment)
}

func TestGenerateHeuristicFallback(t *testing.T) {
	ai := &stubAI{responses: []string{
		"Summary: The team discussed the rollout.\nKey points:\n- Rollout slips a week\n- QA signed off\nAction items:\n- Update the schedule\nTopics: rollout, QA\nSentiment: negative",
		"Rollout Status Update",
	}}

	res := newTestGenerator(ai).Generate(context.Background(), "text", "status.docx")
	assert.Equal(t, "The team discussed the rollout.", res.Summary)
	assert.Equal(t, []string{"Rollout slips a week", "QA signed off"}, res.KeyPoints)
	assert.Equal(t, []string{"Update the schedule"}, res.ActionItems)
	assert.Equal(t, []string{"rollout", "QA"}, res.Topics)
	assert.Equal(t, models.SentimentNegative, res.Sentiment)
}

func TestGenerateModelDown(t *testing.T) {
	ai := &stubAI{err: errors.New("quota exceeded")}

	text := "First sentence of the document. Second sentence with more detail."
	res := newTestGenerator(ai).Generate(context.Background(), text, "weekly-report.pdf")

	assert.Equal(t, "Weekly Report", res.Title)
	assert.Equal(t, models.SentimentNeutral, res.Sentiment)
	assert.Contains(t, res.Summary, "First sentence")
}

func TestGenerateTruncatesLongInput(t *testing.T) {
	ai := &stubAI{responses: []string{`{"summary":"ok"}`, "Some Title Here"}}
	g := NewGenerator(ai, 10, zap.NewNop().Sugar())

	g.Generate(context.Background(), strings.Repeat("a", 500), "big.txt")

	require.NotEmpty(t, ai.prompts)
	assert.Contains(t, ai.prompts[0], "[truncated]")
	assert.NotContains(t, ai.prompts[0], strings.Repeat("a", 100))
}

func TestTitleContractEnforced(t *testing.T) {
	// Model returns a single word, then an over-long ramble: both violate
	// the 2-7 word range and yield the filename title.
	for _, bad := range []string{"Report", "this is a very long title that keeps going on"} {
		ai := &stubAI{responses: []string{`{"summary":"ok"}`, bad}}
		res := newTestGenerator(ai).Generate(context.Background(), "text", "q3_board_deck.pdf")
		assert.Equal(t, "Q3 Board Deck", res.Title, "model title %q should be rejected", bad)
	}
}

func TestNormalizeSentiment(t *testing.T) {
	cases := map[string]models.Sentiment{
		"Positive":  models.SentimentPositive,
		"NEGATIVE":  models.SentimentNegative,
		" mixed ":   models.SentimentMixed,
		"neutral":   models.SentimentNeutral,
		"uncertain": models.SentimentNeutral,
		"":          models.SentimentNeutral,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSentiment(in), "input %q", in)
	}
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "Meeting Notes 2024", TitleFromFilename("meeting_notes_2024.mp3"))
	assert.Equal(t, "Report Notes", TitleFromFilename("report.pdf"))
	assert.Equal(t, "Untitled Note", TitleFromFilename(".pdf"))

	long := TitleFromFilename("one-two-three-four-five-six-seven-eight-nine.txt")
	assert.Len(t, strings.Fields(long), 7)
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Board Meeting Recap", cleanTitle("\"Board Meeting Recap.\"\n"))
	assert.Equal(t, "First Line", cleanTitle("First Line\nSecond Line"))
}
