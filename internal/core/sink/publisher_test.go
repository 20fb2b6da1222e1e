package sink

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

type fakeBackend struct {
	pages   []models.RemotePage
	creates int
	updates int
	queries []models.PageFilter
}

func (f *fakeBackend) Query(_ context.Context, filter models.PageFilter) ([]models.RemotePage, error) {
	f.queries = append(f.queries, filter)
	var out []models.RemotePage
	for _, p := range f.pages {
		switch filter.Property {
		case "Source":
			if strings.Contains(p.SourceURL, filter.Contains) {
				out = append(out, p)
			}
		case "Name":
			if strings.Contains(p.Title, filter.Contains) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) CreatePage(context.Context, core.PageProperties, []core.Block) (*models.RemotePageRef, error) {
	f.creates++
	return &models.RemotePageRef{ID: "new-page", URL: "https://notion.so/new-page"}, nil
}

func (f *fakeBackend) UpdatePage(context.Context, models.RemotePageRef, core.PageProperties, []core.Block) error {
	f.updates++
	return nil
}

func (f *fakeBackend) DeleteBlocks(context.Context, models.RemotePageRef) error { return nil }

func testRecord() *models.PublishRecord {
	return &models.PublishRecord{
		File: models.DownloadedFile{
			Identity:      models.FileIdentity{Backend: models.BackendDropbox, Ref: "/inbox/notes.pdf"},
			SanitizedName: "notes.pdf",
			ShareURL:      "https://dropbox.com/s/abc?dl=1",
		},
		Family:      models.FamilyDocument,
		Extraction:  models.ExtractionResult{Text: "Full extracted text.", Method: models.MethodStructured},
		Insight:     models.InsightResult{Title: "Project Notes", Summary: "A summary."},
		ProcessedAt: time.Now(),
	}
}

func TestFindExistingByLinkExactMatch(t *testing.T) {
	backend := &fakeBackend{pages: []models.RemotePage{
		{Ref: models.RemotePageRef{ID: "p1"}, Title: "Other", SourceURL: "https://dropbox.com/s/abc?dl=1&extra"},
		{Ref: models.RemotePageRef{ID: "p2"}, Title: "Notes", SourceURL: "https://dropbox.com/s/abc?dl=1"},
	}}
	p := NewPublisher(backend, zap.NewNop().Sugar())

	ref, err := p.FindExisting(context.Background(), "https://dropbox.com/s/abc?dl=1", "notes.pdf")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "p2", ref.ID, "substring hits must be exact-matched")
}

func TestFindExistingNameFallbackOnlyWithoutLink(t *testing.T) {
	backend := &fakeBackend{pages: []models.RemotePage{
		{Ref: models.RemotePageRef{ID: "p1"}, Title: "notes.pdf"},
	}}
	p := NewPublisher(backend, zap.NewNop().Sugar())

	// With a link, a name match alone is not consulted.
	ref, err := p.FindExisting(context.Background(), "https://dropbox.com/s/other", "notes.pdf")
	require.NoError(t, err)
	assert.Nil(t, ref)
	require.Len(t, backend.queries, 1)
	assert.Equal(t, "Source", backend.queries[0].Property)

	// Without a link, the name lookup runs.
	ref, err = p.FindExisting(context.Background(), "", "notes.pdf")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "p1", ref.ID)
}

func TestCreateOrUpdateIdempotentNoOp(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPublisher(backend, zap.NewNop().Sugar())
	existing := &models.RemotePageRef{ID: "p1"}

	ref, err := p.CreateOrUpdate(context.Background(), testRecord(), existing, false)
	require.NoError(t, err)
	assert.Equal(t, "p1", ref.ID)
	assert.Zero(t, backend.creates, "existing page without force must issue zero writes")
	assert.Zero(t, backend.updates)
}

func TestCreateOrUpdateForceOverwrites(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPublisher(backend, zap.NewNop().Sugar())
	existing := &models.RemotePageRef{ID: "p1"}

	ref, err := p.CreateOrUpdate(context.Background(), testRecord(), existing, true)
	require.NoError(t, err)
	assert.Equal(t, "p1", ref.ID)
	assert.Equal(t, 1, backend.updates)
	assert.Zero(t, backend.creates)
}

func TestCreateOrUpdateCreatesWhenMissing(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPublisher(backend, zap.NewNop().Sugar())

	ref, err := p.CreateOrUpdate(context.Background(), testRecord(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "new-page", ref.ID)
	assert.Equal(t, 1, backend.creates)
}

func TestChunkTextRoundTrip(t *testing.T) {
	sentence := "This is a sentence with several words in it. "
	text := strings.TrimSpace(strings.Repeat(sentence, 200))

	chunks := ChunkText(text, 500)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 500, "no chunk may exceed the ceiling")
		assert.False(t, strings.HasPrefix(c, " "))
		assert.False(t, strings.HasSuffix(c, " "))
	}

	// Rejoining with single spaces reproduces the text, since splits land on
	// whitespace the chunker trimmed.
	rejoined := strings.Join(chunks, " ")
	assert.Equal(t, text, rejoined)
}

func TestChunkTextNeverSplitsWords(t *testing.T) {
	words := strings.Fields(strings.Repeat("alpha beta gamma delta epsilon ", 100))
	text := strings.Join(words, " ")

	chunks := ChunkText(text, 64)
	rejoined := strings.Fields(strings.Join(chunks, " "))
	assert.Equal(t, words, rejoined)
}

func TestChunkTextMultibyteSafe(t *testing.T) {
	// Whitespace-free CJK text forces the oversized-word fallback; the cut
	// must land on rune boundaries, never mid-codepoint.
	text := strings.Repeat("会議の議事録と要約を作成する。", 100)

	chunks := ChunkText(text, 100)
	require.Greater(t, len(chunks), 1)

	var total int
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk must be valid UTF-8: %q", c)
		assert.LessOrEqual(t, len(c), 100)
		total += utf8.RuneCountInString(c)
	}
	assert.Equal(t, utf8.RuneCountInString(text), total, "no runes lost or mangled")
}

func TestChunkTextShortInput(t *testing.T) {
	assert.Equal(t, []string{"short"}, ChunkText("short", 100))
	assert.Nil(t, ChunkText("   ", 100))
}

func TestBuildBlocksLayout(t *testing.T) {
	rec := testRecord()
	rec.Insight.KeyPoints = []string{"First point"}
	rec.Insight.ActionItems = []string{"Do the thing"}

	blocks := buildBlocks(rec)

	var kinds []string
	for _, b := range blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Contains(t, kinds, core.BlockHeading)
	assert.Contains(t, kinds, core.BlockBullet)
	assert.Contains(t, kinds, core.BlockDivider)

	// Transcript heading only for transcriptions.
	assert.Equal(t, "Extracted Text", headingText(blocks, 4))

	rec.Extraction.Method = models.MethodTranscription
	blocks = buildBlocks(rec)
	found := false
	for _, b := range blocks {
		if b.Kind == core.BlockHeading && b.Text == "Transcript" {
			found = true
		}
	}
	assert.True(t, found)
}

func headingText(blocks []core.Block, skip int) string {
	count := 0
	for _, b := range blocks {
		if b.Kind == core.BlockHeading {
			count++
			if count == skip {
				return b.Text
			}
		}
	}
	return ""
}
