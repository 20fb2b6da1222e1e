package sink

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// blockCharLimit is Notion's per-block rich text ceiling.
const blockCharLimit = 2000

// Publisher owns the dedup contract against the system-of-record and the
// page layout. It is the only component issuing sink writes.
type Publisher struct {
	backend core.SinkBackend
	log     *zap.SugaredLogger
}

func NewPublisher(backend core.SinkBackend, log *zap.SugaredLogger) *Publisher {
	return &Publisher{backend: backend, log: log}
}

// FindExisting looks up a page for the file. The shareable link is the
// primary key: it is backend-stable while display names collide. The name
// lookup runs only when no link is available, never as a second opinion.
// The remote API filters by substring, so results are exact-matched here.
func (p *Publisher) FindExisting(ctx context.Context, shareURL, name string) (*models.RemotePageRef, error) {
	if shareURL != "" {
		pages, err := p.backend.Query(ctx, models.PageFilter{Property: "Source", Contains: shareURL})
		if err != nil {
			return nil, fmt.Errorf("find by link: %w", err)
		}
		for _, page := range pages {
			if page.SourceURL == shareURL {
				return &page.Ref, nil
			}
		}
		return nil, nil
	}

	title := strings.TrimSpace(name)
	if title == "" {
		return nil, nil
	}
	pages, err := p.backend.Query(ctx, models.PageFilter{Property: "Name", Contains: title})
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	for _, page := range pages {
		if strings.EqualFold(strings.TrimSpace(page.Title), title) {
			return &page.Ref, nil
		}
	}
	return nil, nil
}

// CreateOrUpdate publishes the record idempotently. An existing page with
// force unset is returned untouched, with zero write calls; this is what
// makes redelivered webhooks safe.
func (p *Publisher) CreateOrUpdate(ctx context.Context, rec *models.PublishRecord, existing *models.RemotePageRef, force bool) (*models.RemotePageRef, error) {
	if existing != nil && !force {
		p.log.Infow("page already exists, skipping write",
			"file", rec.File.SanitizedName, "page", existing.ID)
		return existing, nil
	}

	props := buildProperties(rec)
	blocks := buildBlocks(rec)

	if existing != nil {
		if err := p.backend.UpdatePage(ctx, *existing, props, blocks); err != nil {
			return nil, fmt.Errorf("update page for %s: %w", rec.File.SanitizedName, err)
		}
		return existing, nil
	}

	ref, err := p.backend.CreatePage(ctx, props, blocks)
	if err != nil {
		return nil, fmt.Errorf("create page for %s: %w", rec.File.SanitizedName, err)
	}
	return ref, nil
}

func buildProperties(rec *models.PublishRecord) core.PageProperties {
	return core.PageProperties{
		Title:     rec.Insight.Title,
		SourceURL: rec.File.ShareURL,
		Backend:   string(rec.File.Identity.Backend),
		Family:    string(rec.Family),
		Sentiment: string(rec.Insight.Sentiment),
		Topics:    rec.Insight.Topics,
	}
}

// buildBlocks lays out the page: summary, key points, action items, then the
// full extracted text behind a divider.
func buildBlocks(rec *models.PublishRecord) []core.Block {
	var blocks []core.Block

	add := func(kind, text string) {
		blocks = append(blocks, core.Block{Kind: kind, Text: text})
	}

	if rec.Insight.Summary != "" {
		add(core.BlockHeading, "Summary")
		for _, chunk := range ChunkText(rec.Insight.Summary, blockCharLimit) {
			add(core.BlockParagraph, chunk)
		}
	}
	if len(rec.Insight.KeyPoints) > 0 {
		add(core.BlockHeading, "Key Points")
		for _, point := range rec.Insight.KeyPoints {
			add(core.BlockBullet, clipBlock(point))
		}
	}
	if len(rec.Insight.ActionItems) > 0 {
		add(core.BlockHeading, "Action Items")
		for _, item := range rec.Insight.ActionItems {
			add(core.BlockBullet, clipBlock(item))
		}
	}

	add(core.BlockDivider, "")
	add(core.BlockHeading, bodyHeading(rec))
	for _, chunk := range ChunkText(rec.Extraction.Text, blockCharLimit) {
		add(core.BlockParagraph, chunk)
	}

	if rec.Extraction.Speech != nil {
		add(core.BlockParagraph, fmt.Sprintf("Duration: %.0fs, language: %s",
			rec.Extraction.Speech.DurationSeconds, rec.Extraction.Speech.Language))
	}
	return blocks
}

func bodyHeading(rec *models.PublishRecord) string {
	if rec.Extraction.Method == models.MethodTranscription {
		return "Transcript"
	}
	return "Extracted Text"
}

// ChunkText splits text into pieces of at most max characters, cutting on
// paragraph, then sentence, then whitespace boundaries. It never splits
// inside a word unless a single word exceeds the ceiling.
func ChunkText(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	remaining := text
	for len(remaining) > max {
		// Back the window up to a rune boundary so whitespace-free text
		// (CJK, long URLs) never yields an invalid UTF-8 block.
		end := max
		for end > 0 && !utf8.RuneStart(remaining[end]) {
			end--
		}
		window := remaining[:end]
		cut := chunkBoundary(window)
		if cut == 0 {
			// Degenerate ceiling smaller than one rune; take the rune whole.
			_, size := utf8.DecodeRuneInString(remaining)
			cut = size
		}
		chunks = append(chunks, strings.TrimSpace(remaining[:cut]))
		remaining = strings.TrimSpace(remaining[cut:])
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// chunkBoundary picks the split index inside the window: the last paragraph
// break, else the last sentence end, else the last whitespace, else the full
// window (one oversized word).
func chunkBoundary(window string) int {
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx
	}
	for i := len(window) - 2; i > 0; i-- {
		if (window[i] == '.' || window[i] == '!' || window[i] == '?') && window[i+1] == ' ' {
			return i + 1
		}
	}
	if idx := strings.LastIndexAny(window, " \t\n"); idx > 0 {
		return idx
	}
	return len(window)
}

func clipBlock(s string) string {
	if len(s) <= blockCharLimit {
		return s
	}
	chunks := ChunkText(s, blockCharLimit)
	return chunks[0]
}
