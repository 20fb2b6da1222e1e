package core

import (
	"context"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// SourceClient defines what the pipeline needs from one storage backend.
// Each adapter normalizes its wire format into models.RawFileEntry so higher
// layers never depend on a specific provider.
type SourceClient interface {
	Backend() models.Backend

	ListFolder(ctx context.Context, path string) ([]models.RawFileEntry, error)
	Download(ctx context.Context, path string) ([]byte, error)

	// ShareLink creates or fetches a shareable link for the file. Adapters
	// that cannot produce one return an empty string without error.
	ShareLink(ctx context.Context, path string) (string, error)
}

// Extractor converts a downloaded file into text plus family metadata.
// For document/image families extraction never fails: exhausted fallbacks
// produce a placeholder result. Speech extraction may return an error, which
// is terminal for that file.
type Extractor interface {
	Extract(ctx context.Context, file *models.DownloadedFile, family models.FileFamily) (*models.ExtractionResult, error)
}

// SinkBackend defines the raw operations against the system-of-record.
type SinkBackend interface {
	Query(ctx context.Context, filter models.PageFilter) ([]models.RemotePage, error)
	CreatePage(ctx context.Context, props PageProperties, blocks []Block) (*models.RemotePageRef, error)
	UpdatePage(ctx context.Context, ref models.RemotePageRef, props PageProperties, blocks []Block) error
	DeleteBlocks(ctx context.Context, ref models.RemotePageRef) error
}

// PageProperties are the typed page fields the publisher writes.
type PageProperties struct {
	Title     string
	SourceURL string
	Backend   string
	Family    string
	Sentiment string
	Topics    []string
}

// Block is one content block on a page. Text must respect the backend's
// per-block ceiling; the publisher chunks before building blocks.
type Block struct {
	Kind string
	Text string
}

const (
	BlockHeading   = "heading"
	BlockParagraph = "paragraph"
	BlockBullet    = "bulleted_list_item"
	BlockDivider   = "divider"
)
