package models

import (
	"fmt"
	"time"
)

// Backend identifies the cloud storage a file was observed on.
type Backend string

const (
	BackendDropbox Backend = "dropbox"
	BackendGDrive  Backend = "gdrive"
	BackendS3      Backend = "s3"
)

// FileFamily determines which extraction pipeline applies to a file.
type FileFamily string

const (
	FamilySpeech   FileFamily = "speech"
	FamilyDocument FileFamily = "document"
	FamilyImage    FileFamily = "image"
	FamilyUnknown  FileFamily = "unknown"
)

// ExtractionMethod records how text was obtained from a file.
type ExtractionMethod string

const (
	MethodStructured    ExtractionMethod = "structured"
	MethodOCR           ExtractionMethod = "ocr"
	MethodVision        ExtractionMethod = "ai_vision"
	MethodTranscription ExtractionMethod = "transcription"
	MethodPlaceholder   ExtractionMethod = "placeholder"
)

// Sentiment is always one of the four canonical values.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// FileIdentity is the stable key for one logical source file. It is built
// from backend-stable fields only (path/id plus content hash or revision),
// never from a locally generated share link.
type FileIdentity struct {
	Backend  Backend `json:"backend"`
	Ref      string  `json:"ref"`      // backend path or object id
	Revision string  `json:"revision"` // content hash or revision tag, may be empty
}

// Key is the serialization key for this identity. It deliberately omits the
// revision: concurrent observations of one path (a scan carrying a content
// hash, a manual trigger without one) must contend for the same lock.
func (id FileIdentity) Key() string {
	return fmt.Sprintf("%s:%s", id.Backend, id.Ref)
}

// RawFileEntry is backend-reported folder metadata, normalized by each
// source adapter into this one shape before it reaches the orchestrator.
type RawFileEntry struct {
	Backend  Backend
	Name     string
	Path     string // backend path or object id usable for download
	Size     int64
	Modified time.Time
	IsFolder bool
	Revision string
}

// Identity derives the stable identity for this entry.
func (e RawFileEntry) Identity() FileIdentity {
	return FileIdentity{Backend: e.Backend, Ref: e.Path, Revision: e.Revision}
}

// DownloadedFile is a file staged on local disk. The local file is a scoped
// resource: the orchestrator removes it on every exit path.
type DownloadedFile struct {
	Identity      FileIdentity
	LocalPath     string
	OriginalName  string
	SanitizedName string
	SizeBytes     int64
	ShareURL      string // may be empty if the backend could not produce one
}

// SpeechInfo is family metadata for transcribed audio.
type SpeechInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Language        string  `json:"language"`
	WordCount       int     `json:"word_count"`
}

// DocumentInfo is family metadata for documents and images.
type DocumentInfo struct {
	PageCount  int     `json:"page_count"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is the uniform extractor output. Text is always set,
// possibly to a diagnostic placeholder; downstream stages never see nil.
type ExtractionResult struct {
	Text     string
	Method   ExtractionMethod
	Speech   *SpeechInfo
	Document *DocumentInfo
}

// InsightResult is the model-derived analysis of extracted text.
type InsightResult struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	KeyPoints   []string  `json:"key_points"`
	ActionItems []string  `json:"action_items"`
	Topics      []string  `json:"topics"`
	Sentiment   Sentiment `json:"sentiment"`
}

// PublishRecord is the final artifact handed to the sink: provenance plus
// extraction plus insights.
type PublishRecord struct {
	File        DownloadedFile
	Family      FileFamily
	Extraction  ExtractionResult
	Insight     InsightResult
	ProcessedAt time.Time
}

// RemotePageRef identifies a page in the system-of-record.
type RemotePageRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// RemotePage is a page returned by a sink query.
type RemotePage struct {
	Ref       RemotePageRef
	Title     string
	SourceURL string // the share link stored on the page, if any
}

// PageFilter is a contains-style query against the sink. The remote API only
// supports substring search, so callers must exact-match the results.
type PageFilter struct {
	Property string
	Contains string
}

// TriggerKind distinguishes the entry points into the pipeline.
type TriggerKind string

const (
	TriggerWebhook TriggerKind = "webhook"
	TriggerManual  TriggerKind = "manual"
	TriggerRescan  TriggerKind = "rescan"
	TriggerScan    TriggerKind = "scan" // periodic
)

// Trigger is one request to reconcile folders (or a single file) against the
// system-of-record. All entry points produce the same shape.
type Trigger struct {
	ID         string
	Kind       TriggerKind
	Backend    Backend // empty = all configured backends
	Path       string  // set for manual single-file triggers
	Force      bool    // overwrite an existing page
	ReceivedAt time.Time
}

// Outcome classifies what happened to one file.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// FileResult is the per-file record of a pipeline pass.
type FileResult struct {
	Identity FileIdentity
	Name     string
	Outcome  Outcome
	Reason   string
	Page     *RemotePageRef
}

// Transcription is the raw speech-to-text service response.
type Transcription struct {
	Text            string
	DurationSeconds float64
	Language        string
}
