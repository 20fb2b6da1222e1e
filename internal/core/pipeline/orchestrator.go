package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/extract"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/journal"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// InsightService derives the published insight from extracted text. It never
// fails; degraded model availability yields fallback content.
type InsightService interface {
	Generate(ctx context.Context, text, filename string) *models.InsightResult
}

// PagePublisher is the sink-side contract the orchestrator drives.
type PagePublisher interface {
	FindExisting(ctx context.Context, shareURL, name string) (*models.RemotePageRef, error)
	CreateOrUpdate(ctx context.Context, rec *models.PublishRecord, existing *models.RemotePageRef, force bool) (*models.RemotePageRef, error)
}

// Options are the orchestrator tuning knobs.
type Options struct {
	TmpDir          string
	MaxFileBytes    int64
	FileParallelism int
	QueueSize       int
}

// Orchestrator runs the reconciliation pipeline. Triggers (webhook, manual,
// rescan, periodic scan) all land on one queue; workers drain it and walk
// each configured folder through list, classify, filter, dedup, and the
// per-file stages. Per-file failures never abort sibling files.
type Orchestrator struct {
	sources   map[models.Backend]core.SourceClient
	folders   map[models.Backend][]string
	extractor core.Extractor
	insights  InsightService
	publisher PagePublisher
	guard     *Guard
	budget    *DailyBudget
	validator *Validator
	journal   *journal.Journal
	opts      Options

	jobs chan models.Trigger
	log  *zap.SugaredLogger

	mu      sync.Mutex
	lastRun time.Time
}

func NewOrchestrator(
	extractor core.Extractor,
	insights InsightService,
	publisher PagePublisher,
	guard *Guard,
	budget *DailyBudget,
	validator *Validator,
	jnl *journal.Journal,
	opts Options,
	log *zap.SugaredLogger,
) *Orchestrator {
	if opts.FileParallelism <= 0 {
		opts.FileParallelism = 3
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.TmpDir == "" {
		opts.TmpDir = os.TempDir()
	}
	return &Orchestrator{
		sources:   make(map[models.Backend]core.SourceClient),
		folders:   make(map[models.Backend][]string),
		extractor: extractor,
		insights:  insights,
		publisher: publisher,
		guard:     guard,
		budget:    budget,
		validator: validator,
		journal:   jnl,
		opts:      opts,
		jobs:      make(chan models.Trigger, opts.QueueSize),
		log:       log,
	}
}

// RegisterSource attaches a configured backend and the folders to watch on
// it. Backends that failed to configure are simply never registered; the
// orchestrator runs degraded rather than crashing.
func (o *Orchestrator) RegisterSource(src core.SourceClient, folders []string) {
	o.sources[src.Backend()] = src
	o.folders[src.Backend()] = folders
}

// Enqueue submits a trigger without blocking. A full queue drops the trigger;
// the next periodic scan will observe the same folder state anyway.
func (o *Orchestrator) Enqueue(trig models.Trigger) bool {
	if trig.ID == "" {
		trig.ID = uuid.New().String()
	}
	if trig.ReceivedAt.IsZero() {
		trig.ReceivedAt = time.Now()
	}
	select {
	case o.jobs <- trig:
		return true
	default:
		o.log.Warnw("trigger queue full, dropping", "kind", trig.Kind, "backend", trig.Backend)
		return false
	}
}

// Start launches the worker pool. Workers exit when ctx is done.
func (o *Orchestrator) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			for {
				select {
				case <-ctx.Done():
					return
				case trig := <-o.jobs:
					o.handleTrigger(ctx, trig, worker)
				}
			}
		}(i)
	}
	o.log.Infow("pipeline workers started", "workers", numWorkers)
}

func (o *Orchestrator) handleTrigger(ctx context.Context, trig models.Trigger, worker int) {
	started := time.Now()
	o.log.Infow("trigger received",
		"trigger", trig.ID, "kind", trig.Kind, "backend", trig.Backend, "worker", worker)

	o.mu.Lock()
	o.lastRun = started
	o.mu.Unlock()

	var results []models.FileResult
	if trig.Path != "" {
		results = o.processSingle(ctx, trig)
	} else {
		results = o.reconcile(ctx, trig)
	}

	var processed, skipped, failed int
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeProcessed:
			processed++
		case models.OutcomeSkipped:
			skipped++
		case models.OutcomeFailed:
			failed++
		}
		o.journal.Record(ctx, r)
	}
	o.log.Infow("trigger done",
		"trigger", trig.ID, "processed", processed, "skipped", skipped,
		"failed", failed, "took", time.Since(started))
}

// reconcile walks every watched folder on the triggering backend (or all
// backends) and processes what it finds.
func (o *Orchestrator) reconcile(ctx context.Context, trig models.Trigger) []models.FileResult {
	var results []models.FileResult
	for backend, src := range o.sources {
		if trig.Backend != "" && trig.Backend != backend {
			continue
		}
		for _, folder := range o.folders[backend] {
			entries, err := src.ListFolder(ctx, folder)
			if err != nil {
				o.log.Errorw("folder listing failed",
					"trigger", trig.ID, "backend", backend, "folder", folder, "err", err)
				continue
			}
			kept, rejected := o.filterEntries(entries)
			results = append(results, rejected...)
			results = append(results, o.processBatch(ctx, src, kept, trig.Force)...)
		}
	}
	return results
}

// processSingle handles a manual trigger naming one file.
func (o *Orchestrator) processSingle(ctx context.Context, trig models.Trigger) []models.FileResult {
	src, ok := o.sources[trig.Backend]
	if !ok {
		o.log.Errorw("manual trigger for unconfigured backend",
			"trigger", trig.ID, "backend", trig.Backend)
		return nil
	}

	entry := models.RawFileEntry{
		Backend: trig.Backend,
		Name:    path.Base(trig.Path),
		Path:    trig.Path,
	}
	kept, rejected := o.filterEntries([]models.RawFileEntry{entry})
	if len(kept) == 0 {
		if len(rejected) > 0 {
			return rejected
		}
		return []models.FileResult{{
			Identity: entry.Identity(),
			Name:     entry.Name,
			Outcome:  models.OutcomeSkipped,
			Reason:   "rejected by filtering policy",
		}}
	}
	return []models.FileResult{o.processEntry(ctx, src, kept[0], trig.Force)}
}

// filterEntries applies the policy gates: folders out, unknown families out,
// size ceiling, and filename checks. Folder/extension/size drops are routine
// noise and only logged; filename-pattern rejections come back as skipped
// results so the journal and status surface record them with the reason.
func (o *Orchestrator) filterEntries(entries []models.RawFileEntry) ([]models.RawFileEntry, []models.FileResult) {
	var kept []models.RawFileEntry
	var rejected []models.FileResult
	for _, e := range entries {
		switch {
		case e.IsFolder:
		case extract.Classify(e.Name) == models.FamilyUnknown:
			o.log.Debugw("unsupported extension", "file", e.Name)
		case o.opts.MaxFileBytes > 0 && e.Size > o.opts.MaxFileBytes:
			o.log.Infow("file exceeds size ceiling", "file", e.Name, "size", e.Size)
		default:
			if reason := o.validator.CheckName(e.Name); reason != "" {
				o.log.Infow("filename rejected", "file", e.Name, "reason", reason)
				rejected = append(rejected, models.FileResult{
					Identity: e.Identity(),
					Name:     e.Name,
					Outcome:  models.OutcomeSkipped,
					Reason:   reason,
				})
				continue
			}
			kept = append(kept, e)
		}
	}
	return kept, rejected
}

// processBatch runs the per-file stage with bounded parallelism. Each file's
// result is independent; a failing file never stops its siblings.
func (o *Orchestrator) processBatch(ctx context.Context, src core.SourceClient, entries []models.RawFileEntry, force bool) []models.FileResult {
	results := make([]models.FileResult, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.FileParallelism)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = o.processEntry(gctx, src, entry, force)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures live in results

	return results
}

// processEntry takes one file through lock, budget, sink dedup, download,
// extract, analyze, validate, publish. The guard is released and the local
// file removed on every exit path.
func (o *Orchestrator) processEntry(ctx context.Context, src core.SourceClient, entry models.RawFileEntry, force bool) (result models.FileResult) {
	identity := entry.Identity()
	result = models.FileResult{Identity: identity, Name: entry.Name}

	fail := func(reason string, err error) models.FileResult {
		o.log.Errorw("file processing failed", "file", entry.Name, "reason", reason, "err", err)
		result.Outcome = models.OutcomeFailed
		result.Reason = reason
		return result
	}
	skip := func(reason string) models.FileResult {
		result.Outcome = models.OutcomeSkipped
		result.Reason = reason
		return result
	}

	if !o.guard.TryAcquire(identity.Key()) {
		// The common case under webhook storms; not worth a log line each.
		return skip("already in flight or recently processed")
	}
	defer o.guard.Release(identity.Key())

	if !o.budget.Allow() {
		return fail("daily call budget exhausted", nil)
	}

	shareURL, err := src.ShareLink(ctx, entry.Path)
	if err != nil {
		o.log.Warnw("share link unavailable", "file", entry.Name, "err", err)
		shareURL = ""
	}

	// The sink is the authoritative dedup check; it survives restarts where
	// the in-memory guard does not.
	existing, err := o.publisher.FindExisting(ctx, shareURL, entry.Name)
	if err != nil {
		return fail("sink lookup failed", err)
	}
	if existing != nil && !force {
		result.Page = existing
		return skip("already published")
	}

	data, err := src.Download(ctx, entry.Path)
	if err != nil {
		return fail("download failed", err)
	}

	sanitized := SanitizeFilename(entry.Name)
	localPath := filepath.Join(o.opts.TmpDir, fmt.Sprintf("%s_%s", uuid.New().String(), sanitized))
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return fail("staging to disk failed", err)
	}
	defer func() {
		if rerr := os.Remove(localPath); rerr != nil && !os.IsNotExist(rerr) {
			o.log.Warnw("local cleanup failed", "path", localPath, "err", rerr)
		}
	}()

	file := &models.DownloadedFile{
		Identity:      identity,
		LocalPath:     localPath,
		OriginalName:  entry.Name,
		SanitizedName: sanitized,
		SizeBytes:     int64(len(data)),
		ShareURL:      shareURL,
	}
	family := extract.Classify(sanitized)

	extraction, err := o.extractor.Extract(ctx, file, family)
	if err != nil {
		return fail("extraction failed", err)
	}

	insight := o.insights.Generate(ctx, extraction.Text, sanitized)

	if reason := o.validator.CheckResult(extraction, insight); reason != "" {
		o.log.Infow("validation gate rejected result", "file", entry.Name, "reason", reason)
		return skip(reason)
	}

	rec := &models.PublishRecord{
		File:        *file,
		Family:      family,
		Extraction:  *extraction,
		Insight:     *insight,
		ProcessedAt: time.Now(),
	}
	ref, err := o.publisher.CreateOrUpdate(ctx, rec, existing, force)
	if err != nil {
		return fail("publish failed", err)
	}

	o.log.Infow("file published",
		"file", entry.Name, "page", ref.ID, "method", extraction.Method, "family", family)
	result.Outcome = models.OutcomeProcessed
	result.Page = ref
	return result
}

// Status is the point-in-time view served by the status endpoint.
type Status struct {
	QueueDepth int         `json:"queue_depth"`
	Guard      GuardStats  `json:"guard"`
	Budget     BudgetStats `json:"budget"`
	LastRun    time.Time   `json:"last_run,omitempty"`
	Backends   []string    `json:"backends"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	lastRun := o.lastRun
	o.mu.Unlock()

	backends := make([]string, 0, len(o.sources))
	for b := range o.sources {
		backends = append(backends, string(b))
	}
	return Status{
		QueueDepth: len(o.jobs),
		Guard:      o.guard.Stats(),
		Budget:     o.budget.Stats(),
		LastRun:    lastRun,
		Backends:   backends,
	}
}
