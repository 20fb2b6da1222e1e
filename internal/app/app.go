package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/config"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/extract"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/insight"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/journal"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/pipeline"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/sink"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/source"
)

// App owns every long-lived component. Construction is all-or-nothing for
// required pieces (insight provider, sink), but source backends degrade: a
// misconfigured backend is logged and left unregistered rather than
// crashing the process.
type App struct {
	Orchestrator *pipeline.Orchestrator
	Scheduler    *pipeline.Scheduler
	Server       *Server
	Journal      *journal.Journal

	gemini *insight.GeminiClient
	log    *zap.SugaredLogger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	bootCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	gemini, err := insight.NewGeminiClient(bootCtx, cfg.GeminiAPIKey, cfg.GenModel, cfg.VisionModel)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	whisper := insight.NewWhisperClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TranscribeModel, cfg.RequestTimeout)
	ai := insight.NewComposite(gemini, whisper)

	extractor := extract.NewFileExtractor(ai, log)
	generator := insight.NewGenerator(ai, cfg.MaxPromptTokens, log)

	notion := sink.NewNotionBackend(cfg.NotionToken, cfg.NotionDatabaseID, cfg.RequestTimeout)
	publisher := sink.NewPublisher(notion, log)

	jnl, err := journal.Open(bootCtx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	if jnl != nil {
		log.Infow("processing journal ready")
	}

	guard := pipeline.NewGuard(cfg.DedupRetention, cfg.DedupCapacity)
	budget := pipeline.NewDailyBudget(cfg.DailyCallBudget)
	validator := pipeline.NewValidator(pipeline.ValidationConfig{
		MinTextChars:       cfg.MinTextChars,
		MinSummaryChars:    cfg.MinSummaryChars,
		RepetitionRatio:    cfg.RepetitionRatio,
		RepetitionMaxWords: cfg.RepetitionMaxWords,
	})

	orch := pipeline.NewOrchestrator(
		extractor, generator, publisher, guard, budget, validator, jnl,
		pipeline.Options{
			TmpDir:          cfg.TmpDir,
			MaxFileBytes:    cfg.MaxFileSizeMB << 20,
			FileParallelism: cfg.FileParallelism,
		},
		log,
	)

	registerSources(bootCtx, cfg, orch, log)

	scheduler, err := pipeline.NewScheduler(orch, cfg.ScanEveryMin, log)
	if err != nil {
		return nil, err
	}

	notifs := pipeline.NewNotificationGuard(cfg.DedupRetention, cfg.DedupCapacity)
	server := NewServer(cfg, orch, notifs, jnl, log)

	return &App{
		Orchestrator: orch,
		Scheduler:    scheduler,
		Server:       server,
		Journal:      jnl,
		gemini:       gemini,
		log:          log,
	}, nil
}

// registerSources wires every backend whose credentials are present.
func registerSources(ctx context.Context, cfg *config.Config, orch *pipeline.Orchestrator, log *zap.SugaredLogger) {
	if cfg.DropboxConfigured() {
		dbx := source.NewDropboxClient(cfg.DropboxAppKey, cfg.DropboxAppSecret, cfg.DropboxRefreshToken, cfg.RequestTimeout, log)
		orch.RegisterSource(dbx, cfg.DropboxFolders)
		log.Infow("dropbox source registered", "folders", cfg.DropboxFolders)
	} else {
		log.Infow("dropbox source not configured, skipping")
	}

	if cfg.GDriveConfigured() {
		gd, err := source.NewGDriveClient(ctx, cfg.GDriveCredentialsFile, log)
		if err != nil {
			log.Errorw("google drive source unavailable", "err", err)
		} else {
			orch.RegisterSource(gd, cfg.GDriveFolderIDs)
			log.Infow("google drive source registered", "folders", cfg.GDriveFolderIDs)
		}
	} else {
		log.Infow("google drive source not configured, skipping")
	}

	if cfg.S3Configured() {
		s3c, err := source.NewS3Client(ctx, cfg.AwsAccessKey, cfg.AwsSecretKey, cfg.AwsRegion, cfg.BucketName)
		if err != nil {
			log.Errorw("s3 source unavailable", "err", err)
		} else {
			orch.RegisterSource(s3c, []string{cfg.BucketPrefix})
			log.Infow("s3 source registered", "bucket", cfg.BucketName, "prefix", cfg.BucketPrefix)
		}
	} else {
		log.Infow("s3 source not configured, skipping")
	}
}

// Run starts the worker pool, the periodic scanner, and the HTTP server.
// It blocks until the server exits.
func (a *App) Run(ctx context.Context, workers int) {
	a.Orchestrator.Start(ctx, workers)
	a.Scheduler.Start()
	a.Server.Start()
}

func (a *App) Close() {
	a.Scheduler.Stop()
	if a.Journal != nil {
		_ = a.Journal.Close()
	}
	if a.gemini != nil {
		_ = a.gemini.Close()
	}
}
