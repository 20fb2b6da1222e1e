package pipeline

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// Scheduler enqueues a periodic scan so files missed by webhooks (or dropped
// from a full queue) are eventually reconciled anyway.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.SugaredLogger
}

func NewScheduler(orch *Orchestrator, everyMinutes int, log *zap.SugaredLogger) (*Scheduler, error) {
	if everyMinutes <= 0 {
		everyMinutes = 15
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %dm", everyMinutes), func() {
		orch.Enqueue(models.Trigger{Kind: models.TriggerScan})
	})
	if err != nil {
		return nil, fmt.Errorf("schedule periodic scan: %w", err)
	}
	log.Infow("periodic scan scheduled", "every_minutes", everyMinutes)
	return &Scheduler{cron: c, log: log}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling; a scan already enqueued still runs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
