package pipeline

import (
	"sync"
	"time"
)

// DailyBudget caps the number of files that may enter the paid stages
// (download, model calls, publish) per local calendar day. The counter
// resets on the first Allow after midnight.
type DailyBudget struct {
	mu    sync.Mutex
	limit int
	day   string
	used  int

	now func() time.Time
}

// BudgetStats is a point-in-time view for the status endpoint.
type BudgetStats struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

func NewDailyBudget(limit int) *DailyBudget {
	if limit <= 0 {
		limit = 200
	}
	return &DailyBudget{limit: limit, now: time.Now}
}

// Allow consumes one slot if the day's budget is not exhausted.
func (b *DailyBudget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Stats reports today's usage.
func (b *DailyBudget) Stats() BudgetStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	return BudgetStats{Limit: b.limit, Used: b.used, Remaining: b.limit - b.used}
}

func (b *DailyBudget) rollLocked() {
	today := b.now().Format("2006-01-02")
	if today != b.day {
		b.day = today
		b.used = 0
	}
}
