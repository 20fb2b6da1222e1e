package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyBudgetCeiling(t *testing.T) {
	b := NewDailyBudget(3)

	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow())
	}
	assert.False(t, b.Allow(), "fourth call exceeds the ceiling")

	stats := b.Stats()
	assert.Equal(t, 3, stats.Used)
	assert.Equal(t, 0, stats.Remaining)
}

func TestDailyBudgetMidnightReset(t *testing.T) {
	b := NewDailyBudget(1)
	now := time.Date(2024, 6, 1, 23, 59, 0, 0, time.Local)
	b.now = func() time.Time { return now }

	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	now = now.Add(2 * time.Minute) // crosses midnight
	assert.True(t, b.Allow(), "budget resets on the next local day")
}
