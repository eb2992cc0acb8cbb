package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/store"
	"github.com/warp/hours-engine/store/storetest"
)

func TestRetentionScheduler_PrunesOldRuns(t *testing.T) {
	// GIVEN: runs created 100, 10 and 1 days before now
	runs := store.NewMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var kept []string
	for _, age := range []int{100, 10, 1} {
		run := storetest.SampleRun(t, "")
		run.CreatedAt = now.AddDate(0, 0, -age)
		require.NoError(t, runs.SaveRun(t.Context(), run))
		if age < 30 {
			kept = append(kept, run.ID)
		}
	}

	rs := NewRetentionScheduler(runs, 30*24*time.Hour, nil)
	rs.now = func() time.Time { return now }

	// WHEN
	pruned, err := rs.RunNow(t.Context())

	// THEN: only the 100-day-old run goes
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	list, err := runs.ListRuns(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, kept, []string{list[0].ID, list[1].ID})
}

func TestRetentionScheduler_DisabledWithoutMaxAge(t *testing.T) {
	runs := store.NewMemory()
	run := storetest.SampleRun(t, "")
	run.CreatedAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, runs.SaveRun(t.Context(), run))

	rs := NewRetentionScheduler(runs, 0, nil)
	rs.Start()
	defer rs.Stop()

	pruned, err := rs.RunNow(t.Context())
	require.NoError(t, err)
	assert.Zero(t, pruned)
	assert.Nil(t, rs.ticker)
}

func TestRetentionScheduler_StartStop(t *testing.T) {
	runs := store.NewMemory()
	old := storetest.SampleRun(t, "")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, runs.SaveRun(t.Context(), old))

	rs := NewRetentionScheduler(runs, time.Hour, nil)
	rs.Start()

	// The first check runs right away in the background.
	assert.Eventually(t, func() bool {
		list, err := runs.ListRuns(t.Context())
		return err == nil && len(list) == 0
	}, 2*time.Second, 10*time.Millisecond)

	rs.Stop()
	rs.Stop()
}
