package history

import (
	"path/filepath"
	"testing"

	"qcar/environment"
	"qcar/reinforcement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStartRun(t *testing.T) {
	store := openTestStore(t)
	cfg := reinforcement.DefaultTrainingConfig()

	runID, err := store.StartRun(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, cfg.Track.Path, run.Track)
	assert.Equal(t, cfg.Episodes, run.Episodes)
	assert.NotZero(t, run.StartedAt)

	other, err := store.StartRun(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, runID, other)

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.ElementsMatch(t, []string{runID, other}, []string{runs[0].RunID, runs[1].RunID})
	assert.LessOrEqual(t, runs[0].StartedAt, runs[1].StartedAt)
}

func TestGetRunUnknown(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun("missing")
	require.ErrorIs(t, err, ErrUnknownRun)
}

func TestRecordEpisodes(t *testing.T) {
	store := openTestStore(t)
	runID, err := store.StartRun(reinforcement.DefaultTrainingConfig())
	require.NoError(t, err)

	want := []reinforcement.EpisodeResult{
		{Episode: 0, Reward: -10, FinalReward: -12, Ticks: 4, Outcome: environment.Collision, Epsilon: 0.9, Alpha: 0.8},
		{Episode: 1, Reward: 9995, FinalReward: 9995, Ticks: 40, Outcome: environment.Stall, Finished: true, Epsilon: 0.5, Alpha: 0.4},
	}
	// Insert out of order; Episodes sorts by index.
	require.NoError(t, store.RecordEpisode(runID, want[1]))
	require.NoError(t, store.RecordEpisode(runID, want[0]))

	got, err := store.Episodes(runID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("duplicate episode is rejected", func(t *testing.T) {
		assert.Error(t, store.RecordEpisode(runID, want[0]))
	})

	t.Run("episodes require a known run", func(t *testing.T) {
		assert.Error(t, store.RecordEpisode("missing", want[0]))
	})

	t.Run("unknown run has no episodes", func(t *testing.T) {
		got, err := store.Episodes("missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
