package epochdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/epoch"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "epochs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRow(at time.Time) epoch.Row {
	return epoch.Row{
		Time:         at,
		EnmoTrunc:    0.042,
		XMean:        0.1, YMean: -0.2, ZMean: 0.97,
		XRange: 0.5, YRange: 0.4, ZRange: 0.3,
		XStd: 0.01, YStd: 0.02, ZStd: 0.03,
		TemperatureC: 21.5,
		Samples:      500,
		DataErrors:   1,
		ClipsBefore:  2,
		ClipsAfter:   0,
		RawSamples:   480,
	}
}

func TestOpenAppliesMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epochs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an already-migrated database must not fail.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRunRoundTrip(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.CreateRun("sample.CWA", `{"epoch_period":5}`)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	base := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.InsertEpoch(runID, testRow(base)))
	require.NoError(t, s.InsertEpoch(runID, testRow(base.Add(5*time.Second))))

	rows, err := s.ListByRun(runID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, base, rows[0].Time)
	assert.Equal(t, base.Add(5*time.Second), rows[1].Time)
	assert.InDelta(t, 0.042, rows[0].EnmoTrunc, 1e-12)
	assert.Equal(t, 500, rows[0].Samples)
	assert.Equal(t, 2, rows[0].ClipsBefore)
	assert.Equal(t, 480, rows[0].RawSamples)
}

func TestRunsAreIsolated(t *testing.T) {
	s := openTestStore(t)

	run1, err := s.CreateRun("a.CWA", "")
	require.NoError(t, err)
	run2, err := s.CreateRun("b.CWA", "")
	require.NoError(t, err)
	require.NotEqual(t, run1, run2)

	base := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.InsertEpoch(run1, testRow(base)))

	rows, err := s.ListByRun(run2)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
