package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/social-mentions-bot/internal/config"
	"github.com/brandpulse/social-mentions-bot/internal/models"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Store(ctx, "reports/2024-05-01/a.json", []byte(`{"id":"a"}`)))
	require.NoError(t, fs.Store(ctx, "other/b.json", []byte(`{}`)))

	data, err := fs.Retrieve(ctx, "reports/2024-05-01/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(data))

	names, err := fs.List(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/2024-05-01/a.json"}, names)

	require.NoError(t, fs.Delete(ctx, "reports/2024-05-01/a.json"))
	_, err = fs.Retrieve(ctx, "reports/2024-05-01/a.json")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestFileStorage_StaysInsideDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Store(ctx, "../../escape.json", []byte("x")))
	names, err := fs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"escape.json"}, names)

	assert.Error(t, fs.Store(ctx, "", []byte("x")))
}

func newReport(id string, started time.Time) *models.CycleReport {
	return &models.CycleReport{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Duration:   "2s",
		Fetch:      []models.PlatformOutcome{{Platform: "facebook", Fetched: 3, Inserted: 1}},
	}
}

func TestReportArchive_SaveListGet(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	archive := NewReportArchive(fs, 0)

	base := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	require.NoError(t, archive.Save(ctx, newReport("zzz", base)))
	require.NoError(t, archive.Save(ctx, newReport("aaa", base.Add(30*time.Second))))
	require.NoError(t, archive.Save(ctx, newReport("mmm", base.Add(2*time.Minute))))

	ids, err := archive.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mmm", "aaa", "zzz"}, ids)

	report, err := archive.Get(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "aaa", report.ID)
	require.Len(t, report.Fetch, 1)
	assert.Equal(t, 1, report.Fetch[0].Inserted)

	_, err = archive.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestReportArchive_PrunesOldest(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	archive := NewReportArchive(fs, 2)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, archive.Save(ctx, newReport(id, base.Add(time.Duration(i)*time.Minute))))
	}

	ids, err := archive.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2"}, ids)
}

func TestReportArchive_RequiresID(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, NewReportArchive(fs, 0).Save(context.Background(), &models.CycleReport{}))
	assert.Error(t, NewReportArchive(fs, 0).Save(context.Background(), nil))
}

func TestNewBackendFromConfig(t *testing.T) {
	backend, err := NewBackendFromConfig(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, backend)

	dir := t.TempDir()
	backend, err = NewBackendFromConfig(context.Background(), &config.Config{ArchiveDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, backend)
}
