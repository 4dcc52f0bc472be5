package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newBadgerCatalog(t *testing.T) *BadgerCatalog {
	t.Helper()
	catalog, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	return catalog
}

func TestBadgerCatalogLifecycle(t *testing.T) {
	ctx := context.Background()
	catalog := newBadgerCatalog(t)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, catalog.Create(ctx, &Record{
			ID:        id,
			Type:      TypeFull,
			FilePath:  "/backups/" + id + ".zip",
			FileSize:  int64(100 * (i + 1)),
			CreatedBy: "alice",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    StatusCompleted,
		}))
	}

	all, err := catalog.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	got, err := catalog.GetByID(ctx, "r2")
	require.NoError(t, err)
	require.Equal(t, int64(200), got.FileSize)
	require.True(t, got.CreatedAt.Equal(base.Add(time.Hour)))

	require.NoError(t, catalog.Delete(ctx, "r2"))
	_, err = catalog.GetByID(ctx, "r2")
	require.ErrorIs(t, err, ErrRecordNotFound)
	require.ErrorIs(t, catalog.Delete(ctx, "r2"), ErrRecordNotFound)

	all, err = catalog.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestBadgerCatalogRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	catalog := newBadgerCatalog(t)
	record := &Record{ID: "dup", Type: TypeFull, CreatedAt: time.Now()}

	require.NoError(t, catalog.Create(ctx, record))
	require.Error(t, catalog.Create(ctx, record))
}

func TestSortNewestFirstBreaksTiesByID(t *testing.T) {
	at := time.Now()
	records := []Record{{ID: "a", CreatedAt: at}, {ID: "c", CreatedAt: at}, {ID: "b", CreatedAt: at.Add(time.Second)}}

	SortNewestFirst(records)

	require.Equal(t, "b", records[0].ID)
	require.Equal(t, "c", records[1].ID)
	require.Equal(t, "a", records[2].ID)
}
