package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romgrid/internal/infra/persistence/sqlite"
	"romgrid/pkg/layout"
)

func TestSnapshotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "layout.db")

	store, err := sqlite.NewStore(path)
	require.NoError(t, err)
	b, err := store.Blocks().Create(ctx, layout.Block{ProjectID: "p1", Name: "main_code", Group: "code"}, "alice")
	require.NoError(t, err)
	three := 3
	p, err := store.Parts().Create(ctx, layout.Part{BlockID: b.ID, Name: "intro", Location: 0x8000, Size: 0x0C00, Type: "code", Index: &three}, "alice")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.NewStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	blocks, err := reopened.Blocks().GetByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, b.ID, blocks[0].ID)
	assert.Equal(t, "main_code", blocks[0].Name)

	parts, err := reopened.Parts().GetByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, p.ID, parts[0].ID)
	assert.Equal(t, int64(0x8000), parts[0].Location)
	require.NotNil(t, parts[0].Index)
	assert.Equal(t, 3, *parts[0].Index)
}

func TestSoftDeletePersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "layout.db")

	store, err := sqlite.NewStore(path)
	require.NoError(t, err)
	b, err := store.Blocks().Create(ctx, layout.Block{ProjectID: "p1", Name: "main_code"}, "alice")
	require.NoError(t, err)
	p, err := store.Parts().Create(ctx, layout.Part{BlockID: b.ID, Name: "intro", Location: 0x8000, Size: 1}, "alice")
	require.NoError(t, err)
	require.NoError(t, store.Parts().SoftDelete(ctx, p.ID, "alice"))
	require.NoError(t, store.Close())

	reopened, err := sqlite.NewStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()
	parts, err := reopened.Parts().GetByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, parts, "soft-deleted parts must not resurface after reopen")
}

func TestPushChannelDelegates(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "layout.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	var events []layout.Event
	sub, err := store.Subscribe(ctx, "p1", func(ev layout.Event) { events = append(events, ev) })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = store.Blocks().Create(ctx, layout.Block{ProjectID: "p1", Name: "main_code"}, "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, layout.EventInsert, events[0].Type)
}

func TestValidationFailuresDoNotPersist(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "layout.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	_, err = store.Blocks().Create(ctx, layout.Block{ProjectID: "p1"}, "alice")
	require.Error(t, err, "nameless block must be rejected")

	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count))
	assert.Zero(t, count, "rejected writes must not snapshot")
}
