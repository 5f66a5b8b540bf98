package janitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscied/orchestra/pkg/blobstore"
	"github.com/oscied/orchestra/pkg/broker"
	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/config"
	"github.com/oscied/orchestra/pkg/core"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

type fixture struct {
	core  *core.Core
	store storage.Store
	user  *types.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.RootSecret = "root-pw"
	cfg.NodeSecret = "node-pw"
	cfg.Mock = true

	store := storage.NewMemStore()
	blobs := blobstore.NewMock(blobstore.Layout{Path: "/mnt/storage", Address: "fs", Mountpoint: "vol"})
	c := core.New(cfg, store, broker.NewMockQueue(), blobs, cluster.NewRegistry(), nil, nil)

	user := &types.User{ID: types.NewID(), FirstName: "Ada", LastName: "Lovelace", Mail: "ada@example.com"}
	require.NoError(t, store.SaveUser(user))
	return &fixture{core: c, store: store, user: user}
}

func (f *fixture) addMedia(t *testing.T, title, parentID string, status types.MediaStatus, addDate string) *types.Media {
	t.Helper()
	media := &types.Media{
		ID: types.NewID(), UserID: f.user.ID, ParentID: parentID,
		Filename: title + ".mp4", URI: "glusterfs://fs/vol/" + types.NewID(),
		Metadata: map[string]any{"title": title},
		Status:   status,
	}
	if addDate != "" {
		media.Metadata["add_date"] = addDate
	}
	require.NoError(t, f.store.SaveMedia(media))
	return media
}

func (f *fixture) addProgressTask(t *testing.T, mediaOutID, eta string) *types.TransformTask {
	t.Helper()
	task := &types.TransformTask{
		ID: types.NewID(), UserID: f.user.ID, MediaInID: types.NewID(),
		MediaOutID: mediaOutID, ProfileID: types.NewID(), Status: types.TaskProgress,
		Statistic: map[string]any{"eta_time": eta},
	}
	require.NoError(t, f.store.SaveTransformTask(task))
	return task
}

func TestJanitorRevokesStalledTask(t *testing.T) {
	f := newFixture(t)
	parent := f.addMedia(t, "Input", "", types.MediaReady, "")
	out := f.addMedia(t, "Output", parent.ID, types.MediaPending, "")
	task := f.addProgressTask(t, out.ID, "00:05:00")

	j := New(f.core, time.Minute, 0, time.Hour, 0)

	// The first pass only records the eta, the second sees it unchanged
	// past the (zero) stall window and revokes.
	j.CleanupOnce()
	got, err := f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskProgress, got.Status)

	j.CleanupOnce()
	got, err = f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskRevoked, got.Status)

	media, err := f.store.GetMedia(storage.ByID(out.ID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaDeleted, media.Status)
}

func TestJanitorSparesAdvancingTask(t *testing.T) {
	f := newFixture(t)
	parent := f.addMedia(t, "Input", "", types.MediaReady, "")
	out := f.addMedia(t, "Output", parent.ID, types.MediaPending, "")
	task := f.addProgressTask(t, out.ID, "00:05:00")

	j := New(f.core, time.Minute, 0, time.Hour, 0)
	j.CleanupOnce()

	// The worker reported progress, the stall clock restarts.
	task.AddStatistic("eta_time", "00:04:00", true)
	require.NoError(t, f.store.SaveTransformTask(task))
	j.CleanupOnce()

	got, err := f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskProgress, got.Status)
}

func TestJanitorDeletesOrphanMedia(t *testing.T) {
	f := newFixture(t)
	parent := f.addMedia(t, "Input", "", types.MediaReady, "")
	orphan := f.addMedia(t, "Orphan", parent.ID, types.MediaPending, "")
	upload := f.addMedia(t, "Upload", "", types.MediaPending, "")

	j := New(f.core, time.Minute, time.Hour, 0, 0)
	j.CleanupOnce()
	j.CleanupOnce()

	got, err := f.store.GetMedia(storage.ByID(orphan.ID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaDeleted, got.Status)

	// Uploads without a parent are left alone.
	got, err = f.store.GetMedia(storage.ByID(upload.ID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaPending, got.Status)
}

func TestJanitorSparesMediaWithLiveTask(t *testing.T) {
	f := newFixture(t)
	parent := f.addMedia(t, "Input", "", types.MediaReady, "")
	out := f.addMedia(t, "Output", parent.ID, types.MediaPending, "")
	f.addProgressTask(t, out.ID, "00:05:00")

	// The stall window is long enough that the task survives both passes.
	j := New(f.core, time.Minute, time.Hour, 0, 0)
	j.CleanupOnce()
	j.CleanupOnce()

	got, err := f.store.GetMedia(storage.ByID(out.ID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaPending, got.Status)
}

func TestJanitorBoundsOutputMedias(t *testing.T) {
	f := newFixture(t)
	parent := f.addMedia(t, "Input", "", types.MediaReady, "2026-08-20 08:00")

	var outputs []*types.Media
	for i := 0; i < 4; i++ {
		date := fmt.Sprintf("2026-08-2%d 10:00", i)
		outputs = append(outputs, f.addMedia(t, fmt.Sprintf("Output %d", i), parent.ID, types.MediaReady, date))
	}

	j := New(f.core, time.Minute, time.Hour, time.Hour, 2)
	j.CleanupOnce()

	// The two oldest outputs go, the input and newest outputs stay.
	for i, media := range outputs {
		got, err := f.store.GetMedia(storage.ByID(media.ID))
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, types.MediaDeleted, got.Status, "output %d", i)
		} else {
			assert.Equal(t, types.MediaReady, got.Status, "output %d", i)
		}
	}
	got, err := f.store.GetMedia(storage.ByID(parent.ID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaReady, got.Status)
}
