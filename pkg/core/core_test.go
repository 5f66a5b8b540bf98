package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscied/orchestra/pkg/blobstore"
	"github.com/oscied/orchestra/pkg/broker"
	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/config"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

type fixture struct {
	core  *Core
	store storage.Store
	queue *broker.MockQueue
	blobs *blobstore.Mock

	user    *types.User
	media   *types.Media
	profile *types.TransformProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = "http://orchestrator.example.com"
	cfg.RootSecret = "root-pw"
	cfg.NodeSecret = "node-pw"
	cfg.Mock = true

	store := storage.NewMemStore()
	queue := broker.NewMockQueue()
	blobs := blobstore.NewMock(blobstore.Layout{
		Path: "/mnt/storage", Address: "fs.example.com", Mountpoint: "medias_volume",
	})
	f := &fixture{
		core:  New(cfg, store, queue, blobs, cluster.NewRegistry(), nil, nil),
		store: store,
		queue: queue,
		blobs: blobs,
	}

	f.user = &types.User{ID: types.NewID(), FirstName: "Ada", LastName: "Lovelace", Mail: "ada@example.com"}
	require.NoError(t, store.SaveUser(f.user))

	f.media = &types.Media{
		ID: types.NewID(), UserID: f.user.ID, Filename: "movie.mp4",
		Metadata: map[string]any{"title": "Movie", "duration": "01:30:00"},
		Status:   types.MediaReady,
	}
	f.media.URI = blobs.MediaURI(f.user.ID, f.media.ID, f.media.Filename)
	require.NoError(t, store.SaveMedia(f.media))

	f.profile = &types.TransformProfile{ID: types.NewID(), Title: "To MP4", EncoderName: types.EncoderFFmpeg}
	require.NoError(t, store.SaveProfile(f.profile))
	return f
}

func (f *fixture) launchTransform(t *testing.T) *types.TransformTask {
	t.Helper()
	task, err := f.core.LaunchTransformTask(f.user.ID, f.media.ID, f.profile.ID,
		"movie.mp4", map[string]any{"title": "Movie (transformed)"}, false,
		"transform_private", "http://orchestrator.example.com/transform/callback")
	require.NoError(t, err)
	return task
}

func TestLaunchTransformTask(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)

	sub := f.queue.Last()
	require.NotNil(t, sub)
	assert.Equal(t, "transform_private", sub.Queue)
	assert.Equal(t, broker.JobTransform, sub.Name)
	assert.Equal(t, sub.TaskID, task.ID, "task id comes from the broker")

	assert.Equal(t, types.TaskPending, task.Status)
	assert.NotEmpty(t, task.Statistic["add_date"])

	out, err := f.store.GetMedia(storage.ByID(task.MediaOutID))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, types.MediaPending, out.Status)
	assert.Equal(t, f.media.ID, out.ParentID)
	assert.NotEqual(t, f.media.URI, out.URI)
}

func TestLaunchTransformTaskRejections(t *testing.T) {
	f := newFixture(t)

	deleted := &types.Media{ID: types.NewID(), UserID: f.user.ID, Filename: "gone.mp4",
		URI: "glusterfs://h/v/gone", Metadata: map[string]any{"title": "Gone"}, Status: types.MediaDeleted}
	require.NoError(t, f.store.SaveMedia(deleted))
	noDuration := &types.Media{ID: types.NewID(), UserID: f.user.ID, Filename: "short.mp4",
		URI: "glusterfs://h/v/short", Metadata: map[string]any{"title": "Short"}, Status: types.MediaReady}
	require.NoError(t, f.store.SaveMedia(noDuration))
	dash := &types.TransformProfile{ID: types.NewID(), Title: "To DASH", EncoderName: types.EncoderDashcast}
	require.NoError(t, f.store.SaveProfile(dash))

	tests := []struct {
		name     string
		userID   string
		mediaID  string
		profile  string
		filename string
		queue    string
		kind     types.Kind
	}{
		{"unknown user", types.NewID(), f.media.ID, f.profile.ID, "m.mp4", "transform_private", types.ErrNotFound},
		{"unknown media", f.user.ID, types.NewID(), f.profile.ID, "m.mp4", "transform_private", types.ErrNotFound},
		{"unknown profile", f.user.ID, f.media.ID, types.NewID(), "m.mp4", "transform_private", types.ErrNotFound},
		{"unknown queue", f.user.ID, f.media.ID, f.profile.ID, "m.mp4", "nope", types.ErrNotFound},
		{"deleted input", f.user.ID, deleted.ID, f.profile.ID, "m.mp4", "transform_private", types.ErrInvalid},
		{"empty filename", f.user.ID, f.media.ID, f.profile.ID, "", "transform_private", types.ErrInvalid},
		{"dash without duration", f.user.ID, noDuration.ID, dash.ID, "m.mp4", "transform_private", types.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.LaunchTransformTask(tt.userID, tt.mediaID, tt.profile,
				tt.filename, nil, false, tt.queue, "http://cb")
			require.Error(t, err)
			assert.Equal(t, tt.kind, types.KindOf(err))
		})
	}
	assert.Empty(t, f.queue.Submissions, "rejected launches must not reach the broker")
}

func TestLaunchTransformTaskBrokerDown(t *testing.T) {
	f := newFixture(t)
	f.queue.FailNext = true

	_, err := f.core.LaunchTransformTask(f.user.ID, f.media.ID, f.profile.ID,
		"movie.mp4", nil, false, "transform_private", "http://cb")
	require.Error(t, err)
	assert.Equal(t, types.ErrTransient, types.KindOf(err))

	// The placeholder output media created before the submit is rolled back.
	n, err := f.store.CountMedias(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestTransformCallbackProgressAndSuccess(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)

	require.NoError(t, f.core.TransformCallback(task.ID, CallbackProgress,
		map[string]any{"percent": 42, "eta_time": "00:01:00", "ignored": "x"}))
	got, err := f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskProgress, got.Status)
	assert.EqualValues(t, 42, got.Statistic["percent"])
	assert.NotContains(t, got.Statistic, "ignored")

	require.NoError(t, f.core.TransformCallback(task.ID, CallbackSuccess, nil))
	got, err = f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskSuccess, got.Status)

	out, err := f.store.GetMedia(storage.ByID(task.MediaOutID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaReady, out.Status)
	assert.Contains(t, out.Metadata, "size")
	assert.Contains(t, out.Metadata, "add_date")
}

func TestTransformCallbackRecordsStartAndSizes(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)

	// The first progress report stamps start_date and carries the input
	// probe results the worker measured.
	require.NoError(t, f.core.TransformCallback(task.ID, CallbackProgress,
		map[string]any{"percent": 5, "media_in_size": 1048576, "media_in_duration": "01:30:00"}))
	got, err := f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, got.Statistic["start_date"])
	assert.EqualValues(t, 1048576, got.Statistic["media_in_size"])
	assert.Equal(t, "01:30:00", got.Statistic["media_in_duration"])
	startDate := got.Statistic["start_date"]

	// Later reports keep the first stamp.
	require.NoError(t, f.core.TransformCallback(task.ID, CallbackProgress,
		map[string]any{"percent": 50}))
	got, err = f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, startDate, got.Statistic["start_date"])

	// Completion mirrors the output probe into the statistics.
	require.NoError(t, f.core.TransformCallback(task.ID, CallbackSuccess, nil))
	got, err = f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Contains(t, got.Statistic, "media_out_size")
	assert.Contains(t, got.Statistic, "media_out_duration")
}

func TestTransformCallbackIdempotent(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)
	require.NoError(t, f.core.TransformCallback(task.ID, CallbackSuccess, nil))

	// A duplicate delivery on a finished task is acknowledged unchanged.
	require.NoError(t, f.core.TransformCallback(task.ID, "worker crashed", nil))
	got, err := f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskSuccess, got.Status)
	assert.NotContains(t, got.Statistic, "error_details")
}

func TestTransformCallbackFailure(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)

	require.NoError(t, f.core.TransformCallback(task.ID, "ffmpeg exited 1\nno such codec", nil))
	got, err := f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailure, got.Status)
	assert.Equal(t, `ffmpeg exited 1\nno such codec`, got.Statistic["error_details"])

	out, err := f.store.GetMedia(storage.ByID(task.MediaOutID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaDeleted, out.Status)
}

func TestRevokeTransformTask(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)

	require.NoError(t, f.core.RevokeTransformTask(task.ID, true, false, true))
	assert.Contains(t, f.queue.Revoked, task.ID)

	got, err := f.store.GetTransformTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskRevoked, got.Status)
	assert.True(t, got.Revoked)

	out, err := f.store.GetMedia(storage.ByID(task.MediaOutID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaDeleted, out.Status)

	err = f.core.RevokeTransformTask(task.ID, true, false, true)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))
}

func TestLaunchPublisherTaskGuards(t *testing.T) {
	f := newFixture(t)

	pending := &types.Media{ID: types.NewID(), UserID: f.user.ID, Filename: "p.mp4",
		URI: "glusterfs://h/v/p", Metadata: map[string]any{"title": "Pending"}, Status: types.MediaPending}
	require.NoError(t, f.store.SaveMedia(pending))
	_, err := f.core.LaunchPublisherTask(f.user.ID, pending.ID, false, "publisher_private", "http://cb")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))

	published := &types.Media{ID: types.NewID(), UserID: f.user.ID, Filename: "pub.mp4",
		URI: "glusterfs://h/v/pub", Metadata: map[string]any{"title": "Published"},
		Status:     types.MediaReady,
		PublicURIs: map[string]string{types.NewID(): "http://worker/pub.mp4"}}
	require.NoError(t, f.store.SaveMedia(published))
	_, err = f.core.LaunchPublisherTask(f.user.ID, published.ID, false, "publisher_private", "http://cb")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))

	_, err = f.core.LaunchPublisherTask(f.user.ID, f.media.ID, false, "publisher_private", "http://cb")
	require.NoError(t, err)

	// A second launch while the first is still live is refused.
	_, err = f.core.LaunchPublisherTask(f.user.ID, f.media.ID, false, "publisher_private", "http://cb")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))
}

func TestPublisherLifecycle(t *testing.T) {
	f := newFixture(t)
	task, err := f.core.LaunchPublisherTask(f.user.ID, f.media.ID, false, "publisher_private", "http://cb")
	require.NoError(t, err)
	assert.Equal(t, broker.JobPublish, f.queue.Last().Name)

	uri := "http://worker-3.example.com/medias/" + f.user.ID + "/" + f.media.ID + "/movie.mp4"
	require.NoError(t, f.core.PublisherCallback(task.ID, uri, CallbackSuccess))

	got, err := f.store.GetPublisherTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskSuccess, got.Status)
	assert.Equal(t, uri, got.PublishURI)

	media, err := f.store.GetMedia(storage.ByID(f.media.ID))
	require.NoError(t, err)
	assert.Equal(t, uri, media.PublicURIs[task.ID])

	// Revoking a served publication sends an unpublish job to the worker
	// holding the copy and parks the task in REVOKING.
	require.NoError(t, f.core.RevokePublisherTask(task.ID, "http://cb/revoke", true, false))
	sub := f.queue.Last()
	assert.Equal(t, broker.JobUnpublish, sub.Name)
	assert.Equal(t, "worker-3.example.com", sub.Queue)

	got, err = f.store.GetPublisherTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskRevoking, got.Status)
	assert.Equal(t, sub.TaskID, got.RevokeTaskID)

	require.NoError(t, f.core.PublisherRevokeCallback(got.RevokeTaskID, CallbackSuccess))
	got, err = f.store.GetPublisherTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskRevoked, got.Status)

	media, err = f.store.GetMedia(storage.ByID(f.media.ID))
	require.NoError(t, err)
	assert.NotContains(t, media.PublicURIs, task.ID)
}

func TestRevokeUnstartedPublisherTask(t *testing.T) {
	f := newFixture(t)
	task, err := f.core.LaunchPublisherTask(f.user.ID, f.media.ID, false, "publisher_private", "http://cb")
	require.NoError(t, err)

	require.NoError(t, f.core.RevokePublisherTask(task.ID, "http://cb/revoke", true, false))
	got, err := f.store.GetPublisherTask(storage.ByID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, types.TaskRevoked, got.Status)
	assert.Contains(t, f.queue.Revoked, task.ID)

	err = f.core.RevokePublisherTask(task.ID, "http://cb/revoke", true, false)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))
}

func TestDeleteMediaRefusedWhileInUse(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)

	err := f.core.DeleteMedia(f.media.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))

	require.NoError(t, f.core.TransformCallback(task.ID, CallbackSuccess, nil))
	require.NoError(t, f.core.DeleteMedia(f.media.ID))

	got, err := f.store.GetMedia(storage.ByID(f.media.ID))
	require.NoError(t, err)
	assert.Equal(t, types.MediaDeleted, got.Status)
	assert.Contains(t, f.blobs.Deleted, f.media.ID)
}

func TestDeleteProfileRefusedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	task := f.launchTransform(t)

	err := f.core.DeleteProfile(f.profile.ID)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.KindOf(err))

	require.NoError(t, f.core.TransformCallback(task.ID, CallbackSuccess, nil))
	require.NoError(t, f.core.DeleteProfile(f.profile.ID))
}

func TestSaveUserHashesSecret(t *testing.T) {
	f := newFixture(t)
	user := &types.User{FirstName: "Alan", LastName: "Turing", Mail: "alan@example.com", Secret: "plain"}
	saved, err := f.core.SaveUser(user, true)
	require.NoError(t, err)
	assert.Empty(t, saved.Secret, "returned user must be sanitized")

	stored, err := f.store.GetUser(storage.ByID(saved.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Secret)
	assert.NotEqual(t, "plain", stored.Secret)
}
