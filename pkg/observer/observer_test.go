package observer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/oscied/orchestra/pkg/capacity"
	"github.com/oscied/orchestra/pkg/cluster"
	"github.com/oscied/orchestra/pkg/metrics"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

func openStatsDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "statistics.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestServiceStatisticsRingBound(t *testing.T) {
	ring := NewServiceStatistics("amazon", types.ServiceTransform, 3)
	for i := 0; i < 5; i++ {
		ring.Append(Sample{Planned: i})
	}
	require.Len(t, ring.Samples, 3)
	assert.Equal(t, 2, ring.Samples[0].Planned, "oldest samples dropped")
	assert.Equal(t, 4, ring.Latest().Planned)
}

func TestServiceStatisticsPersistRestore(t *testing.T) {
	db := openStatsDB(t)

	ring := NewServiceStatistics("amazon", types.ServiceTransform, 10)
	ring.Append(Sample{Time: "2026-08-24 10:00", Planned: 2, Units: map[string]int{"started": 2}})
	ring.Append(Sample{Time: "2026-08-24 10:05", Planned: 3, Units: map[string]int{"started": 2, "pending": 1}})
	require.NoError(t, ring.Persist(db))

	restored := NewServiceStatistics("amazon", types.ServiceTransform, 10)
	require.NoError(t, restored.Restore(db))
	require.Len(t, restored.Samples, 2)
	assert.Equal(t, 3, restored.Latest().Planned)
	assert.Equal(t, 1, restored.Latest().Units["pending"])

	// Other rings see their own bucket only.
	other := NewServiceStatistics("amazon", types.ServicePublisher, 10)
	require.NoError(t, other.Restore(db))
	assert.Empty(t, other.Samples)
}

func TestServiceStatisticsRestoreTruncates(t *testing.T) {
	db := openStatsDB(t)

	big := NewServiceStatistics("amazon", types.ServiceTransform, 10)
	for i := 0; i < 10; i++ {
		big.Append(Sample{Planned: i})
	}
	require.NoError(t, big.Persist(db))

	small := NewServiceStatistics("amazon", types.ServiceTransform, 4)
	require.NoError(t, small.Restore(db))
	require.Len(t, small.Samples, 4)
	assert.Equal(t, 6, small.Samples[0].Planned)
}

func TestObserverSampleOnce(t *testing.T) {
	store := storage.NewMemStore()
	for _, status := range []types.TaskStatus{types.TaskPending, types.TaskProgress, types.TaskProgress} {
		task := &types.TransformTask{ID: types.NewID(), UserID: types.NewID(), MediaInID: types.NewID(),
			MediaOutID: types.NewID(), ProfileID: types.NewID(), Status: status}
		require.NoError(t, store.SaveTransformTask(task))
	}

	adapter := cluster.NewSimAdapter(0)
	require.NoError(t, adapter.EnsureNumUnits(context.Background(), types.ServiceTransform, 2))
	adapter.SetUnitState(types.ServiceTransform, 1, types.UnitError)

	table := capacity.NewEventsTable(map[int]map[string]int{0: {types.ServiceTransform: 2}}, 24, 1)
	obs := New("amazon", adapter, table, store, openStatsDB(t), 12, 50)
	obs.SampleOnce()

	sample := obs.Statistics(types.ServiceTransform).Latest()
	require.NotNil(t, sample)
	assert.Equal(t, 2, sample.Planned)
	assert.Equal(t, 1, sample.Units[string(types.UnitStarted)])
	assert.Equal(t, 1, sample.Units[string(types.UnitError)])
	assert.Equal(t, 1, sample.Tasks[string(types.TaskPending)])
	assert.Equal(t, 2, sample.Tasks[string(types.TaskProgress)])
	assert.Zero(t, sample.Tasks[string(types.TaskSuccess)])
}

func TestObserverRefreshesEntityGauges(t *testing.T) {
	store := storage.NewMemStore()
	for _, mail := range []string{"ada@example.com", "alan@example.com"} {
		require.NoError(t, store.SaveUser(&types.User{ID: types.NewID(), FirstName: "A",
			LastName: "B", Mail: mail}))
	}
	require.NoError(t, store.SaveProfile(&types.TransformProfile{ID: types.NewID(),
		Title: "To MP4", EncoderName: types.EncoderFFmpeg}))
	for i, status := range []types.MediaStatus{types.MediaReady, types.MediaReady, types.MediaPending} {
		media := &types.Media{ID: types.NewID(), UserID: types.NewID(),
			URI: "glusterfs://h/v/" + string(rune('a'+i)), Filename: "m.mp4",
			Metadata: map[string]any{"title": "M"}, Status: status}
		require.NoError(t, store.SaveMedia(media))
	}

	adapter := cluster.NewSimAdapter(0)
	table := capacity.NewEventsTable(nil, 24, 1)
	obs := New("amazon", adapter, table, store, openStatsDB(t), 12, 50)
	obs.SampleOnce()

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.UsersTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ProfilesTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.MediasTotal.WithLabelValues(string(types.MediaReady))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MediasTotal.WithLabelValues(string(types.MediaPending))))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.MediasTotal.WithLabelValues(string(types.MediaDeleted))))
}

func TestObserverSurvivesRestart(t *testing.T) {
	db := openStatsDB(t)
	store := storage.NewMemStore()
	adapter := cluster.NewSimAdapter(0)
	table := capacity.NewEventsTable(nil, 24, 1)

	first := New("amazon", adapter, table, store, db, 12, 50)
	first.SampleOnce()
	first.SampleOnce()

	second := New("amazon", adapter, table, store, db, 12, 50)
	assert.Len(t, second.Statistics(types.ServiceTransform).Samples, 2)
}
