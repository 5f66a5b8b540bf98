package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscied/orchestra/pkg/types"
)

var testLayout = Layout{
	Path:       "/mnt/storage",
	Address:    "fs.example.com",
	Mountpoint: "medias_volume",
}

func TestLayoutMediaPath(t *testing.T) {
	media := &types.Media{ID: "m1", UserID: "u1", Filename: "movie.mp4"}
	assert.Equal(t, "/mnt/storage/medias/u1/m1/movie.mp4", testLayout.MediaPath(media))
}

func TestLayoutMediaURI(t *testing.T) {
	uri := testLayout.MediaURI("u1", "m1", "movie.mp4")
	assert.Equal(t, "glusterfs://fs.example.com/medias_volume/medias/u1/m1/movie.mp4", uri)
}

func TestLayoutLocalPath(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{"glusterfs uri", "glusterfs://fs.example.com/medias_volume/medias/u1/m1/movie.mp4",
			"/mnt/storage/medias/u1/m1/movie.mp4", false},
		{"file uri", "file:///tmp/upload.mp4", "/tmp/upload.mp4", false},
		{"empty uri", "", "", false},
		{"foreign scheme", "s3://bucket/key", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testLayout.LocalPath(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrNotImplemented, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMockRoundTrip(t *testing.T) {
	mock := NewMock(testLayout)
	media := &types.Media{ID: types.NewID(), UserID: types.NewID(), Filename: "movie.mp4",
		Status: types.MediaPending}

	size, duration, err := mock.AddMedia(media)
	require.NoError(t, err)
	assert.Positive(t, size)
	assert.Len(t, duration, 8)
	assert.Contains(t, mock.Added, media.ID)

	require.NoError(t, mock.DeleteMedia(media))
	assert.Contains(t, mock.Deleted, media.ID)
}

func TestMockSkipsDeletedMedia(t *testing.T) {
	mock := NewMock(testLayout)
	media := &types.Media{ID: types.NewID(), Status: types.MediaDeleted}
	size, duration, err := mock.AddMedia(media)
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Empty(t, duration)
	assert.Empty(t, mock.Added)
}
