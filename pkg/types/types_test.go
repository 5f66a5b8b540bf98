package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserSanitized(t *testing.T) {
	user := &User{ID: NewID(), FirstName: "Ada", LastName: "Lovelace", Mail: "ada@example.com", Secret: "hashed"}
	clean := user.Sanitized()
	assert.Empty(t, clean.Secret)
	assert.Equal(t, "hashed", user.Secret, "original must keep its secret")

	raw, err := json.Marshal(clean)
	assert.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{ID: NewID(), FirstName: "Ada", LastName: "Lovelace", Mail: "ada@example.com"}, false},
		{"missing id", User{FirstName: "Ada", LastName: "Lovelace", Mail: "ada@example.com"}, true},
		{"malformed id", User{ID: "not-a-uuid", FirstName: "Ada", LastName: "Lovelace", Mail: "a@b.c"}, true},
		{"missing name", User{ID: NewID(), Mail: "ada@example.com"}, true},
		{"malformed mail", User{ID: NewID(), FirstName: "Ada", LastName: "Lovelace", Mail: "nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMediaTitleRequired(t *testing.T) {
	media := Media{ID: NewID(), UserID: NewID(), Filename: "movie.mp4", Status: MediaPending}
	assert.Error(t, media.Validate())

	media.AddMetadata("title", "Movie", false)
	assert.NoError(t, media.Validate())
}

func TestMediaAddMetadataForce(t *testing.T) {
	media := Media{}
	media.AddMetadata("size", 10, false)
	media.AddMetadata("size", 20, false)
	assert.Equal(t, 10, media.Metadata["size"])
	media.AddMetadata("size", 20, true)
	assert.Equal(t, 20, media.Metadata["size"])
}

func TestProfileOutputFilename(t *testing.T) {
	copyProfile := TransformProfile{EncoderName: EncoderCopy}
	dash := TransformProfile{EncoderName: EncoderDashcast}

	assert.Equal(t, "movie.mp4", copyProfile.OutputFilename("movie.mp4", ""))
	assert.Equal(t, "movie_hd.mp4", copyProfile.OutputFilename("movie.mp4", "hd"))
	assert.Equal(t, "movie.mpd", dash.OutputFilename("movie.mp4", ""))
}

func TestProfileValidateEncoder(t *testing.T) {
	profile := TransformProfile{ID: NewID(), Title: "To WebM", EncoderName: "vp9"}
	assert.Error(t, profile.Validate())
	profile.EncoderName = EncoderFFmpeg
	assert.NoError(t, profile.Validate())
}

func TestTransformTaskTransitions(t *testing.T) {
	tests := []struct {
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{TaskPending, TaskProgress, true},
		{TaskPending, TaskSuccess, true},
		{TaskPending, TaskFailure, true},
		{TaskPending, TaskRevoked, true},
		{TaskProgress, TaskProgress, true},
		{TaskProgress, TaskSuccess, true},
		{TaskSuccess, TaskFailure, false},
		{TaskSuccess, TaskProgress, false},
		{TaskFailure, TaskSuccess, false},
		{TaskRevoked, TaskProgress, false},
	}
	for _, tt := range tests {
		task := TransformTask{Status: tt.from}
		assert.Equal(t, tt.allowed, task.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestPublisherTaskTransitions(t *testing.T) {
	tests := []struct {
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{TaskPending, TaskSuccess, true},
		{TaskSuccess, TaskRevoking, true},
		{TaskRevoking, TaskRevoked, true},
		{TaskSuccess, TaskProgress, false},
		{TaskRevoked, TaskRevoking, false},
		{TaskFailure, TaskRevoking, false},
		{TaskPending, TaskRevoked, true},
	}
	for _, tt := range tests {
		task := PublisherTask{Status: tt.from}
		assert.Equal(t, tt.allowed, task.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestPublishHostname(t *testing.T) {
	task := PublisherTask{PublishURI: "http://worker-3.example.com/medias/u/m/movie.mp4"}
	assert.Equal(t, "worker-3.example.com", task.PublishHostname())

	task.PublishURI = ""
	assert.Empty(t, task.PublishHostname())
}

func TestErrorKinds(t *testing.T) {
	err := E(ErrNotFound, "no media asset with that id")
	assert.Equal(t, ErrNotFound, KindOf(err))
	assert.True(t, IsNotFound(err))

	wrapped := Wrap(ErrTransient, "save", err)
	assert.Equal(t, ErrTransient, KindOf(wrapped))
	assert.Contains(t, wrapped.Error(), "no media asset")

	assert.Equal(t, ErrUnknown, KindOf(assert.AnError))
	assert.Nil(t, Wrap(ErrInvalid, "noop", nil))
}

func TestDatetimeNowFormat(t *testing.T) {
	now := DatetimeNow()
	assert.Len(t, now, 16, "expected YYYY-MM-DD HH:MM")
}
