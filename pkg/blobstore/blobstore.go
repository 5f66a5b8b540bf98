package blobstore

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/oscied/orchestra/pkg/types"
)

// BlobStore manages media assets on the shared storage volume.
type BlobStore interface {
	// AddMedia moves an uploaded asset to its canonical location and probes
	// it, returning the total size in bytes and the stream duration.
	// DELETED medias yield zero values.
	AddMedia(media *types.Media) (int64, string, error)

	// DeleteMedia removes the asset's directory, absent is not an error.
	DeleteMedia(media *types.Media) error

	// MediaPath returns the canonical local path of a media asset.
	MediaPath(media *types.Media) string

	// MediaURI returns the canonical shared-storage URI of a media asset.
	MediaURI(userID, mediaID, filename string) string
}

// Layout computes canonical paths and URIs for the glusterfs volume. Both
// implementations embed it so addressing stays identical in mock mode.
type Layout struct {
	// Root of the mounted volume on this host.
	Path string
	// Address and mountpoint advertised in shared URIs.
	Address    string
	Mountpoint string
}

// MediaPath returns <path>/medias/<user_id>/<media_id>/<filename>.
func (l Layout) MediaPath(media *types.Media) string {
	return filepath.Join(l.Path, "medias", media.UserID, media.ID, media.Filename)
}

// MediaURI returns glusterfs://<address>/<mountpoint>/medias/<u>/<m>/<f>.
func (l Layout) MediaURI(userID, mediaID, filename string) string {
	return fmt.Sprintf("glusterfs://%s/%s/medias/%s/%s/%s",
		l.Address, l.Mountpoint, userID, mediaID, filename)
}

// LocalPath translates a shared-storage URI into a path under the mounted
// volume. URIs outside the volume are not handled by this deployment.
func (l Layout) LocalPath(uri string) (string, error) {
	if uri == "" {
		return "", nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", types.Wrap(types.ErrInvalid, "parse media uri", err)
	}
	switch u.Scheme {
	case "glusterfs":
		rel := strings.TrimPrefix(u.Path, "/"+l.Mountpoint)
		return filepath.Join(l.Path, filepath.FromSlash(rel)), nil
	case "file", "":
		return u.Path, nil
	}
	return "", types.E(types.ErrNotImplemented, "media uri scheme "+u.Scheme+" is not handled")
}
