package blobstore

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/types"
)

const (
	renameAttempts = 5
	renameDelay    = time.Second
)

// Local is a BlobStore over a mounted shared volume.
type Local struct {
	Layout
	logger zerolog.Logger
}

// NewLocal creates a blob store rooted at the configured volume
func NewLocal(layout Layout) *Local {
	return &Local{Layout: layout, logger: log.WithComponent("blobstore")}
}

func (s *Local) AddMedia(media *types.Media) (int64, string, error) {
	if media.Status == types.MediaDeleted {
		return 0, "", nil
	}

	canonical := s.MediaPath(media)
	current, err := s.LocalPath(media.URI)
	if err != nil {
		return 0, "", err
	}

	if current != "" && current != canonical {
		if err := os.MkdirAll(filepath.Dir(canonical), 0o755); err != nil {
			return 0, "", types.Wrap(types.ErrTransient, "create media directory", err)
		}
		// The shared volume can briefly refuse renames right after the
		// upload completes on another host.
		if err := renameWithRetry(current, canonical); err != nil {
			return 0, "", types.Wrap(types.ErrTransient, "move media to canonical path", err)
		}
		s.logger.Debug().Str("media_id", media.ID).Str("path", canonical).Msg("media moved to canonical location")
	}

	size, err := directorySize(filepath.Dir(canonical))
	if err != nil {
		return 0, "", types.Wrap(types.ErrTransient, "probe media size", err)
	}
	duration := probeDuration(canonical)
	return size, duration, nil
}

func (s *Local) DeleteMedia(media *types.Media) error {
	dir := filepath.Dir(s.MediaPath(media))
	if err := os.RemoveAll(dir); err != nil {
		return types.Wrap(types.ErrTransient, "remove media directory", err)
	}
	return nil
}

func renameWithRetry(from, to string) error {
	var err error
	for i := 0; i < renameAttempts; i++ {
		if err = os.Rename(from, to); err == nil {
			return nil
		}
		time.Sleep(renameDelay)
	}
	return err
}

// directorySize sums the regular files under dir. DASH outputs are a
// directory of segments, so a single-file stat is not enough.
func directorySize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// probeDuration asks ffprobe for the container duration. Probing failures
// leave the duration empty rather than failing the ingest.
func probeDuration(path string) string {
	out, err := exec.Command("ffprobe", "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"-sexagesimal", path).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
