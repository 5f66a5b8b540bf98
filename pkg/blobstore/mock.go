package blobstore

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/oscied/orchestra/pkg/types"
)

// Mock is an in-process BlobStore producing pseudo-random probe results,
// for tests and mock mode.
type Mock struct {
	Layout

	mu      sync.Mutex
	Added   []string
	Deleted []string
}

// NewMock creates a mock blob store with the given layout
func NewMock(layout Layout) *Mock {
	return &Mock{Layout: layout}
}

func (s *Mock) AddMedia(media *types.Media) (int64, string, error) {
	if media.Status == types.MediaDeleted {
		return 0, "", nil
	}
	s.mu.Lock()
	s.Added = append(s.Added, media.ID)
	s.mu.Unlock()

	size := int64(rand.Intn(10*1024*1024) + 1024)
	seconds := rand.Intn(3600) + 10
	duration := fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
	return size, duration, nil
}

func (s *Mock) DeleteMedia(media *types.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, media.ID)
	return nil
}
