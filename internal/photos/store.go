package photos

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmarchal/glowbooth/internal/debug"
)

// Authorization is the photo-library permission state.
type Authorization int

const (
	Granted Authorization = iota
	Denied
)

func (a Authorization) String() string {
	if a == Granted {
		return "granted"
	}
	return "denied"
}

// Store is the photo-library boundary: one authorization query and one
// save operation per captured image.
type Store interface {
	Authorization() Authorization
	Save(image []byte) (string, error)
}

// DiskStore saves captured JPEGs into a directory. Authorization maps to
// whether the directory can be created and written.
type DiskStore struct {
	dir string

	mu      sync.Mutex
	checked bool
	auth    Authorization
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Authorization probes the directory once and caches the result.
func (s *DiskStore) Authorization() Authorization {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checked {
		return s.auth
	}
	s.checked = true
	s.auth = Denied
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		debug.Verbose("Photos: library denied: %v", err)
		return s.auth
	}
	probe := filepath.Join(s.dir, ".glowbooth-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		debug.Verbose("Photos: library denied: %v", err)
		return s.auth
	}
	os.Remove(probe)
	s.auth = Granted
	return s.auth
}

// Save writes the image under a timestamped unique name and returns the
// full path.
func (s *DiskStore) Save(image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("photos: empty image")
	}
	name := fmt.Sprintf("%s-%s.jpg", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("photos: save %s: %w", name, err)
	}
	debug.Live("Photo saved: %s", path)
	return path, nil
}
