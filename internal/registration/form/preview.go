package form

import (
	"sync"

	"github.com/google/uuid"

	"hackmate/internal/platform/metrics"
	"hackmate/internal/registration/models"
)

// Preview is a handle to a locally rendered copy of the proof image. It must
// be released on every exit path: image swap, form reset, session teardown.
type Preview struct {
	ID  string
	URL string
}

// IsZero reports whether p refers to no preview.
func (p Preview) IsZero() bool {
	return p.ID == ""
}

// Previews allocates and releases preview handles.
type Previews interface {
	Allocate(img models.ProofImage) (Preview, error)
	Release(p Preview)
}

// MemoryPreviews hands out preview:// handles and tracks which are still live.
type MemoryPreviews struct {
	mu      sync.Mutex
	live    map[string]int64
	metrics *metrics.Metrics
}

func NewMemoryPreviews(m *metrics.Metrics) *MemoryPreviews {
	return &MemoryPreviews{live: make(map[string]int64), metrics: m}
}

func (m *MemoryPreviews) Allocate(img models.ProofImage) (Preview, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.live[id] = img.Size()
	m.mu.Unlock()
	m.metrics.AddLivePreviews(1)
	return Preview{ID: id, URL: "preview://" + id}, nil
}

// Release is idempotent; releasing an unknown or zero handle is a no-op.
func (m *MemoryPreviews) Release(p Preview) {
	if p.IsZero() {
		return
	}
	m.mu.Lock()
	_, ok := m.live[p.ID]
	delete(m.live, p.ID)
	m.mu.Unlock()
	if ok {
		m.metrics.AddLivePreviews(-1)
	}
}

// Live returns the number of handles not yet released.
func (m *MemoryPreviews) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
