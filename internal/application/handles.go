package application

import (
	"sync"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
)

// Handle is the server-side record of a layer materialized in the runtime.
type Handle struct {
	LayerID   string
	Kind      domain.LayerKind
	ClusterID *int
	Seq       uint64
	CreatedAt time.Time
}

// HandleRegistry owns the handles of one map, keyed by layer id.
// Release is safe to call for ids that were never registered.
type HandleRegistry struct {
	mu       sync.Mutex
	handles  map[string]*Handle
	seq      uint64
	onChange func(delta int)
}

// NewHandleRegistry creates an empty registry. onChange, if not nil, is
// called with +1 and -1 as handles come and go.
func NewHandleRegistry(onChange func(delta int)) *HandleRegistry {
	return &HandleRegistry{
		handles:  make(map[string]*Handle),
		onChange: onChange,
	}
}

// Register creates a handle for layer. If the id already has a handle, the
// existing one is returned and created is false.
func (r *HandleRegistry) Register(layer domain.Layer) (h *Handle, created bool) {
	r.mu.Lock()
	if existing, ok := r.handles[layer.LayerID()]; ok {
		r.mu.Unlock()
		return existing, false
	}
	r.seq++
	h = &Handle{
		LayerID:   layer.LayerID(),
		Kind:      layer.Kind(),
		ClusterID: layer.Cluster(),
		Seq:       r.seq,
		CreatedAt: time.Now(),
	}
	r.handles[h.LayerID] = h
	r.mu.Unlock()

	r.changed(1)
	return h, true
}

// Release drops the handle for layerID. It reports whether a handle existed.
func (r *HandleRegistry) Release(layerID string) bool {
	r.mu.Lock()
	_, ok := r.handles[layerID]
	delete(r.handles, layerID)
	r.mu.Unlock()

	if ok {
		r.changed(-1)
	}
	return ok
}

// ReleaseAll drops every handle and returns how many were released.
func (r *HandleRegistry) ReleaseAll() int {
	r.mu.Lock()
	n := len(r.handles)
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	if n > 0 {
		r.changed(-n)
	}
	return n
}

// Get returns the handle for layerID.
func (r *HandleRegistry) Get(layerID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[layerID]
	return h, ok
}

// Len returns the number of outstanding handles.
func (r *HandleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *HandleRegistry) changed(delta int) {
	if r.onChange != nil {
		r.onChange(delta)
	}
}
