package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// MapConfig holds configuration for a map instance.
type MapConfig struct {
	ID          string
	Preset      string
	CallTimeout time.Duration
}

// Map is the server-side state of one runtime map. Structural mutations
// are applied to the in-memory collections and translated into runtime
// calls before the mutating method returns; the calls themselves run on the
// map's dispatcher and their failures go to the background error listeners.
type Map struct {
	id        string
	preset    string
	createdAt time.Time
	logger    *slog.Logger
	metrics   output.MetricsCollector

	dispatch  *dispatcher
	handles   *HandleRegistry
	translate *translator

	initializedListeners listenerList[struct{}]
	errorListeners       listenerList[error]
	eventMu              sync.Mutex
	eventListeners       map[domain.EventName]*listenerList[domain.Event]

	mu          sync.Mutex
	options     domain.MapOptions
	initialized bool
	disposed    bool
	layers      collection
	markers     collection
}

// NewMap creates a map bound to runtime and starts its dispatcher.
func NewMap(
	runtime output.MapRuntime,
	options domain.MapOptions,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg MapConfig,
) *Map {
	if cfg.ID == "" {
		cfg.ID = domain.NewID()
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}

	m := &Map{
		id:             cfg.ID,
		preset:         cfg.Preset,
		createdAt:      time.Now(),
		logger:         logger.With("map", cfg.ID),
		metrics:        metrics,
		options:        options,
		eventListeners: make(map[domain.EventName]*listenerList[domain.Event]),
	}
	m.handles = NewHandleRegistry(metrics.AddHandles)
	m.dispatch = newDispatcher(cfg.ID, runtime, metrics, m.logger, cfg.CallTimeout, m.reportBackground)
	m.translate = &translator{handles: m.handles, dispatch: m.dispatch, logger: m.logger}
	return m
}

// ID returns the map id.
func (m *Map) ID() string { return m.id }

// Info returns a summary of the map.
func (m *Map) Info() domain.MapInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.MapInfo{
		ID:          m.id,
		Options:     m.options,
		Initialized: m.initialized,
		Layers:      m.layers.len(),
		Markers:     m.markers.len(),
		Handles:     m.handles.Len(),
		Preset:      m.preset,
		CreatedAt:   m.createdAt,
	}
}

// Options returns the declared view options.
func (m *Map) Options() domain.MapOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options
}

// Handles returns the number of outstanding layer handles.
func (m *Map) Handles() int {
	return m.handles.Len()
}

// Center returns the locally cached center.
func (m *Map) Center() domain.LatLng {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options.Center
}

// Zoom returns the locally cached zoom level.
func (m *Map) Zoom() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options.Zoom
}

// SetCenter stores center and, once initialized, pans the runtime to it
// without animation.
func (m *Map) SetCenter(center domain.LatLng) {
	m.mu.Lock()
	m.options.Center = center
	initialized := m.initialized
	m.mu.Unlock()

	if initialized {
		m.background(m.dispatch.detach(MethodPanTo, "", center, false, 0.0, 0.0, false))
	}
}

// SetZoom stores zoom and, once initialized, sets it in the runtime.
func (m *Map) SetZoom(zoom float64) {
	m.mu.Lock()
	m.options.Zoom = zoom
	initialized := m.initialized
	m.mu.Unlock()

	if initialized {
		m.background(m.dispatch.detach(MethodSetZoom, "", zoom))
	}
}

// MarkInitialized flips the map to initialized. Only the first call has an
// effect and fires the initialized listeners.
func (m *Map) MarkInitialized() {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.mu.Unlock()

	m.logger.Info("map initialized")
	m.initializedListeners.emit(struct{}{})
}

// Initialized reports whether MarkInitialized has run.
func (m *Map) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// OnInitialized registers fn to run when the map initializes.
func (m *Map) OnInitialized(fn func()) func() {
	return m.initializedListeners.add(func(struct{}) { fn() })
}

// OnBackgroundError registers fn to receive failures of detached runtime
// calls. fn runs on the map's dispatcher and must not wait on map queries.
func (m *Map) OnBackgroundError(fn func(error)) func() {
	return m.errorListeners.add(fn)
}

// AddLayer appends layer to the layer collection and creates it in the
// runtime.
func (m *Map) AddLayer(layer domain.Layer) error {
	return m.add(&m.layers, layer)
}

// RemoveLayer removes the first layer with the same id and destroys it in
// the runtime. Removing an absent layer is a no-op.
func (m *Map) RemoveLayer(layer domain.Layer) error {
	return m.remove(&m.layers, layer)
}

// ReplaceLayerAt replaces the layer at index.
func (m *Map) ReplaceLayerAt(index int, layer domain.Layer) error {
	return m.replaceAt(&m.layers, index, layer)
}

// MoveLayer moves the layer at from to to.
func (m *Map) MoveLayer(from, to int) error {
	return m.move(&m.layers, from, to)
}

// ClearLayers destroys every layer and empties the layer collection.
func (m *Map) ClearLayers() error {
	return m.clear(&m.layers)
}

// Layers returns a copy of the layer collection in insertion order.
func (m *Map) Layers() []domain.Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layers.snapshot()
}

// AddMarker appends marker to the marker collection.
func (m *Map) AddMarker(marker *domain.Marker) error {
	return m.add(&m.markers, markerLayer(marker))
}

// RemoveMarker removes the first marker with the same id.
func (m *Map) RemoveMarker(marker *domain.Marker) error {
	return m.remove(&m.markers, markerLayer(marker))
}

// ReplaceMarkerAt replaces the marker at index.
func (m *Map) ReplaceMarkerAt(index int, marker *domain.Marker) error {
	return m.replaceAt(&m.markers, index, markerLayer(marker))
}

// MoveMarker moves the marker at from to to.
func (m *Map) MoveMarker(from, to int) error {
	return m.move(&m.markers, from, to)
}

// ClearMarkers destroys every marker and empties the marker collection.
func (m *Map) ClearMarkers() error {
	return m.clear(&m.markers)
}

// Markers returns a copy of the marker collection in insertion order.
func (m *Map) Markers() []*domain.Marker {
	m.mu.Lock()
	items := m.markers.snapshot()
	m.mu.Unlock()

	out := make([]*domain.Marker, 0, len(items))
	for _, l := range items {
		out = append(out, l.(*domain.Marker))
	}
	return out
}

// FindLayer returns the first layer or marker with the given id.
func (m *Map) FindLayer(id string) (domain.Layer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.layers.find(id); ok {
		return l, true
	}
	return m.markers.find(id)
}

// markerLayer keeps a nil *Marker a nil Layer.
func markerLayer(marker *domain.Marker) domain.Layer {
	if marker == nil {
		return nil
	}
	return marker
}

func (m *Map) checkMutation(layer domain.Layer) error {
	if domain.IsNilLayer(layer) {
		return domain.ErrNullArgument
	}
	if !m.initialized {
		return domain.ErrNotInitialized
	}
	if m.disposed {
		return domain.ErrMapDisposed
	}
	_, err := createMethod(layer)
	return err
}

func (m *Map) add(c *collection, layer domain.Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutation(layer); err != nil {
		return err
	}
	return m.translate.apply(c.add(layer))
}

func (m *Map) remove(c *collection, layer domain.Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if domain.IsNilLayer(layer) {
		return domain.ErrNullArgument
	}
	if !m.initialized {
		return domain.ErrNotInitialized
	}
	if m.disposed {
		return domain.ErrMapDisposed
	}
	ch, ok := c.removeFirst(layer.LayerID())
	if !ok {
		return nil
	}
	return m.translate.apply(ch)
}

func (m *Map) replaceAt(c *collection, index int, layer domain.Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutation(layer); err != nil {
		return err
	}
	ch, err := c.replaceAt(index, layer)
	if err != nil {
		return err
	}
	return m.translate.apply(ch)
}

func (m *Map) move(c *collection, from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return domain.ErrNotInitialized
	}
	if m.disposed {
		return domain.ErrMapDisposed
	}
	ch, err := c.move(from, to)
	if err != nil {
		return err
	}
	return m.translate.apply(ch)
}

func (m *Map) clear(c *collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return domain.ErrNotInitialized
	}
	if m.disposed {
		return domain.ErrMapDisposed
	}
	return m.translate.apply(c.clear())
}

// Flush waits until every runtime call queued so far has completed.
func (m *Map) Flush(ctx context.Context) error {
	return m.dispatch.flush(ctx)
}

// Resync rebuilds the map in a runtime that lost its state, such as a
// reloaded page. It issues create with the current options, then creates
// every layer and marker again in collection order. Handles are released
// first and registered again by the replay.
func (m *Map) Resync(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return domain.ErrMapDisposed
	}

	released := m.handles.ReleaseAll()
	m.logger.Info("resyncing map", "layers", m.layers.len(), "markers", m.markers.len(), "released", released)

	if err := m.dispatch.detach(MethodCreate, "", m.options); err != nil {
		return err
	}
	if err := m.translate.createAll(m.layers.snapshot()); err != nil {
		return err
	}
	return m.translate.createAll(m.markers.snapshot())
}

// Dispose destroys the map in the runtime, stops the dispatcher and
// releases every outstanding handle.
func (m *Map) Dispose(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.disposed = true
	m.mu.Unlock()

	err := m.dispatch.await(ctx, MethodDispose, "", nil)
	m.dispatch.stop()
	if n := m.handles.ReleaseAll(); n > 0 {
		m.logger.Debug("released handles on dispose", "count", n)
	}
	m.logger.Info("map disposed")
	return err
}

// background routes a synchronous enqueue failure of a detached call to the
// background error listeners.
func (m *Map) background(err error) {
	if err != nil {
		m.reportBackground(err)
	}
}

func (m *Map) reportBackground(err error) {
	method := "unknown"
	var be *domain.BoundaryError
	if errors.As(err, &be) {
		method = be.Method
	}
	m.metrics.IncBackgroundErrors(method)
	m.logger.Warn("background runtime call failed", "method", method, "error", err)
	m.errorListeners.emit(err)
}
