package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/input"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

var (
	_ input.MapController = (*Map)(nil)
	_ input.MapService    = (*MapService)(nil)
	_ input.PresetService = (*PresetCatalog)(nil)
)

// MapServiceConfig holds configuration for the map service.
type MapServiceConfig struct {
	CallTimeout time.Duration
	MaxMaps     int
}

// MapService owns the live maps.
type MapService struct {
	mu       sync.RWMutex
	maps     map[string]*Map
	runtimes output.RuntimeProvider
	presets  input.PresetService
	metrics  output.MetricsCollector
	logger   *slog.Logger
	cfg      MapServiceConfig
}

// NewMapService creates a new map service. presets may be nil.
func NewMapService(
	runtimes output.RuntimeProvider,
	presets input.PresetService,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg MapServiceConfig,
) *MapService {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}

	return &MapService{
		maps:     make(map[string]*Map),
		runtimes: runtimes,
		presets:  presets,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateMap creates a map and issues the runtime create call. When a preset
// is named, its layers are added as soon as the map initializes.
func (s *MapService) CreateMap(ctx context.Context, opts *domain.MapOptions, presetName string) (input.MapController, error) {
	return s.Create(ctx, opts, presetName)
}

// Create is CreateMap returning the concrete map.
func (s *MapService) Create(ctx context.Context, opts *domain.MapOptions, presetName string) (*Map, error) {
	var preset *domain.Preset
	if presetName != "" {
		if s.presets == nil {
			return nil, domain.ErrPresetNotFound
		}
		p, err := s.presets.GetPreset(ctx, presetName)
		if err != nil {
			return nil, err
		}
		preset = p
	}

	options := domain.DefaultMapOptions()
	switch {
	case opts != nil:
		options = *opts
	case preset != nil:
		options = preset.Options
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	if s.cfg.MaxMaps > 0 && s.Count() >= s.cfg.MaxMaps {
		return nil, domain.ErrTooManyMaps
	}

	id := domain.NewID()
	runtime, err := s.runtimes.Open(ctx, id)
	if err != nil {
		return nil, err
	}

	m := NewMap(runtime, options, s.metrics, s.logger, MapConfig{
		ID:          id,
		Preset:      presetName,
		CallTimeout: s.cfg.CallTimeout,
	})
	if preset != nil {
		m.OnInitialized(func() { s.seed(m, preset) })
	}

	// The limit is checked again under the write lock so concurrent creates
	// cannot overshoot it.
	s.mu.Lock()
	if s.cfg.MaxMaps > 0 && len(s.maps) >= s.cfg.MaxMaps {
		s.mu.Unlock()
		m.dispatch.stop()
		s.runtimes.Close(id)
		return nil, domain.ErrTooManyMaps
	}
	if err := m.dispatch.detach(MethodCreate, "", options); err != nil {
		s.mu.Unlock()
		s.runtimes.Close(id)
		return nil, err
	}
	s.maps[id] = m
	s.mu.Unlock()

	s.updateMetrics()
	s.logger.Info("map created", "id", id, "preset", presetName)
	return m, nil
}

// seed adds the preset's layers and markers to an initialized map.
func (s *MapService) seed(m *Map, preset *domain.Preset) {
	layers, markers, err := preset.Build()
	if err != nil {
		s.logger.Error("failed to build preset", "map", m.ID(), "preset", preset.Name, "error", err)
		return
	}
	for _, l := range layers {
		if err := m.AddLayer(l); err != nil {
			s.logger.Error("failed to add preset layer", "map", m.ID(), "layer", l.LayerID(), "error", err)
		}
	}
	for _, mk := range markers {
		if err := m.AddMarker(mk); err != nil {
			s.logger.Error("failed to add preset marker", "map", m.ID(), "layer", mk.ID, "error", err)
		}
	}
	s.logger.Debug("preset applied", "map", m.ID(), "preset", preset.Name,
		"layers", len(layers), "markers", len(markers))
}

// GetMap returns a live map by id.
func (s *MapService) GetMap(ctx context.Context, id string) (input.MapController, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Get is GetMap returning the concrete map.
func (s *MapService) Get(_ context.Context, id string) (*Map, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.maps[id]
	if !ok {
		return nil, domain.ErrMapNotFound
	}
	return m, nil
}

// ListMaps returns a summary of every live map, oldest first.
func (s *MapService) ListMaps(_ context.Context) ([]domain.MapInfo, error) {
	s.mu.RLock()
	infos := make([]domain.MapInfo, 0, len(s.maps))
	for _, m := range s.maps {
		infos = append(infos, m.Info())
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos, nil
}

// DisposeMap disposes a map and forgets it.
func (s *MapService) DisposeMap(ctx context.Context, id string) error {
	s.mu.Lock()
	m, ok := s.maps[id]
	delete(s.maps, id)
	s.mu.Unlock()

	if !ok {
		return domain.ErrMapNotFound
	}

	err := m.Dispose(ctx)
	s.runtimes.Close(id)
	s.updateMetrics()
	if err != nil {
		s.logger.Warn("dispose call failed", "id", id, "error", err)
	}
	return err
}

// DisposeAll disposes every live map. Runtime failures are logged.
func (s *MapService) DisposeAll(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.maps))
	for id := range s.maps {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if err := s.DisposeMap(ctx, id); err != nil && !errors.Is(err, domain.ErrMapNotFound) {
			s.logger.Debug("map disposed with error", "id", id, "error", err)
		}
	}
}

// Count returns the number of live maps.
func (s *MapService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.maps)
}

func (s *MapService) updateMetrics() {
	s.metrics.SetActiveMaps(s.Count())
}
