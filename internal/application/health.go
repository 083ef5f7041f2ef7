package application

import (
	"context"

	"github.com/jobrunner/leafsync/internal/ports/input"
)

// SessionCounter reports the number of attached runtime clients.
type SessionCounter interface {
	SessionCount() int
}

// HealthService provides health check functionality.
type HealthService struct {
	maps     *MapService
	presets  *PresetCatalog
	sessions SessionCounter
}

// NewHealthService creates a new health service. presets and sessions may
// be nil.
func NewHealthService(maps *MapService, presets *PresetCatalog, sessions SessionCounter) *HealthService {
	return &HealthService{
		maps:     maps,
		presets:  presets,
		sessions: sessions,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true once the service can accept maps.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.maps != nil
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	details := input.HealthDetails{
		Healthy:    s.IsHealthy(ctx),
		Ready:      s.IsReady(ctx),
		Components: map[string]string{"runtime": "ok"},
	}
	if s.maps != nil {
		details.MapsActive = s.maps.Count()
	}
	if s.presets != nil {
		details.PresetsLoaded = s.presets.Count()
		details.Components["presets"] = "ok"
	}
	if s.sessions != nil {
		details.ClientsAttached = s.sessions.SessionCount()
	}
	return details
}
