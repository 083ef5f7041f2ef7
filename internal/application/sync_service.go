package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
)

// syncCooldown is the minimum time between two manual syncs.
const syncCooldown = 30 * time.Second

// SyncResult contains the result of a preset sync.
type SyncResult struct {
	PresetsAdded    int       `json:"presets_added"`
	PresetsUpdated  int       `json:"presets_updated"`
	PresetsRemoved  int       `json:"presets_removed"`
	PresetsTotal    int       `json:"presets_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// PresetSyncService periodically reconciles the preset catalog with storage.
type PresetSyncService struct {
	catalog  *PresetCatalog
	interval time.Duration
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	// Rate limiting for manual triggers
	lastAPISync time.Time
	apiMutex    sync.Mutex

	// Prevents concurrent sync operations
	syncOpMutex sync.Mutex

	nextSync time.Time
	syncMu   sync.RWMutex
}

// NewPresetSyncService creates a new sync service.
func NewPresetSyncService(catalog *PresetCatalog, interval time.Duration, logger *slog.Logger) *PresetSyncService {
	return &PresetSyncService{
		catalog:  catalog,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		// Allow an immediate first manual sync
		lastAPISync: time.Now().Add(-syncCooldown - time.Second),
	}
}

// Start begins the periodic sync scheduler.
func (s *PresetSyncService) Start(ctx context.Context) {
	s.logger.Info("starting preset sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *PresetSyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextSync(time.Now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("preset sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("preset sync service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled preset sync triggered")
			if _, err := s.sync(ctx); err != nil {
				s.logger.Error("preset sync failed", "error", err)
			}
			s.setNextSync(time.Now().Add(s.interval))
		}
	}
}

// Stop gracefully stops the sync service.
func (s *PresetSyncService) Stop() {
	s.logger.Info("stopping preset sync service")
	close(s.stopCh)
	s.wg.Wait()
}

// TriggerSync runs a sync now. Calls within the cooldown of the previous
// manual sync fail with domain.ErrRateLimited.
func (s *PresetSyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.apiMutex.Lock()
	defer s.apiMutex.Unlock()

	if time.Since(s.lastAPISync) < syncCooldown {
		return SyncResult{}, domain.ErrRateLimited
	}
	s.lastAPISync = time.Now()

	return s.sync(ctx)
}

func (s *PresetSyncService) sync(ctx context.Context) (SyncResult, error) {
	s.syncOpMutex.Lock()
	defer s.syncOpMutex.Unlock()

	stats, err := s.catalog.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	return SyncResult{
		PresetsAdded:    stats.Added,
		PresetsUpdated:  stats.Updated,
		PresetsRemoved:  stats.Removed,
		PresetsTotal:    s.catalog.Count(),
		SyncedAt:        time.Now(),
		NextScheduledAt: s.getNextSync(),
	}, nil
}

func (s *PresetSyncService) setNextSync(t time.Time) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.nextSync = t
}

func (s *PresetSyncService) getNextSync() time.Time {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *PresetSyncService) Interval() time.Duration {
	return s.interval
}
