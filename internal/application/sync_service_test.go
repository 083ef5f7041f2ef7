package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobrunner/leafsync/internal/domain"
)

func TestPresetSyncService_RateLimiting(t *testing.T) {
	catalog := newTestCatalog(&mockStorage{})
	service := NewPresetSyncService(catalog, time.Hour, testLogger())

	ctx := context.Background()

	// First call should succeed (empty storage adds nothing)
	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Errorf("first sync should succeed, got error: %v", err)
	}
	if result.PresetsAdded != 0 {
		t.Errorf("expected 0 presets added with empty storage, got %d", result.PresetsAdded)
	}

	// Immediate second call should be rate limited
	_, err = service.TriggerSync(ctx)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestPresetSyncService_StartStop(t *testing.T) {
	catalog := newTestCatalog(&mockStorage{})

	// Use a short interval for testing
	service := NewPresetSyncService(catalog, 100*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	// Should complete without hanging
	service.Stop()
}

func TestPresetSyncService_ScheduledSync(t *testing.T) {
	storage := &mockStorage{}
	storage.put("coast.yaml", "layers: []\n", "1")
	catalog := newTestCatalog(storage)

	service := NewPresetSyncService(catalog, 20*time.Millisecond, testLogger())
	service.Start(context.Background())
	defer service.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for catalog.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if catalog.Count() != 1 {
		t.Errorf("scheduled sync did not load the preset, count = %d", catalog.Count())
	}
}

func TestPresetSyncService_Interval(t *testing.T) {
	interval := 2 * time.Hour
	service := NewPresetSyncService(newTestCatalog(&mockStorage{}), interval, testLogger())

	if service.Interval() != interval {
		t.Errorf("expected interval %v, got %v", interval, service.Interval())
	}
}

func TestPresetSyncService_SyncAddsNewPresets(t *testing.T) {
	storage := &mockStorage{}
	storage.put("north.yaml", "layers: []\n", "1")
	storage.put("south.yml", "layers: []\n", "1")

	catalog := newTestCatalog(storage)
	service := NewPresetSyncService(catalog, time.Hour, testLogger())

	result, err := service.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.PresetsAdded != 2 {
		t.Errorf("expected 2 presets added, got %d", result.PresetsAdded)
	}
	if result.PresetsTotal != 2 {
		t.Errorf("expected 2 total presets, got %d", result.PresetsTotal)
	}
	if result.SyncedAt.IsZero() {
		t.Error("SyncedAt should be set")
	}
}

func TestPresetSyncService_StorageFailure(t *testing.T) {
	storage := &mockStorage{listErr: errors.New("bucket gone")}
	service := NewPresetSyncService(newTestCatalog(storage), time.Hour, testLogger())

	if _, err := service.TriggerSync(context.Background()); err == nil {
		t.Error("expected the storage error to surface")
	}
}
