package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// PresetCatalog holds the map presets read from object storage.
type PresetCatalog struct {
	mu      sync.RWMutex
	presets map[string]*presetEntry // by preset name
	keys    map[string]string       // object key -> preset name
	storage output.ObjectStorage
	metrics output.MetricsCollector
	logger  *slog.Logger
}

type presetEntry struct {
	Preset       *domain.Preset
	ETag         string
	LastModified int64
}

// NewPresetCatalog creates an empty catalog backed by storage.
func NewPresetCatalog(
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *PresetCatalog {
	return &PresetCatalog{
		presets: make(map[string]*presetEntry),
		keys:    make(map[string]string),
		storage: storage,
		metrics: metrics,
		logger:  logger,
	}
}

// LoadAll loads every preset in storage. Presets that fail to decode are
// logged and skipped.
func (c *PresetCatalog) LoadAll(ctx context.Context) error {
	c.logger.Info("loading all presets from storage")

	objects, err := c.list(ctx)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		if err := c.load(ctx, obj); err != nil {
			c.logger.Error("failed to load preset", "key", obj.Key, "error", err)
		}
	}

	c.updateMetrics()
	return nil
}

// Reload re-reads a single preset object, as reported by the file watcher.
func (c *PresetCatalog) Reload(ctx context.Context, key string) error {
	err := c.load(ctx, output.StorageObject{Key: key})
	c.updateMetrics()
	return err
}

// Remove drops the preset loaded from key. It reports whether one existed.
func (c *PresetCatalog) Remove(key string) bool {
	c.mu.Lock()
	name, ok := c.keys[key]
	if ok {
		delete(c.keys, key)
		delete(c.presets, name)
	}
	c.mu.Unlock()

	if ok {
		c.logger.Info("preset removed", "name", name, "key", key)
		c.updateMetrics()
	}
	return ok
}

// ListPresets returns all presets sorted by name.
func (c *PresetCatalog) ListPresets(_ context.Context) ([]domain.Preset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	presets := make([]domain.Preset, 0, len(c.presets))
	for _, entry := range c.presets {
		presets = append(presets, *entry.Preset)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, nil
}

// GetPreset returns a preset by name.
func (c *PresetCatalog) GetPreset(_ context.Context, name string) (*domain.Preset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.presets[name]
	if !ok {
		return nil, domain.ErrPresetNotFound
	}
	return entry.Preset, nil
}

// Count returns the number of loaded presets.
func (c *PresetCatalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.presets)
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Updated int
	Removed int
}

// Sync reconciles the catalog with storage: new objects are loaded, changed
// objects reloaded and vanished objects dropped.
func (c *PresetCatalog) Sync(ctx context.Context) (SyncStats, error) {
	c.logger.Info("syncing presets from storage")

	objects, err := c.list(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	stats := SyncStats{}
	remote := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		remote[obj.Key] = struct{}{}

		known, changed := c.changed(obj)
		if known && !changed {
			continue
		}
		if err := c.load(ctx, obj); err != nil {
			c.logger.Error("failed to load preset", "key", obj.Key, "error", err)
			continue
		}
		if known {
			stats.Updated++
		} else {
			stats.Added++
		}
	}

	for _, key := range c.keysNotIn(remote) {
		if c.Remove(key) {
			stats.Removed++
		}
	}

	c.updateMetrics()
	c.logger.Info("preset sync completed",
		"added", stats.Added, "updated", stats.Updated, "removed", stats.Removed, "total", c.Count())
	return stats, nil
}

func (c *PresetCatalog) list(ctx context.Context) ([]output.StorageObject, error) {
	start := time.Now()
	objects, err := c.storage.List(ctx)
	c.metrics.ObserveStorageDuration("list", time.Since(start))
	c.metrics.IncStorageOperations("list", err == nil)
	return objects, err
}

func (c *PresetCatalog) load(ctx context.Context, obj output.StorageObject) error {
	start := time.Now()
	rc, err := c.storage.GetReader(ctx, obj.Key)
	if err != nil {
		c.metrics.IncStorageOperations("get", false)
		return err
	}
	defer rc.Close()

	preset, err := DecodePreset(rc, obj.Key)
	c.metrics.ObserveStorageDuration("get", time.Since(start))
	c.metrics.IncStorageOperations("get", err == nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if old, ok := c.keys[obj.Key]; ok && old != preset.Name {
		delete(c.presets, old)
	}
	if prev, ok := c.presets[preset.Name]; ok && prev.Preset.Key != obj.Key {
		c.logger.Warn("preset name defined twice, later object wins",
			"name", preset.Name, "previous", prev.Preset.Key, "key", obj.Key)
		delete(c.keys, prev.Preset.Key)
	}
	c.presets[preset.Name] = &presetEntry{Preset: preset, ETag: obj.ETag, LastModified: obj.LastModified}
	c.keys[obj.Key] = preset.Name
	c.mu.Unlock()

	c.logger.Info("preset loaded", "name", preset.Name, "key", obj.Key, "layers", len(preset.Layers))
	return nil
}

func (c *PresetCatalog) changed(obj output.StorageObject) (known, changed bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name, ok := c.keys[obj.Key]
	if !ok {
		return false, true
	}
	entry := c.presets[name]
	if obj.ETag != "" {
		return true, obj.ETag != entry.ETag
	}
	return true, obj.LastModified != entry.LastModified
}

func (c *PresetCatalog) keysNotIn(remote map[string]struct{}) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for key := range c.keys {
		if _, ok := remote[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

func (c *PresetCatalog) updateMetrics() {
	c.metrics.SetPresetsLoaded(c.Count())
}

// DecodePreset reads a YAML preset document. The name defaults to the base
// name of key.
func DecodePreset(r io.Reader, key string) (*domain.Preset, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &domain.StorageError{Operation: "decode", Key: key, Err: err}
	}

	// Layers are decoded by the JSON layer codec, so the YAML tree is
	// re-encoded as JSON first.
	data, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, &domain.StorageError{Operation: "decode", Key: key, Err: err}
	}

	preset := &domain.Preset{Options: domain.DefaultMapOptions()}
	if err := json.Unmarshal(data, preset); err != nil {
		return nil, fmt.Errorf("preset %s: %v: %w", key, err, domain.ErrInvalidInput)
	}
	if preset.Name == "" {
		preset.Name = derivePresetName(key)
	}
	preset.Key = key
	preset.LoadedAt = time.Now()

	if err := preset.Validate(); err != nil {
		return nil, fmt.Errorf("preset %s: %w", key, err)
	}
	return preset, nil
}

// normalizeYAML turns map[interface{}]interface{} nodes into string-keyed
// maps so the tree can be encoded as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

// derivePresetName extracts a preset name from an object key.
func derivePresetName(key string) string {
	base := filepath.Base(key)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
