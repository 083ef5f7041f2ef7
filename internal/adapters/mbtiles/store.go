// Package mbtiles serves pre-rendered tiles from MBTiles (SQLite) archives.
package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/jobrunner/leafsync/internal/domain"
)

// maxZoom bounds the zoom levels accepted by Tile.
const maxZoom = 30

type tileset struct {
	meta domain.Tileset
	db   *sql.DB
}

// Store implements the TileStore port for a directory of .mbtiles files.
type Store struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	sets map[string]*tileset
}

// NewStore creates a store for dir. Call Refresh to open the archives.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		sets:   make(map[string]*tileset),
	}
}

// Refresh opens archives that appeared in the directory and closes those
// that disappeared. Archives that fail to open are logged and skipped.
func (s *Store) Refresh(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return &domain.StorageError{Operation: "list", Key: s.dir, Err: err}
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mbtiles") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		name := DeriveTilesetName(path)
		seen[name] = true

		s.mu.RLock()
		_, open := s.sets[name]
		s.mu.RUnlock()
		if open {
			continue
		}

		ts, err := openTileset(ctx, name, path)
		if err != nil {
			s.logger.Error("failed to open tileset", "path", path, "error", err)
			continue
		}

		s.mu.Lock()
		s.sets[name] = ts
		s.mu.Unlock()
		s.logger.Info("tileset opened",
			"name", name,
			"format", ts.meta.Format,
			"minZoom", ts.meta.MinZoom,
			"maxZoom", ts.meta.MaxZoom,
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, ts := range s.sets {
		if seen[name] {
			continue
		}
		_ = ts.db.Close()
		delete(s.sets, name)
		s.logger.Info("tileset closed", "name", name)
	}
	return nil
}

// List returns the open tilesets sorted by name.
func (s *Store) List(_ context.Context) ([]domain.Tileset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Tileset, 0, len(s.sets))
	for _, ts := range s.sets {
		out = append(out, ts.meta)
	}
	slices.SortFunc(out, func(a, b domain.Tileset) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Get returns the metadata of one tileset.
func (s *Store) Get(_ context.Context, name string) (domain.Tileset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.sets[name]
	if !ok {
		return domain.Tileset{}, domain.ErrTilesetNotFound
	}
	return ts.meta, nil
}

// Tile returns the tile at z/x/y in XYZ addressing. MBTiles stores rows in
// TMS order, so y is flipped before the lookup.
func (s *Store) Tile(ctx context.Context, name string, z, x, y int) ([]byte, error) {
	if z < 0 || z > maxZoom {
		return nil, &domain.ValidationError{Field: "z", Message: "zoom out of range"}
	}
	n := 1 << z
	if x < 0 || x >= n {
		return nil, &domain.ValidationError{Field: "x", Message: "column out of range"}
	}
	if y < 0 || y >= n {
		return nil, &domain.ValidationError{Field: "y", Message: "row out of range"}
	}

	s.mu.RLock()
	ts, ok := s.sets[name]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrTilesetNotFound
	}

	var data []byte
	err := ts.db.QueryRowContext(ctx,
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		z, x, n-1-y,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTileNotFound
	}
	if err != nil {
		return nil, &domain.StorageError{Operation: "tile", Key: name, Err: err}
	}
	return data, nil
}

// Close closes all open tilesets.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, ts := range s.sets {
		if err := ts.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
		delete(s.sets, name)
	}
	return errors.Join(errs...)
}

func openTileset(ctx context.Context, name, path string) (*tileset, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	meta, err := readMetadata(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	ts := &tileset{db: db, meta: tilesetFromMetadata(name, path, meta)}
	if _, ok := meta["minzoom"]; !ok {
		if err := ts.scanZoomRange(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return ts, nil
}

func readMetadata(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, value FROM metadata`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[strings.ToLower(k)] = v
	}
	return meta, rows.Err()
}

// scanZoomRange fills the zoom range from the tiles table for archives
// whose metadata omits it.
func (ts *tileset) scanZoomRange(ctx context.Context) error {
	var lo, hi sql.NullInt64
	err := ts.db.QueryRowContext(ctx, `SELECT MIN(zoom_level), MAX(zoom_level) FROM tiles`).Scan(&lo, &hi)
	if err != nil {
		return fmt.Errorf("scanning zoom range: %w", err)
	}
	ts.meta.MinZoom = int(lo.Int64)
	ts.meta.MaxZoom = int(hi.Int64)
	return nil
}

func tilesetFromMetadata(name, path string, meta map[string]string) domain.Tileset {
	ts := domain.Tileset{
		Name:        name,
		Description: meta["description"],
		Format:      meta["format"],
		Attribution: meta["attribution"],
		Path:        path,
	}
	if ts.Format == "" {
		ts.Format = "png"
	}
	if v, err := strconv.Atoi(meta["minzoom"]); err == nil {
		ts.MinZoom = v
	}
	if v, err := strconv.Atoi(meta["maxzoom"]); err == nil {
		ts.MaxZoom = v
	}
	if b, ok := parseBounds(meta["bounds"]); ok {
		ts.Bounds = &b
	}
	if c, ok := parseCenter(meta["center"]); ok {
		ts.Center = &c
	}
	return ts
}

// parseBounds reads "west,south,east,north".
func parseBounds(s string) (domain.LatLngBounds, bool) {
	v, ok := parseFloats(s, 4)
	if !ok {
		return domain.LatLngBounds{}, false
	}
	return domain.NewLatLngBounds(domain.NewLatLng(v[1], v[0]), domain.NewLatLng(v[3], v[2])), true
}

// parseCenter reads "lng,lat[,zoom]".
func parseCenter(s string) (domain.LatLng, bool) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return domain.LatLng{}, false
	}
	v, ok := parseFloats(strings.Join(parts[:2], ","), 2)
	if !ok {
		return domain.LatLng{}, false
	}
	return domain.NewLatLng(v[1], v[0]), true
}

func parseFloats(s string, n int) ([]float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// DeriveTilesetName derives the tileset name from its file path.
func DeriveTilesetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
