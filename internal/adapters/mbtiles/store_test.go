package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/leafsync/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type tileRow struct {
	z, x, tmsY int
	data       string
}

func createArchive(t *testing.T, path string, meta map[string]string, tiles []tileRow) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	stmts := []string{
		`CREATE TABLE metadata (name TEXT, value TEXT)`,
		`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	for k, v := range meta {
		if _, err := db.Exec(`INSERT INTO metadata VALUES (?, ?)`, k, v); err != nil {
			t.Fatalf("insert metadata: %v", err)
		}
	}
	for _, tr := range tiles {
		if _, err := db.Exec(`INSERT INTO tiles VALUES (?, ?, ?, ?)`, tr.z, tr.x, tr.tmsY, []byte(tr.data)); err != nil {
			t.Fatalf("insert tile: %v", err)
		}
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	createArchive(t, filepath.Join(dir, "harbour.mbtiles"), map[string]string{
		"name":        "Harbour",
		"format":      "jpg",
		"minzoom":     "0",
		"maxzoom":     "2",
		"bounds":      "9.9,53.5,10.1,53.6",
		"center":      "10.0,53.55,12",
		"attribution": "© Harbour Office",
	}, []tileRow{
		{z: 0, x: 0, tmsY: 0, data: "root"},
		{z: 1, x: 1, tmsY: 0, data: "south-east"},
		{z: 1, x: 1, tmsY: 1, data: "north-east"},
	})

	store := NewStore(dir, testLogger())
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return store, dir
}

func TestStoreMetadata(t *testing.T) {
	store, _ := newTestStore(t)

	ts, err := store.Get(context.Background(), "harbour")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ts.Format != "jpg" || ts.ContentType() != "image/jpeg" {
		t.Errorf("format = %q (%s)", ts.Format, ts.ContentType())
	}
	if ts.MinZoom != 0 || ts.MaxZoom != 2 {
		t.Errorf("zoom range = %d..%d, want 0..2", ts.MinZoom, ts.MaxZoom)
	}
	if ts.Bounds == nil || ts.Bounds.SouthWest.Lat != 53.5 || ts.Bounds.NorthEast.Lng != 10.1 {
		t.Errorf("bounds = %+v", ts.Bounds)
	}
	if ts.Center == nil || ts.Center.Lat != 53.55 || ts.Center.Lng != 10.0 {
		t.Errorf("center = %+v", ts.Center)
	}
	if ts.Attribution != "© Harbour Office" {
		t.Errorf("attribution = %q", ts.Attribution)
	}

	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(absent) error = %v, want ErrNotFound", err)
	}
}

func TestStoreTileFlipsRows(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		z, x, y int
		want    string
	}{
		{"root", 0, 0, 0, "root"},
		{"xyz row 0 is the northern tile", 1, 1, 0, "north-east"},
		{"xyz row 1 is the southern tile", 1, 1, 1, "south-east"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := store.Tile(ctx, "harbour", tt.z, tt.x, tt.y)
			if err != nil {
				t.Fatalf("Tile() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Tile(%d/%d/%d) = %q, want %q", tt.z, tt.x, tt.y, data, tt.want)
			}
		})
	}
}

func TestStoreTileErrors(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		set     string
		z, x, y int
		want    error
	}{
		{"missing tile", "harbour", 1, 0, 0, domain.ErrTileNotFound},
		{"unknown tileset", "absent", 0, 0, 0, domain.ErrTilesetNotFound},
		{"negative zoom", "harbour", -1, 0, 0, domain.ErrInvalidInput},
		{"zoom too deep", "harbour", 31, 0, 0, domain.ErrInvalidInput},
		{"column out of range", "harbour", 1, 2, 0, domain.ErrInvalidInput},
		{"row out of range", "harbour", 1, 0, -1, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Tile(ctx, tt.set, tt.z, tt.x, tt.y)
			if !errors.Is(err, tt.want) {
				t.Errorf("Tile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStoreRefresh(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	// Archive without zoom metadata: range comes from the tiles table.
	createArchive(t, filepath.Join(dir, "alps.mbtiles"), map[string]string{"format": "png"}, []tileRow{
		{z: 3, x: 0, tmsY: 0, data: "a"},
		{z: 5, x: 0, tmsY: 0, data: "b"},
	})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	list, _ := store.List(ctx)
	if len(list) != 2 || list[0].Name != "alps" || list[1].Name != "harbour" {
		t.Fatalf("List() = %+v, want alps and harbour", list)
	}
	if list[0].MinZoom != 3 || list[0].MaxZoom != 5 {
		t.Errorf("alps zoom range = %d..%d, want 3..5", list[0].MinZoom, list[0].MaxZoom)
	}

	if err := os.Remove(filepath.Join(dir, "harbour.mbtiles")); err != nil {
		t.Fatal(err)
	}
	if err := store.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	list, _ = store.List(ctx)
	if len(list) != 1 || list[0].Name != "alps" {
		t.Errorf("List() after removal = %+v", list)
	}
}

func TestStoreRefreshMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"), testLogger())
	err := store.Refresh(context.Background())

	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("Refresh() error = %v, want StorageError", err)
	}
}

func TestParseMetadataValues(t *testing.T) {
	if _, ok := parseBounds("1,2,3"); ok {
		t.Error("parseBounds should reject three values")
	}
	if _, ok := parseBounds("a,b,c,d"); ok {
		t.Error("parseBounds should reject non-numeric values")
	}
	if c, ok := parseCenter("13.4,52.5"); !ok || c.Lat != 52.5 || c.Lng != 13.4 {
		t.Errorf("parseCenter without zoom = %+v, %v", c, ok)
	}
	if _, ok := parseCenter("13.4"); ok {
		t.Error("parseCenter should reject a single value")
	}
}

func TestDeriveTilesetName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/tiles/harbour.mbtiles", "harbour"},
		{"alps.MBTILES", "alps"},
		{"/data/city.v2.mbtiles", "city.v2"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DeriveTilesetName(tt.path); got != tt.want {
				t.Errorf("DeriveTilesetName(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
