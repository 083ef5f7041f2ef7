package output

import (
	"context"

	"github.com/jobrunner/leafsync/internal/domain"
)

// TileStore serves pre-rendered tiles for MbTilesLayer URLs.
type TileStore interface {
	// List returns the available tilesets.
	List(ctx context.Context) ([]domain.Tileset, error)

	// Get returns the metadata of one tileset.
	Get(ctx context.Context, name string) (domain.Tileset, error)

	// Tile returns the raw tile bytes in XYZ addressing.
	Tile(ctx context.Context, tileset string, z, x, y int) ([]byte, error)

	// Close closes all open tilesets.
	Close() error
}
