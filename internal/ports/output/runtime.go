package output

import "context"

// MapRuntime is the boundary to the mapping runtime that hosts one map
// instance. Every call is addressed to that map.
type MapRuntime interface {
	// Call issues a call whose result is not needed. It returns once the call
	// has been handed to the runtime.
	Call(ctx context.Context, method string, args ...any) error

	// Query issues a call and decodes the runtime's reply into result.
	Query(ctx context.Context, method string, result any, args ...any) error
}

// RuntimeProvider opens and closes per-map runtimes.
type RuntimeProvider interface {
	// Open returns the runtime for the given map id.
	Open(ctx context.Context, mapID string) (MapRuntime, error)

	// Close releases transport resources held for the map.
	Close(mapID string)
}
