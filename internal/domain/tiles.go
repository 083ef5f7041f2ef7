package domain

// Tileset describes an MBTiles archive served by the tile store.
type Tileset struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Format      string        `json:"format"`
	MinZoom     int           `json:"minZoom"`
	MaxZoom     int           `json:"maxZoom"`
	Bounds      *LatLngBounds `json:"bounds,omitempty"`
	Center      *LatLng       `json:"center,omitempty"`
	Attribution string        `json:"attribution,omitempty"`
	Path        string        `json:"-"`
}

// ContentType returns the HTTP content type of the tile format.
func (t Tileset) ContentType() string {
	switch t.Format {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "pbf":
		return "application/x-protobuf"
	default:
		return "application/octet-stream"
	}
}
