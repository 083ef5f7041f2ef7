package application

import (
	"fmt"

	"github.com/jobrunner/leafsync/internal/domain"
)

// Runtime method names.
const (
	MethodCreate  = "create"
	MethodDispose = "dispose"

	MethodAddTileLayer           = "addTilelayer"
	MethodAddMbTilesLayer        = "addMbTilesLayer"
	MethodAddShapefileLayer      = "addShapefileLayer"
	MethodAddMarker              = "addMarker"
	MethodAddRectangle           = "addRectangle"
	MethodAddCircle              = "addCircle"
	MethodAddPolygon             = "addPolygon"
	MethodAddPolyline            = "addPolyline"
	MethodAddImageLayer          = "addImageLayer"
	MethodAddGeoJSONLayer        = "addGeoJsonLayer"
	MethodAddHeatLayer           = "addHeatLayer"
	MethodAddMarkerToCluster     = "addMarkerToCluster"
	MethodRemoveLayer            = "removeLayer"
	MethodRemoveLayerFromCluster = "removeLayerFromCluster"
	MethodAddMarkers             = "addMarkers"

	MethodUpdatePopupContent        = "updatePopupContent"
	MethodUpdateTooltipContent      = "updateTooltipContent"
	MethodUpdateRectangle           = "updateRectangle"
	MethodUpdateCircle              = "updateCircle"
	MethodUpdatePolygon             = "updatePolygon"
	MethodUpdatePolyline            = "updatePolyline"
	MethodUpdateHeatOptions         = "updateHeatOptions"
	MethodStyleGeoJSONLayerFeatures = "styleGeoJsonLayerFeatures"

	MethodPanTo              = "panTo"
	MethodFlyTo              = "flyTo"
	MethodFlyToBounds        = "flyToBounds"
	MethodFitBounds          = "fitBounds"
	MethodSetMaxBounds       = "setMaxBounds"
	MethodSetZoom            = "setZoom"
	MethodZoomIn             = "zoomIn"
	MethodZoomOut            = "zoomOut"
	MethodInvalidateSize     = "invalidateSize"
	MethodDisableInteraction = "disableInteraction"
	MethodEnableInteraction  = "enableInteraction"

	MethodGetCenter      = "getCenter"
	MethodGetZoom        = "getZoom"
	MethodGetBounds      = "getBounds"
	MethodGetLayerBounds = "getLayerBounds"
)

// addMethod returns the create method for a layer variant.
func addMethod(layer domain.Layer) (string, error) {
	switch layer.(type) {
	case *domain.TileLayer:
		return MethodAddTileLayer, nil
	case *domain.MbTilesLayer:
		return MethodAddMbTilesLayer, nil
	case *domain.ShapefileLayer:
		return MethodAddShapefileLayer, nil
	case *domain.Marker:
		return MethodAddMarker, nil
	case *domain.Rectangle:
		return MethodAddRectangle, nil
	case *domain.Circle:
		return MethodAddCircle, nil
	case *domain.Polygon:
		return MethodAddPolygon, nil
	case *domain.Polyline:
		return MethodAddPolyline, nil
	case *domain.ImageLayer:
		return MethodAddImageLayer, nil
	case *domain.GeoJSONDataLayer:
		return MethodAddGeoJSONLayer, nil
	case *domain.HeatLayer:
		return MethodAddHeatLayer, nil
	default:
		return "", fmt.Errorf("%w: no create call for %T", domain.ErrNotSupported, layer)
	}
}

// clusterAddMethod returns the create-in-cluster method. Only markers can be
// clustered.
func clusterAddMethod(layer domain.Layer) (string, error) {
	if _, ok := layer.(*domain.Marker); ok {
		return MethodAddMarkerToCluster, nil
	}
	return "", fmt.Errorf("%w: %T cannot join a cluster", domain.ErrNotSupported, layer)
}

// createMethod picks the plain or cluster create path.
func createMethod(layer domain.Layer) (string, error) {
	if layer.Cluster() != nil {
		return clusterAddMethod(layer)
	}
	return addMethod(layer)
}

// updateShapeMethod returns the geometry update method. Only vector shapes
// support in-place geometry updates.
func updateShapeMethod(layer domain.Layer) (string, error) {
	switch layer.(type) {
	case *domain.Rectangle:
		return MethodUpdateRectangle, nil
	case *domain.Circle:
		return MethodUpdateCircle, nil
	case *domain.Polygon:
		return MethodUpdatePolygon, nil
	case *domain.Polyline:
		return MethodUpdatePolyline, nil
	default:
		return "", fmt.Errorf("%w: %T has no shape update", domain.ErrNotSupported, layer)
	}
}
