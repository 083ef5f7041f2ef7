package domain

import "fmt"

// EventName is the name of an event raised by the mapping runtime.
type EventName string

// Viewport events.
const (
	EventZoomLevelsChange EventName = "zoomlevelschange"
	EventResize           EventName = "resize"
	EventUnload           EventName = "unload"
	EventViewReset        EventName = "viewreset"
	EventLoad             EventName = "load"
	EventZoomStart        EventName = "zoomstart"
	EventMoveStart        EventName = "movestart"
	EventZoom             EventName = "zoom"
	EventMove             EventName = "move"
	EventZoomEnd          EventName = "zoomend"
	EventMoveEnd          EventName = "moveend"
)

// Pointer events.
const (
	EventClick       EventName = "click"
	EventDblClick    EventName = "dblclick"
	EventMouseDown   EventName = "mousedown"
	EventMouseUp     EventName = "mouseup"
	EventMouseOver   EventName = "mouseover"
	EventMouseOut    EventName = "mouseout"
	EventMouseMove   EventName = "mousemove"
	EventContextMenu EventName = "contextmenu"
	EventPreClick    EventName = "preclick"
)

// Keyboard events.
const (
	EventKeyPress EventName = "keypress"
	EventKeyDown  EventName = "keydown"
	EventKeyUp    EventName = "keyup"
)

var eventNames = map[EventName]struct{}{
	EventZoomLevelsChange: {}, EventResize: {}, EventUnload: {}, EventViewReset: {},
	EventLoad: {}, EventZoomStart: {}, EventMoveStart: {}, EventZoom: {}, EventMove: {},
	EventZoomEnd: {}, EventMoveEnd: {},
	EventClick: {}, EventDblClick: {}, EventMouseDown: {}, EventMouseUp: {},
	EventMouseOver: {}, EventMouseOut: {}, EventMouseMove: {}, EventContextMenu: {},
	EventPreClick: {},
	EventKeyPress: {}, EventKeyDown: {}, EventKeyUp: {},
}

// ParseEventName validates an inbound event name.
func ParseEventName(s string) (EventName, error) {
	name := EventName(s)
	if _, ok := eventNames[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidEvent, s)
	}
	return name, nil
}

// EventNames returns every event name the relay accepts.
func EventNames() []EventName {
	names := make([]EventName, 0, len(eventNames))
	for n := range eventNames {
		names = append(names, n)
	}
	return names
}

// Event is the payload carried by a runtime event. Mouse events fill the
// position fields and resize events fill the size fields.
type Event struct {
	Name   EventName `json:"name"`
	Type   string    `json:"type,omitempty"`
	Target string    `json:"target,omitempty"`

	LatLng         *LatLng `json:"latlng,omitempty"`
	LayerPoint     *Point  `json:"layerPoint,omitempty"`
	ContainerPoint *Point  `json:"containerPoint,omitempty"`

	OldSize *Size `json:"oldSize,omitempty"`
	NewSize *Size `json:"newSize,omitempty"`
}
