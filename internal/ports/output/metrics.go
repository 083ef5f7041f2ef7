package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncBoundaryCalls increments the runtime call counter.
	IncBoundaryCalls(method string, success bool)

	// ObserveBoundaryDuration records runtime call duration.
	ObserveBoundaryDuration(method string, duration time.Duration)

	// SetActiveMaps sets the number of live maps.
	SetActiveMaps(count int)

	// AddHandles adjusts the number of outstanding layer handles.
	AddHandles(delta int)

	// IncBackgroundErrors increments the detached call failure counter.
	IncBackgroundErrors(method string)

	// IncEvents increments the relayed event counter.
	IncEvents(name string)

	// SetPresetsLoaded sets the number of loaded presets.
	SetPresetsLoaded(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncBoundaryCalls implements MetricsCollector.
func (n *NoOpMetrics) IncBoundaryCalls(_ string, _ bool) {}

// ObserveBoundaryDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveBoundaryDuration(_ string, _ time.Duration) {}

// SetActiveMaps implements MetricsCollector.
func (n *NoOpMetrics) SetActiveMaps(_ int) {}

// AddHandles implements MetricsCollector.
func (n *NoOpMetrics) AddHandles(_ int) {}

// IncBackgroundErrors implements MetricsCollector.
func (n *NoOpMetrics) IncBackgroundErrors(_ string) {}

// IncEvents implements MetricsCollector.
func (n *NoOpMetrics) IncEvents(_ string) {}

// SetPresetsLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetPresetsLoaded(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
