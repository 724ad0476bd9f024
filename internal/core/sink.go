package core

import "context"

// HealthStatus represents component health states for status reporting.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthError    HealthStatus = "ERROR"
	HealthUnknown  HealthStatus = "UNKNOWN"
)

// Sink is the contract every downstream store implements. Store must be safe
// to call once per poll cycle; it is never called concurrently with itself.
type Sink interface {
	Name() string
	Store(ctx context.Context, snapshot *StatusSnapshot) error
}

// Closer is implemented by sinks that hold connections.
type Closer interface {
	Close() error
}

// Dashboard is a Grafana dashboard asset embedded by a component.
type Dashboard struct {
	Name string
	JSON []byte
}
