// Package config provides configuration defaults and utilities
// for the vaultaire reader daemon.
//
// This package defines all configurable constants with documented defaults.
// The pool, user and worker defaults can be overridden via readerd.yaml or
// command-line flags; the other constants are fixed at build time.
package config

import "time"

// =============================================================================
// Broker Defaults
// =============================================================================

const (
	// QueryPort is the broker ROUTER port for point queries.
	// Inbound messages are 4 frames, outbound replies 3 frames.
	QueryPort = 5571

	// ContentsPort is the broker ROUTER port for contents queries.
	// Inbound messages are 4 frames, outbound replies 4 frames
	// (empty delimiter between client envelope and payload).
	ContentsPort = 5573

	// TelemetryPort is the broker PUB port for telemetry lines.
	// Messages are 5 frames: key, value, unit, identifier, hostname.
	TelemetryPort = 5581
)

// =============================================================================
// Object Store Defaults
// =============================================================================

const (
	// CephConfigPath is where the store client reads cluster configuration.
	CephConfigPath = "/etc/ceph/ceph.conf"

	// DefaultPool is the object store pool holding vault objects.
	// Override via config: pool, or flag: -pool
	DefaultPool = "vaultaire"

	// DefaultUser is the store user the daemon authenticates as.
	// Override via config: user, or flag: -user
	DefaultUser = "vaultaire"

	// LockTimeout is the watchdog deadline for held object locks.
	// A lock held this long means the store is wedged; the watchdog
	// raises SIGKILL rather than serve stale data.
	LockTimeout = 600 * time.Second

	// LockLeaseSlack is added to LockTimeout when requesting the lease
	// from the store, so the store-side lease always outlives the
	// local watchdog.
	LockLeaseSlack = 5 * time.Second

	// StoreTickInterval is the poll interval used when waiting on
	// store operations, short enough to notice shutdown promptly.
	StoreTickInterval = 10 * time.Millisecond
)

// =============================================================================
// Worker Defaults
// =============================================================================

const (
	// DefaultWorkers is the sentinel meaning "unset". It is resolved to
	// runtime.NumCPU() after flag parsing, never inside a flag default
	// expression.
	// Override via config: workers, or flag: -workers
	DefaultWorkers = 0

	// InboundQueueSize is the capacity of the query hand-off channel
	// between the router pump and the reader workers. A single slot
	// gives natural backpressure from workers to the socket.
	InboundQueueSize = 1

	// ContentsQueueSize is the capacity of the contents hand-off channel.
	ContentsQueueSize = 1
)

// =============================================================================
// Demo Defaults
// =============================================================================

const (
	// DemoOrigin is the origin literal that triggers synthetic data when
	// demo mode is enabled. Requests for it never touch the store.
	DemoOrigin = "BENHUR"

	// DemoPeriodSeconds is the period of the synthesized sine wave.
	DemoPeriodSeconds = 10800

	// DemoStepSeconds is the spacing between synthesized points.
	DemoStepSeconds = 5

	// DemoPointCount is the number of points synthesized per request.
	DemoPointCount = 20000
)
