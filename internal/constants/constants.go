// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Recognition gateway constants
const (
	// GatewayInitTimeout bounds the wait for the recognition process acknowledgement
	GatewayInitTimeout = 5 * time.Second

	// GatewayShutdownGrace is how long Shutdown waits for the process to exit after stdin closes
	GatewayShutdownGrace = 2 * time.Second

	// MaxReplySize is the largest reply line accepted from the recognition process
	MaxReplySize = 8 << 20

	// MaxFrameSize is the default maximum frame dimension sent to the recognition process
	MaxFrameSize = 640
)

// Detection loop constants
const (
	// DetectionInterval is the minimum spacing between detection requests (5 per second)
	DetectionInterval = 200 * time.Millisecond

	// SnapshotTimeout bounds a single camera snapshot fetch
	SnapshotTimeout = 2 * time.Second
)

// Face matching constants
const (
	// DefaultMatchDistance is the default maximum cosine distance for a store-side signature match.
	// Lower values = stricter matching
	DefaultMatchDistance = 0.08

	// FaceSignatureDim is the length of a face signature produced by the recognition process
	FaceSignatureDim = 128
)

// Visit constants
const (
	// DurationUnit is the unit past-record durations are rounded down to
	DurationUnit = time.Minute
)
