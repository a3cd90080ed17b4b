// Package tuning provides concurrency sizing for the network layer.
package tuning

import (
	"runtime"
	"time"
)

// Profile holds tuned parameters for the hub and its clients.
type Profile struct {
	// Channel buffer sizes
	BroadcastBuffer  int
	ClientSendBuffer int

	// Event log polling
	EventPollInterval time.Duration

	// Rate limiting
	MaxCommandsPerSecond int
	MaxClients           int
}

// DefaultProfile returns sensible defaults for production.
func DefaultProfile() *Profile {
	numCPU := runtime.NumCPU()

	return &Profile{
		// Larger buffers absorb notification bursts from a single tick
		BroadcastBuffer:  256,
		ClientSendBuffer: 64,

		EventPollInterval: 200 * time.Millisecond,

		MaxCommandsPerSecond: 20,
		MaxClients:           numCPU * 50,
	}
}

// LowResourceProfile returns minimal settings for development.
func LowResourceProfile() *Profile {
	return &Profile{
		BroadcastBuffer:  16,
		ClientSendBuffer: 8,

		EventPollInterval: 500 * time.Millisecond,

		MaxCommandsPerSecond: 5,
		MaxClients:           20,
	}
}
