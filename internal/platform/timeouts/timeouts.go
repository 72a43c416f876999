// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps a single API request, including the engine commit.
const Request = 10 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// KeeperSweep caps one scheduler check-and-finalize pass.
const KeeperSweep = 30 * time.Second
