package health

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown sets the drain flag. main sets it on SIGTERM/SIGINT; /health then
// reports shutting-down with 503.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
