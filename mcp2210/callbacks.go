package mcp2210

import "time"

// Transfer phases reported in Progress.Phase.
const (
	PhaseSending  = "sending"
	PhaseDraining = "draining"
	PhaseComplete = "complete"
)

// Progress contains information about an SPI transfer in progress.
// Passed to ProgressCallback after every transfer frame.
type Progress struct {
	// Phase describes the current operation phase:
	//   "sending"  - Sending payload chunks
	//   "draining" - Polling for data still queued in the chip
	//   "complete" - All response bytes received
	Phase string

	// BytesSent is the number of payload bytes accepted by the chip so far
	BytesSent int

	// BytesReceived is the number of response bytes collected so far
	BytesReceived int

	// TotalBytes is the payload length
	TotalBytes int

	// Polls is the number of polling or busy-retry frames issued so far
	Polls int

	// EngineStatus is the SPI engine status of the last frame
	EngineStatus byte

	// Percentage is the completion percentage (0.0 to 100.0), based on bytes received
	Percentage float64

	// ElapsedTime is the time elapsed since the transfer started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every frame of an SPI transfer.
// Implementations should return quickly; the session lock is not held.
//
// Example:
//
//	dev := mcp2210.New(hid,
//	    mcp2210.WithProgressCallback(func(p mcp2210.Progress) {
//	        fmt.Printf("[%s] %d/%d bytes\n", p.Phase, p.BytesReceived, p.TotalBytes)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the session.
// NewZapLogger adapts a *zap.Logger; any other framework can be wrapped the same way.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	dev := mcp2210.New(hid, mcp2210.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
