package mcp2210

import (
	"time"

	"github.com/moffa90/go-mcp2210/protocol"
)

// Config holds the session configuration.
type Config struct {
	// ProgressCallback is called during SPI transfers to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging exchanges (optional)
	Logger Logger

	// ChunkSize is the maximum number of SPI bytes per transfer frame
	// Default is 60 bytes (64-byte report - 4 byte header)
	ChunkSize int

	// ChunkDelay is the pause after each transfer frame carrying data
	ChunkDelay time.Duration

	// PollDelay is the pause between empty polling frames while draining
	PollDelay time.Duration

	// MaxPolls bounds the number of polling and busy-retry frames per transfer
	MaxPolls int

	// AutoTransferSize updates the SPI bytes-per-transaction setting to the
	// payload length before each transfer
	AutoTransferSize bool

	// VerifyEEPROMWrites reads back every EEPROM byte after writing it
	VerifyEEPROMWrites bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ChunkSize:  protocol.MaxSPIChunk,
		ChunkDelay: 10 * time.Millisecond,
		PollDelay:  10 * time.Millisecond,
		MaxPolls:   256,
	}
}

// Option is a functional option for configuring the Device.
type Option func(*Config)

// WithProgressCallback sets a callback function to track SPI transfer progress.
//
// Example:
//
//	dev := mcp2210.New(hid,
//	    mcp2210.WithProgressCallback(func(p mcp2210.Progress) {
//	        fmt.Printf("%.1f%% transferred\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the session.
//
// Example:
//
//	dev := mcp2210.New(hid, mcp2210.WithLogger(mcp2210.NewZapLogger(zapLogger)))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkSize sets the maximum number of SPI bytes per transfer frame.
// Values outside 1-60 are ignored.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= protocol.MaxSPIChunk {
			c.ChunkSize = size
		}
	}
}

// WithChunkDelay sets the pause after each transfer frame carrying data.
// Default is 10ms, which gives the chip time to move data through its buffers.
func WithChunkDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.ChunkDelay = delay
		}
	}
}

// WithPollDelay sets the pause between empty polling frames.
func WithPollDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.PollDelay = delay
		}
	}
}

// WithMaxPolls bounds the number of polling and busy-retry frames per transfer.
// A transfer exceeding the bound fails with TransferIncompleteError.
//
// Example:
//
//	dev := mcp2210.New(hid, mcp2210.WithMaxPolls(32))
func WithMaxPolls(polls int) Option {
	return func(c *Config) {
		if polls >= 0 {
			c.MaxPolls = polls
		}
	}
}

// WithAutoTransferSize enables updating the SPI transfer size setting to the
// payload length before each transfer. Default is false.
func WithAutoTransferSize(enabled bool) Option {
	return func(c *Config) {
		c.AutoTransferSize = enabled
	}
}

// WithEEPROMVerify enables reading back every EEPROM byte after it is written.
// Default is false.
func WithEEPROMVerify(verify bool) Option {
	return func(c *Config) {
		c.VerifyEEPROMWrites = verify
	}
}
