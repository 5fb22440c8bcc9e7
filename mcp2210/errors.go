package mcp2210

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-mcp2210/protocol"
)

var (
	// ErrShortWrite indicates the transport accepted fewer than 64 bytes
	ErrShortWrite = errors.New("short write")

	// ErrShortRead indicates the transport returned fewer than 64 bytes
	ErrShortRead = errors.New("short read")

	// ErrInvalidPin indicates a GPIO index outside 0-8
	ErrInvalidPin = errors.New("invalid gpio pin")

	// ErrAddressOutOfRange indicates an EEPROM access outside 0-255
	ErrAddressOutOfRange = errors.New("eeprom address out of range")

	// ErrTransferTooLarge indicates a payload too long for the SPI transfer size setting
	ErrTransferTooLarge = errors.New("transfer too large")
)

// TransportError wraps a failure of the underlying device transport.
// The original error is available through errors.Unwrap.
type TransportError struct {
	// Op is "write" or "read"
	Op string

	// Command is the command being exchanged
	Command protocol.CommandKind

	// Err is the transport error
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s report: %v", e.Command, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TransferIncompleteError indicates the chip never returned as many bytes as were sent.
type TransferIncompleteError struct {
	Expected int
	Received int
	Polls    int
}

func (e *TransferIncompleteError) Error() string {
	return fmt.Sprintf("spi transfer incomplete: received %d of %d bytes after %d polls",
		e.Received, e.Expected, e.Polls)
}

// EEPROMVerifyError indicates that a read-back EEPROM byte differs from the byte written.
type EEPROMVerifyError struct {
	Address  int
	Expected byte
	Actual   byte
}

func (e *EEPROMVerifyError) Error() string {
	return fmt.Sprintf("eeprom verify failed at 0x%02X: wrote 0x%02X, read 0x%02X",
		e.Address, e.Expected, e.Actual)
}
