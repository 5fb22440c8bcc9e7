package protocol

import (
	"errors"
	"fmt"
)

// Errors returned by the command constructors.
var (
	// ErrStringTooLong indicates a USB string does not fit in one report
	ErrStringTooLong = errors.New("usb string too long")

	// ErrPasswordTooLong indicates a password longer than PasswordSize bytes
	ErrPasswordTooLong = errors.New("password too long")

	// ErrChunkTooLarge indicates more than MaxSPIChunk bytes in one transfer frame
	ErrChunkTooLarge = errors.New("spi chunk too large")

	// ErrInvalidCommand indicates a zero or mismatched command value
	ErrInvalidCommand = errors.New("invalid command")
)

// DeviceError represents a non-zero status byte returned by the chip.
type DeviceError struct {
	// Operation is the command that failed
	Operation string

	// Code is the status byte from the response
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, StatusName(e.Code), e.Code)
}

// IsDeviceError returns true if err is or wraps a DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// DeviceErrorCode returns the status code of a wrapped DeviceError.
func DeviceErrorCode(err error) (byte, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return 0, false
}

// DecodeError indicates response bytes that do not fit the expected layout.
type DecodeError struct {
	// Response is the layout that was being decoded
	Response ResponseKind

	// Reason describes the inconsistency
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %s", e.Response, e.Reason)
}

// IsDecodeError returns true if err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeErrorf(kind ResponseKind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Response: kind, Reason: fmt.Sprintf(format, args...)}
}

// StatusName returns a human-readable name for a status code.
func StatusName(code byte) string {
	switch code {
	case StatusSuccess:
		return "success"
	case StatusSPIBusUnavailable:
		return "spi bus not available"
	case StatusSPITransferInProgress:
		return "spi transfer in progress"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusEEPROMWriteFailure:
		return "eeprom write failure"
	case StatusAccessBlocked:
		return "access blocked"
	case StatusAccessRejected:
		return "access rejected"
	case StatusAccessDenied:
		return "access denied"
	default:
		return fmt.Sprintf("unknown status code 0x%02X", code)
	}
}

// CheckResponse validates a decoded response against the command that produced it.
// A mismatched opcode echo, or sub-opcode echo on NVRAM commands, is a DecodeError;
// a non-zero status is a DeviceError.
func CheckResponse(kind CommandKind, resp Response) error {
	if resp.Opcode() != kind.Opcode() {
		return decodeErrorf(kind.Response(), "opcode echo mismatch: got 0x%02X, expected 0x%02X", resp.Opcode(), kind.Opcode())
	}
	if resp.StatusCode() != StatusSuccess {
		return &DeviceError{Operation: kind.String(), Code: resp.StatusCode()}
	}
	if usesSubOpcode(kind.Opcode()) {
		if sub, ok := subOpcodeOf(resp); ok && sub != kind.SubOpcode() {
			return decodeErrorf(kind.Response(), "sub-opcode echo mismatch: got 0x%02X, expected 0x%02X", sub, kind.SubOpcode())
		}
	}
	return nil
}

func subOpcodeOf(resp Response) (byte, bool) {
	switch r := resp.(type) {
	case *EmptyResponse:
		return r.Header.SubCommand, true
	case *ChipSettingsResponse:
		return r.Header.SubCommand, true
	case *SPISettingsResponse:
		return r.Header.SubCommand, true
	case *USBSettingsResponse:
		return r.Header.SubCommand, true
	case *USBStringResponse:
		return r.Header.SubCommand, true
	default:
		return 0, false
	}
}
