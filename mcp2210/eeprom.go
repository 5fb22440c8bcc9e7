package mcp2210

import (
	"context"
	"fmt"

	"github.com/moffa90/go-mcp2210/protocol"
)

// EEPROM gives byte-addressed access to the chip's 256-byte user EEPROM.
// The protocol moves one byte per exchange; ranges are split into single-byte commands.
type EEPROM struct {
	d *Device
}

// Size returns the EEPROM size in bytes.
func (e *EEPROM) Size() int {
	return protocol.EEPROMSize
}

// Byte reads the byte at address.
func (e *EEPROM) Byte(ctx context.Context, address int) (byte, error) {
	if err := checkRange(address, 1); err != nil {
		return 0, err
	}
	resp, err := send[*protocol.ReadEEPROMResponse](ctx, e.d, protocol.NewReadEEPROMCmd(byte(address)))
	if err != nil {
		return 0, err
	}
	return resp.Data, nil
}

// SetByte writes value at address. When EEPROM verification is enabled the
// byte is read back and compared.
func (e *EEPROM) SetByte(ctx context.Context, address int, value byte) error {
	if err := checkRange(address, 1); err != nil {
		return err
	}
	if _, err := e.d.SendCommand(ctx, protocol.NewWriteEEPROMCmd(byte(address), value)); err != nil {
		return err
	}
	if !e.d.config.VerifyEEPROMWrites {
		return nil
	}
	got, err := e.Byte(ctx, address)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if got != value {
		return &EEPROMVerifyError{Address: address, Expected: value, Actual: got}
	}
	return nil
}

// ReadRange reads n bytes starting at address.
func (e *EEPROM) ReadRange(ctx context.Context, address, n int) ([]byte, error) {
	if err := checkRange(address, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		b, err := e.Byte(ctx, address+i)
		if err != nil {
			return nil, fmt.Errorf("read eeprom 0x%02X: %w", address+i, err)
		}
		out[i] = b
	}
	return out, nil
}

// WriteRange writes data starting at address.
func (e *EEPROM) WriteRange(ctx context.Context, address int, data []byte) error {
	if err := checkRange(address, len(data)); err != nil {
		return err
	}
	for i, b := range data {
		if err := e.SetByte(ctx, address+i, b); err != nil {
			return fmt.Errorf("write eeprom 0x%02X: %w", address+i, err)
		}
	}
	return nil
}

func checkRange(address, n int) error {
	if address < 0 || n < 0 || address+n > protocol.EEPROMSize || (n == 0 && address >= protocol.EEPROMSize) {
		return fmt.Errorf("%w: address %d length %d (size %d)", ErrAddressOutOfRange, address, n, protocol.EEPROMSize)
	}
	return nil
}
