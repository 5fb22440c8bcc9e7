package mcp2210

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/moffa90/go-mcp2210/protocol"
)

// Device is a session with one MCP2210 chip.
// It owns the property caches, the GPIO views and the EEPROM view.
//
// The protocol is half-duplex; Device serialises exchanges so it is safe for
// concurrent use, but one caller's multi-frame Transfer may interleave with
// another caller's commands.
type Device struct {
	mu     sync.Mutex
	device io.ReadWriter
	config Config

	chipSettings     *Property[protocol.ChipSettings]
	bootChipSettings *Property[protocol.ChipSettings]
	spiSettings      *Property[protocol.SPISettings]
	bootSPISettings  *Property[protocol.SPISettings]
	bootUSBSettings  *Property[protocol.USBSettings]
	manufacturer     *Property[string]
	product          *Property[string]
	gpioDirection    *GPIO
	gpioValue        *GPIO
	eeprom           *EEPROM
}

// New creates a session over device, which exchanges whole 64-byte reports:
// each Write sends one report and each Read returns one report.
//
// Example:
//
//	hid, _ := usbhid.Open(0x04D8, 0x00DE)
//	dev := mcp2210.New(hid,
//	    mcp2210.WithLogger(mcp2210.NewZapLogger(logger)),
//	    mcp2210.WithChunkDelay(5*time.Millisecond),
//	)
func New(device io.ReadWriter, opts ...Option) *Device {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Device{
		device: device,
		config: cfg,
	}

	d.chipSettings = newProperty("chip settings",
		fetchChip(d, protocol.NewGetChipSettingsCmd()),
		func(ctx context.Context, s protocol.ChipSettings) error {
			return d.sendOnly(ctx, protocol.NewSetChipSettingsCmd(s))
		})
	d.bootChipSettings = newProperty("boot chip settings",
		fetchChip(d, protocol.NewGetBootChipSettingsCmd()),
		func(ctx context.Context, s protocol.ChipSettings) error {
			return d.sendOnly(ctx, protocol.NewSetBootChipSettingsCmd(s))
		})
	d.spiSettings = newProperty("spi settings",
		fetchSPI(d, protocol.NewGetSPISettingsCmd()),
		func(ctx context.Context, s protocol.SPISettings) error {
			return d.sendOnly(ctx, protocol.NewSetSPISettingsCmd(s))
		})
	d.bootSPISettings = newProperty("boot spi settings",
		fetchSPI(d, protocol.NewGetBootSPISettingsCmd()),
		func(ctx context.Context, s protocol.SPISettings) error {
			return d.sendOnly(ctx, protocol.NewSetBootSPISettingsCmd(s))
		})
	d.bootUSBSettings = newProperty("boot usb settings",
		func(ctx context.Context) (protocol.USBSettings, error) {
			resp, err := send[*protocol.USBSettingsResponse](ctx, d, protocol.NewGetBootUSBSettingsCmd())
			if err != nil {
				return protocol.USBSettings{}, err
			}
			return resp.Settings, nil
		},
		func(ctx context.Context, s protocol.USBSettings) error {
			return d.sendOnly(ctx, protocol.NewSetBootUSBSettingsCmd(s))
		})
	d.manufacturer = newProperty("usb manufacturer",
		fetchString(d, protocol.NewGetUSBManufacturerCmd()),
		func(ctx context.Context, s string) error {
			cmd, err := protocol.NewSetUSBManufacturerCmd(s)
			if err != nil {
				return err
			}
			return d.sendOnly(ctx, cmd)
		})
	d.product = newProperty("usb product",
		fetchString(d, protocol.NewGetUSBProductCmd()),
		func(ctx context.Context, s string) error {
			cmd, err := protocol.NewSetUSBProductCmd(s)
			if err != nil {
				return err
			}
			return d.sendOnly(ctx, cmd)
		})
	d.gpioDirection = newGPIO("gpio direction",
		fetchGPIO(d, protocol.NewGetGPIODirectionCmd()),
		func(ctx context.Context, mask uint16) error {
			return d.sendOnly(ctx, protocol.NewSetGPIODirectionCmd(mask))
		})
	d.gpioValue = newGPIO("gpio value",
		fetchGPIO(d, protocol.NewGetGPIOValueCmd()),
		func(ctx context.Context, mask uint16) error {
			return d.sendOnly(ctx, protocol.NewSetGPIOValueCmd(mask))
		})
	d.eeprom = &EEPROM{d: d}

	return d
}

// ChipSettings returns the runtime chip settings (pin designations, GPIO defaults).
func (d *Device) ChipSettings() *Property[protocol.ChipSettings] { return d.chipSettings }

// BootChipSettings returns the power-up chip settings stored in NVRAM.
func (d *Device) BootChipSettings() *Property[protocol.ChipSettings] { return d.bootChipSettings }

// SPISettings returns the runtime SPI transfer settings.
func (d *Device) SPISettings() *Property[protocol.SPISettings] { return d.spiSettings }

// BootSPISettings returns the power-up SPI transfer settings stored in NVRAM.
func (d *Device) BootSPISettings() *Property[protocol.SPISettings] { return d.bootSPISettings }

// BootUSBSettings returns the power-up USB settings (VID, PID, power) stored in NVRAM.
func (d *Device) BootUSBSettings() *Property[protocol.USBSettings] { return d.bootUSBSettings }

// Manufacturer returns the USB manufacturer string stored in NVRAM.
func (d *Device) Manufacturer() *Property[string] { return d.manufacturer }

// Product returns the USB product string stored in NVRAM.
func (d *Device) Product() *Property[string] { return d.product }

// GPIODirection returns the GPIO direction mask (1 = input).
func (d *Device) GPIODirection() *GPIO { return d.gpioDirection }

// GPIOValue returns the GPIO level mask.
func (d *Device) GPIOValue() *GPIO { return d.gpioValue }

// EEPROM returns the user EEPROM view.
func (d *Device) EEPROM() *EEPROM { return d.eeprom }

// Authenticate sends the access password to a password protected chip.
// Passwords longer than 8 bytes are rejected before anything is sent.
func (d *Device) Authenticate(ctx context.Context, password []byte) error {
	cmd, err := protocol.NewSendPasswordCmd(password)
	if err != nil {
		return err
	}
	if err := d.sendOnly(ctx, cmd); err != nil {
		return err
	}
	d.logInfo("password accepted")
	return nil
}

// CancelTransfer cancels any SPI transfer in progress on the chip and returns
// the chip status. It does not interrupt exchanges already blocked on the host.
func (d *Device) CancelTransfer(ctx context.Context) (protocol.DeviceStatus, error) {
	resp, err := send[*protocol.DeviceStatusResponse](ctx, d, protocol.NewCancelTransferCmd())
	if err != nil {
		return protocol.DeviceStatus{}, err
	}
	return resp.Status, nil
}

// Status returns the chip status: SPI bus ownership and password state.
func (d *Device) Status(ctx context.Context) (protocol.DeviceStatus, error) {
	resp, err := send[*protocol.DeviceStatusResponse](ctx, d, protocol.NewGetChipStatusCmd())
	if err != nil {
		return protocol.DeviceStatus{}, err
	}
	return resp.Status, nil
}

// InvalidateCache drops every cached property.
func (d *Device) InvalidateCache() {
	d.chipSettings.Invalidate()
	d.bootChipSettings.Invalidate()
	d.spiSettings.Invalidate()
	d.bootSPISettings.Invalidate()
	d.bootUSBSettings.Invalidate()
	d.manufacturer.Invalidate()
	d.product.Invalidate()
	d.gpioDirection.Invalidate()
	d.gpioValue.Invalidate()
}

// SendCommand performs one exchange: it encodes cmd, writes the report, reads
// one report back and decodes it as the response kind the catalog assigns to
// cmd. A mismatched opcode echo is a DecodeError and a non-zero status is a
// DeviceError. Nothing is retried.
func (d *Device) SendCommand(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := protocol.Encode(cmd)
	if err != nil {
		return nil, err
	}
	kind := cmd.Kind()

	buf, err := d.exchange(kind, report)
	if err != nil {
		d.logError("exchange failed", "command", kind.String(), "error", err)
		return nil, err
	}

	resp, err := protocol.DecodeResponse(buf, kind.Response())
	if err != nil {
		d.logError("decode failed", "command", kind.String(), "error", err)
		return nil, err
	}

	d.logDebug("exchange",
		"command", kind.String(),
		"opcode", fmt.Sprintf("0x%02X", kind.Opcode()),
		"status", fmt.Sprintf("0x%02X", resp.StatusCode()),
	)

	if err := protocol.CheckResponse(kind, resp); err != nil {
		// The transfer loop retries a busy engine.
		if resp.StatusCode() == protocol.StatusSPITransferInProgress {
			d.logDebug("spi engine busy", "command", kind.String())
		} else {
			d.logError("command failed", "command", kind.String(), "error", err)
		}
		return nil, err
	}

	return resp, nil
}

// exchange writes one report and reads one report under the session lock.
func (d *Device) exchange(kind protocol.CommandKind, report []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.device.Write(report)
	if err != nil {
		return nil, &TransportError{Op: "write", Command: kind, Err: err}
	}
	if n != protocol.ReportSize {
		return nil, &TransportError{Op: "write", Command: kind,
			Err: fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, protocol.ReportSize)}
	}

	buf := make([]byte, protocol.ReportSize)
	n, err = d.device.Read(buf)
	if err != nil {
		return nil, &TransportError{Op: "read", Command: kind, Err: err}
	}
	if n != protocol.ReportSize {
		return nil, &TransportError{Op: "read", Command: kind,
			Err: fmt.Errorf("%w: %d of %d bytes", ErrShortRead, n, protocol.ReportSize)}
	}

	return buf, nil
}

// sendOnly sends a command whose response carries nothing but status.
func (d *Device) sendOnly(ctx context.Context, cmd protocol.Command) error {
	_, err := d.SendCommand(ctx, cmd)
	return err
}

// send performs an exchange and asserts the concrete response type.
func send[R protocol.Response](ctx context.Context, d *Device, cmd protocol.Command) (R, error) {
	var zero R
	resp, err := d.SendCommand(ctx, cmd)
	if err != nil {
		return zero, err
	}
	r, ok := resp.(R)
	if !ok {
		return zero, &protocol.DecodeError{
			Response: cmd.Kind().Response(),
			Reason:   fmt.Sprintf("unexpected response type %T", resp),
		}
	}
	return r, nil
}

func fetchChip(d *Device, cmd protocol.Command) func(context.Context) (protocol.ChipSettings, error) {
	return func(ctx context.Context) (protocol.ChipSettings, error) {
		resp, err := send[*protocol.ChipSettingsResponse](ctx, d, cmd)
		if err != nil {
			return protocol.ChipSettings{}, err
		}
		return resp.Settings, nil
	}
}

func fetchSPI(d *Device, cmd protocol.Command) func(context.Context) (protocol.SPISettings, error) {
	return func(ctx context.Context) (protocol.SPISettings, error) {
		resp, err := send[*protocol.SPISettingsResponse](ctx, d, cmd)
		if err != nil {
			return protocol.SPISettings{}, err
		}
		return resp.Settings, nil
	}
}

func fetchString(d *Device, cmd protocol.Command) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		resp, err := send[*protocol.USBStringResponse](ctx, d, cmd)
		if err != nil {
			return "", err
		}
		return resp.Value, nil
	}
}

func fetchGPIO(d *Device, cmd protocol.Command) func(context.Context) (uint16, error) {
	return func(ctx context.Context) (uint16, error) {
		resp, err := send[*protocol.GPIOResponse](ctx, d, cmd)
		if err != nil {
			return 0, err
		}
		return resp.Mask, nil
	}
}

// logDebug logs a debug message if a logger is configured.
func (d *Device) logDebug(msg string, keysAndValues ...interface{}) {
	if d.config.Logger != nil {
		d.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (d *Device) logInfo(msg string, keysAndValues ...interface{}) {
	if d.config.Logger != nil {
		d.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (d *Device) logError(msg string, keysAndValues ...interface{}) {
	if d.config.Logger != nil {
		d.config.Logger.Error(msg, keysAndValues...)
	}
}
