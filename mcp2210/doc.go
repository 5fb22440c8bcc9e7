// Package mcp2210 provides a session API for the Microchip MCP2210 USB-to-SPI/GPIO bridge.
//
// # Overview
//
// A Device wraps any io.ReadWriter that exchanges whole 64-byte HID reports
// (see package usbhid for a hidapi backed one) and exposes:
//   - Cached, write-through properties for chip, SPI and USB settings
//   - Whole-mask and per-pin GPIO direction and value access
//   - Byte and range access to the 256-byte user EEPROM
//   - Chunked SPI transfers with drain polling
//   - Password authentication, chip status and transfer cancellation
//
// # Basic Usage
//
//	hid, err := usbhid.Open(usbhid.DefaultVendorID, usbhid.DefaultProductID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer hid.Close()
//
//	dev := mcp2210.New(hid)
//
//	rx, err := dev.Transfer(ctx, []byte{0x9F, 0, 0, 0})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Properties
//
// Settings are read from the chip on first access and cached. Writes go
// straight to the chip and update the cache without reading back:
//
//	spi, err := dev.SPISettings().Get(ctx)
//	spi.BitRate = 1_000_000
//	spi.Mode = 0
//	err = dev.SPISettings().Set(ctx, spi)
//
// GPIO inputs change under the host's feet; call Invalidate before reading
// levels that may have moved:
//
//	dev.GPIOValue().Invalidate()
//	high, err := dev.GPIOValue().Bit(ctx, 3)
//
// # Error Handling
//
// Three kinds of failure are distinguished:
//   - *TransportError: the underlying read or write failed or was short
//   - *protocol.DecodeError: the response did not fit the expected shape
//   - *protocol.DeviceError: the chip returned a non-zero status code
//
// SPI transfers that never drain fail with *TransferIncompleteError. Nothing
// is retried automatically except busy frames inside Transfer.
//
// # Logging
//
// Pass a zap logger through NewZapLogger, or implement Logger:
//
//	dev := mcp2210.New(hid, mcp2210.WithLogger(mcp2210.NewZapLogger(zapLogger)))
//
// # Thread Safety
//
// Exchanges are serialised by the Device, so one Device may be shared between
// goroutines. A Transfer spans several exchanges and is not atomic with
// respect to other callers.
package mcp2210
