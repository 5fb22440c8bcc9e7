// Package usbhid opens MCP2210 chips through HIDAPI and exposes them as
// 64-byte report streams for package mcp2210.
//
// Basic usage:
//
//	hid, err := usbhid.Open(usbhid.DefaultVendorID, usbhid.DefaultProductID,
//	    usbhid.WithReadTimeout(500*time.Millisecond),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer hid.Close()
//
//	dev, err := hid.Session(ctx)
package usbhid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/moffa90/go-mcp2210/mcp2210"
	"github.com/moffa90/go-mcp2210/protocol"
)

// Factory USB identifiers of the MCP2210.
const (
	DefaultVendorID  uint16 = 0x04D8
	DefaultProductID uint16 = 0x00DE
)

// DefaultReadTimeout bounds every report read.
const DefaultReadTimeout = time.Second

// ErrTimeout is returned by Read when no report arrives within the read timeout.
var ErrTimeout = errors.New("usbhid: read timeout")

var (
	initOnce sync.Once
	initErr  error
)

// hidDevice is the part of *hid.Device used by Device.
type hidDevice interface {
	Write(p []byte) (int, error)
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
	Close() error
}

// Info describes an attached chip.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Serial       string
	Manufacturer string
	Product      string
}

// Option configures Open.
type Option func(*options)

type options struct {
	readTimeout time.Duration
	serial      string
}

// WithReadTimeout sets how long Read waits for a report. Zero or negative
// values keep the default.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readTimeout = d
		}
	}
}

// WithSerial selects the chip with the given USB serial number.
func WithSerial(serial string) Option {
	return func(o *options) {
		o.serial = serial
	}
}

// Device is an open MCP2210 HID interface.
// Write and Read move one 64-byte report each; the HID report ID is handled internally.
type Device struct {
	dev     hidDevice
	timeout time.Duration
	out     []byte
}

func initHID() error {
	initOnce.Do(func() {
		if err := hid.Init(); err != nil {
			initErr = fmt.Errorf("could not init hid: %w", err)
		}
	})
	return initErr
}

// Enumerate lists attached chips matching vid and pid. Zero matches any.
func Enumerate(vid, pid uint16) ([]Info, error) {
	if err := initHID(); err != nil {
		return nil, err
	}
	var infos []Info
	err := hid.Enumerate(vid, pid, func(di *hid.DeviceInfo) error {
		infos = append(infos, Info{
			Path:         di.Path,
			VendorID:     di.VendorID,
			ProductID:    di.ProductID,
			Serial:       di.SerialNbr,
			Manufacturer: di.MfrStr,
			Product:      di.ProductStr,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate hid devices: %w", err)
	}
	return infos, nil
}

// Open opens the first chip matching vid and pid, or the one with the
// serial number given by WithSerial.
func Open(vid, pid uint16, opts ...Option) (*Device, error) {
	o := options{readTimeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if err := initHID(); err != nil {
		return nil, err
	}

	var (
		dev *hid.Device
		err error
	)
	if o.serial != "" {
		dev, err = hid.Open(vid, pid, o.serial)
	} else {
		dev, err = hid.OpenFirst(vid, pid)
	}
	if err != nil {
		return nil, fmt.Errorf("could not open hid device %04X:%04X: %w", vid, pid, err)
	}
	return newDevice(dev, o.readTimeout), nil
}

// OpenPath opens the chip at a platform specific HID path, as reported by Enumerate.
func OpenPath(path string, opts ...Option) (*Device, error) {
	o := options{readTimeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if err := initHID(); err != nil {
		return nil, err
	}
	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("could not open hid device %s: %w", path, err)
	}
	return newDevice(dev, o.readTimeout), nil
}

func newDevice(dev hidDevice, timeout time.Duration) *Device {
	return &Device{
		dev:     dev,
		timeout: timeout,
		out:     make([]byte, protocol.ReportSize+1),
	}
}

// Write sends one report. p must be exactly 64 bytes.
func (d *Device) Write(p []byte) (int, error) {
	if len(p) != protocol.ReportSize {
		return 0, fmt.Errorf("usbhid: report must be %d bytes, got %d", protocol.ReportSize, len(p))
	}
	// report ID 0: the chip uses unnumbered reports
	d.out[0] = 0x00
	copy(d.out[1:], p)
	n, err := d.dev.Write(d.out)
	if err != nil {
		return 0, err
	}
	n--
	if n < 0 {
		n = 0
	}
	if n > protocol.ReportSize {
		n = protocol.ReportSize
	}
	return n, nil
}

// Read receives one report into p, waiting at most the read timeout.
func (d *Device) Read(p []byte) (int, error) {
	for {
		n, err := d.dev.ReadWithTimeout(p, d.timeout)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, hid.ErrTimeout):
			return 0, fmt.Errorf("%w after %v", ErrTimeout, d.timeout)
		case strings.Contains(err.Error(), "Interrupted system call"):
			continue
		default:
			return n, err
		}
	}
}

// Close releases the device.
func (d *Device) Close() error {
	return d.dev.Close()
}

// Session builds an mcp2210 session on the device and cancels any SPI
// transfer left running by a previous user, so the first command starts
// from an idle engine.
func (d *Device) Session(ctx context.Context, opts ...mcp2210.Option) (*mcp2210.Device, error) {
	s := mcp2210.New(d, opts...)
	if _, err := s.CancelTransfer(ctx); err != nil {
		return nil, fmt.Errorf("cancel stale transfer: %w", err)
	}
	return s, nil
}
