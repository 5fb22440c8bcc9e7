package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/moffa90/go-mcp2210/mcp2210"
	"github.com/moffa90/go-mcp2210/protocol"
)

// Scope selects which copy of the settings a profile is captured from or applied to.
type Scope int

const (
	// Runtime is the volatile copy used until the next power cycle
	Runtime Scope = iota

	// Boot is the NVRAM copy loaded at power-up
	Boot
)

func (s Scope) String() string {
	switch s {
	case Runtime:
		return "runtime"
	case Boot:
		return "boot"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ErrProtected is returned by Apply when boot chip settings would be written
// to a chip whose access control is not unprotected. The chip never reports
// its password, so rewriting the record would clobber it.
var ErrProtected = errors.New("chip settings are access protected")

// CaptureOptions controls what Capture reads.
type CaptureOptions struct {
	// Scope selects runtime or boot chip and SPI settings
	Scope Scope

	// USB includes the boot USB settings and strings
	USB bool

	// EEPROM includes a dump of the whole user EEPROM
	EEPROM bool
}

// Capture reads the device's current settings into a new profile.
//
// Example:
//
//	p, err := profile.Capture(ctx, dev, profile.CaptureOptions{Scope: profile.Boot, USB: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = p.Encode(os.Stdout)
func Capture(ctx context.Context, dev *mcp2210.Device, opts CaptureOptions) (*Profile, error) {
	chipProp, spiProp := scoped(dev, opts.Scope)

	chip, err := chipProp.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", chipProp.Name(), err)
	}
	spi, err := spiProp.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", spiProp.Name(), err)
	}

	p := &Profile{
		Chip: chipFrom(chip),
		SPI:  spiFrom(spi),
	}

	if opts.USB {
		usb, err := dev.BootUSBSettings().Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read usb settings: %w", err)
		}
		mfr, err := dev.Manufacturer().Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read manufacturer: %w", err)
		}
		prod, err := dev.Product().Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read product: %w", err)
		}
		p.USB = &USB{
			VendorID:     usb.VID,
			ProductID:    usb.PID,
			PowerOption:  usb.PowerOption,
			CurrentMA:    usb.CurrentMilliamps(),
			Manufacturer: mfr,
			Product:      prod,
		}
	}

	if opts.EEPROM {
		data, err := dev.EEPROM().ReadRange(ctx, 0, protocol.EEPROMSize)
		if err != nil {
			return nil, err
		}
		p.EEPROM = []EEPROMBlock{{Address: 0, Data: data}}
	}

	return p, nil
}

// Apply writes every present section of the profile to the device.
//
// Chip and SPI sections go to the copy selected by scope. The USB section
// is power-up only and is skipped for Runtime. EEPROM blocks are written in
// both scopes. The chip's access control fields are read and preserved;
// for Boot scope a protected chip yields ErrProtected.
func Apply(ctx context.Context, dev *mcp2210.Device, p *Profile, scope Scope) error {
	if err := p.Validate(); err != nil {
		return err
	}
	chipProp, spiProp := scoped(dev, scope)

	if p.Chip != nil {
		cur, err := chipProp.Get(ctx)
		if err != nil {
			return fmt.Errorf("read %s: %w", chipProp.Name(), err)
		}
		if scope == Boot && cur.AccessControl != protocol.AccessUnprotected {
			return fmt.Errorf("write %s: %w", chipProp.Name(), ErrProtected)
		}
		if err := chipProp.Set(ctx, p.Chip.ChipSettings(cur)); err != nil {
			return fmt.Errorf("write %s: %w", chipProp.Name(), err)
		}
	}

	if p.SPI != nil {
		if err := spiProp.Set(ctx, p.SPI.SPISettings()); err != nil {
			return fmt.Errorf("write %s: %w", spiProp.Name(), err)
		}
	}

	if p.USB != nil && scope == Boot {
		if err := dev.BootUSBSettings().Set(ctx, p.USB.USBSettings()); err != nil {
			return fmt.Errorf("write usb settings: %w", err)
		}
		if p.USB.Manufacturer != "" {
			if err := dev.Manufacturer().Set(ctx, p.USB.Manufacturer); err != nil {
				return fmt.Errorf("write manufacturer: %w", err)
			}
		}
		if p.USB.Product != "" {
			if err := dev.Product().Set(ctx, p.USB.Product); err != nil {
				return fmt.Errorf("write product: %w", err)
			}
		}
	}

	for _, b := range p.EEPROM {
		if err := dev.EEPROM().WriteRange(ctx, b.Address, b.Data); err != nil {
			return err
		}
	}

	if p.Chip != nil && scope == Runtime {
		// runtime chip settings reload the GPIO state
		dev.GPIODirection().Invalidate()
		dev.GPIOValue().Invalidate()
	}
	return nil
}

func scoped(dev *mcp2210.Device, scope Scope) (*mcp2210.Property[protocol.ChipSettings], *mcp2210.Property[protocol.SPISettings]) {
	if scope == Boot {
		return dev.BootChipSettings(), dev.BootSPISettings()
	}
	return dev.ChipSettings(), dev.SPISettings()
}
