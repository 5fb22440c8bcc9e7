package profile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-mcp2210/protocol"
)

// Limits checked by Validate.
const (
	// MaxSPIMode is the highest SPI mode
	MaxSPIMode = 3

	// MaxCurrentMilliamps is the highest USB current request (255 units of 2 mA)
	MaxCurrentMilliamps = 510

	// pinMask covers GP0-GP8
	pinMask = 1<<protocol.GPIOPinCount - 1
)

// ErrInvalidProfile wraps every Validate failure.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is a set of chip settings stored as YAML. Every section is optional;
// absent sections are neither captured nor applied.
type Profile struct {
	// Name is a free-form label
	Name string `yaml:"name,omitempty"`

	// Chip holds pin designations and GPIO defaults
	Chip *Chip `yaml:"chip,omitempty"`

	// SPI holds the SPI transfer parameters
	SPI *SPI `yaml:"spi,omitempty"`

	// USB holds the USB identity; only applied to power-up settings
	USB *USB `yaml:"usb,omitempty"`

	// EEPROM lists blocks of user EEPROM content
	EEPROM []EEPROMBlock `yaml:"eeprom,omitempty"`
}

// Chip is the profile form of protocol.ChipSettings.
// Access control is deliberately absent; see Apply.
type Chip struct {
	Pins          []PinFunction `yaml:"pins"`
	GPIODirection uint16        `yaml:"gpio_direction"`
	GPIOValue     uint16        `yaml:"gpio_value"`
	Other         byte          `yaml:"other"`
}

// SPI is the profile form of protocol.SPISettings. Delays are in units of 100 µs.
type SPI struct {
	BitRate          uint32 `yaml:"bit_rate"`
	IdleChipSelect   uint16 `yaml:"idle_cs"`
	ActiveChipSelect uint16 `yaml:"active_cs"`
	CSToDataDelay    uint16 `yaml:"cs_to_data_delay"`
	DataToCSDelay    uint16 `yaml:"data_to_cs_delay"`
	InterByteDelay   uint16 `yaml:"inter_byte_delay"`
	TransferSize     uint16 `yaml:"transfer_size"`
	Mode             byte   `yaml:"mode"`
}

// USB is the profile form of protocol.USBSettings plus the USB strings.
type USB struct {
	VendorID     uint16 `yaml:"vid"`
	ProductID    uint16 `yaml:"pid"`
	PowerOption  byte   `yaml:"power_option"`
	CurrentMA    int    `yaml:"current_ma"`
	Manufacturer string `yaml:"manufacturer,omitempty"`
	Product      string `yaml:"product,omitempty"`
}

// EEPROMBlock is a run of bytes starting at Address.
type EEPROMBlock struct {
	Address int      `yaml:"address"`
	Data    HexBytes `yaml:"data"`
}

// Parse reads a profile from a YAML file.
//
// Example:
//
//	p, err := profile.Parse("flash-adapter.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("SPI clock: %d Hz\n", p.SPI.BitRate)
func Parse(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader reads a profile from any io.Reader and validates it.
// Unknown keys are rejected.
func ParseReader(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty profile")
		}
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Encode writes the profile as YAML.
func (p *Profile) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return enc.Close()
}

// Validate checks every present section against the chip's limits.
func (p *Profile) Validate() error {
	if p.Chip != nil {
		if len(p.Chip.Pins) != protocol.GPIOPinCount {
			return invalidf("chip.pins: got %d entries, expected %d", len(p.Chip.Pins), protocol.GPIOPinCount)
		}
		if p.Chip.GPIODirection&^pinMask != 0 {
			return invalidf("chip.gpio_direction: 0x%04X sets bits above GP8", p.Chip.GPIODirection)
		}
		if p.Chip.GPIOValue&^pinMask != 0 {
			return invalidf("chip.gpio_value: 0x%04X sets bits above GP8", p.Chip.GPIOValue)
		}
	}

	if p.SPI != nil {
		if p.SPI.Mode > MaxSPIMode {
			return invalidf("spi.mode: %d (valid 0-%d)", p.SPI.Mode, MaxSPIMode)
		}
		if p.SPI.BitRate == 0 {
			return invalidf("spi.bit_rate: must be non-zero")
		}
	}

	if p.USB != nil {
		if p.USB.CurrentMA < 0 || p.USB.CurrentMA > MaxCurrentMilliamps || p.USB.CurrentMA%2 != 0 {
			return invalidf("usb.current_ma: %d (even value 0-%d)", p.USB.CurrentMA, MaxCurrentMilliamps)
		}
		if _, err := protocol.NewSetUSBManufacturerCmd(p.USB.Manufacturer); err != nil {
			return invalidf("usb.manufacturer: %v", err)
		}
		if _, err := protocol.NewSetUSBProductCmd(p.USB.Product); err != nil {
			return invalidf("usb.product: %v", err)
		}
	}

	var used [protocol.EEPROMSize]bool
	for i, b := range p.EEPROM {
		if b.Address < 0 || b.Address+len(b.Data) > protocol.EEPROMSize {
			return invalidf("eeprom[%d]: %d bytes at 0x%02X exceed the %d byte eeprom", i, len(b.Data), b.Address, protocol.EEPROMSize)
		}
		for a := b.Address; a < b.Address+len(b.Data); a++ {
			if used[a] {
				return invalidf("eeprom[%d]: address 0x%02X overlaps an earlier block", i, a)
			}
			used[a] = true
		}
	}

	return nil
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidProfile, fmt.Sprintf(format, args...))
}

// ChipSettings converts the chip section, keeping the access fields of base.
func (c *Chip) ChipSettings(base protocol.ChipSettings) protocol.ChipSettings {
	s := base
	for i := range s.PinDesignations {
		if i < len(c.Pins) {
			s.PinDesignations[i] = byte(c.Pins[i])
		}
	}
	s.GPIODirections = c.GPIODirection
	s.GPIOOutputs = c.GPIOValue
	s.OtherSettings = c.Other
	return s
}

func chipFrom(s protocol.ChipSettings) *Chip {
	c := &Chip{
		Pins:          make([]PinFunction, protocol.GPIOPinCount),
		GPIODirection: s.GPIODirections,
		GPIOValue:     s.GPIOOutputs,
		Other:         s.OtherSettings,
	}
	for i, d := range s.PinDesignations {
		c.Pins[i] = PinFunction(d)
	}
	return c
}

// SPISettings converts the SPI section.
func (s *SPI) SPISettings() protocol.SPISettings {
	return protocol.SPISettings{
		BitRate:          s.BitRate,
		IdleChipSelect:   s.IdleChipSelect,
		ActiveChipSelect: s.ActiveChipSelect,
		CSToDataDelay:    s.CSToDataDelay,
		DataToCSDelay:    s.DataToCSDelay,
		InterByteDelay:   s.InterByteDelay,
		TransferSize:     s.TransferSize,
		Mode:             s.Mode,
	}
}

func spiFrom(s protocol.SPISettings) *SPI {
	return &SPI{
		BitRate:          s.BitRate,
		IdleChipSelect:   s.IdleChipSelect,
		ActiveChipSelect: s.ActiveChipSelect,
		CSToDataDelay:    s.CSToDataDelay,
		DataToCSDelay:    s.DataToCSDelay,
		InterByteDelay:   s.InterByteDelay,
		TransferSize:     s.TransferSize,
		Mode:             s.Mode,
	}
}

// USBSettings converts the USB section.
func (u *USB) USBSettings() protocol.USBSettings {
	return protocol.USBSettings{
		VID:            u.VendorID,
		PID:            u.ProductID,
		PowerOption:    u.PowerOption,
		CurrentRequest: byte(u.CurrentMA / 2),
	}
}
