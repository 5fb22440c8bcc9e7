package protocol

import (
	"encoding/binary"
	"fmt"
)

// Payload sizes of the settings records as laid out in a report.
const (
	chipSettingsSize = GPIOPinCount + 2 + 2 + 1 + 1 + PasswordSize
	spiSettingsSize  = 4 + 6*2 + 1
	usbSettingsSize  = 2 + 2 + 1 + 1
)

// Offsets of the USB settings fields inside a Get NVRAM USB response.
// The response interleaves reserved bytes, so it does not mirror the set payload.
const (
	usbRespVIDOffset     = 12
	usbRespPIDOffset     = 14
	usbRespPowerOffset   = 29
	usbRespCurrentOffset = 30
)

// ChipSettings holds the pin designations and GPIO defaults of the chip.
// Shared by the runtime (0x20/0x21) and power-up (0x60/0x61 sub 0x20) commands.
type ChipSettings struct {
	// PinDesignations holds one designation per pin GP0-GP8 (PinGPIO, PinChipSelect, PinDedicated)
	PinDesignations [GPIOPinCount]byte

	// GPIOOutputs is the default output level bitmask (bit i = GPi)
	GPIOOutputs uint16

	// GPIODirections is the default direction bitmask (1 = input, 0 = output)
	GPIODirections uint16

	// OtherSettings carries remote wake-up, interrupt mode and bus release flags
	OtherSettings byte

	// AccessControl selects the NVRAM protection (AccessUnprotected, AccessPassword, AccessLocked)
	AccessControl byte

	// NewPassword is the password installed when AccessControl is AccessPassword
	NewPassword [PasswordSize]byte
}

func (s *ChipSettings) marshal(b []byte) {
	copy(b[0:GPIOPinCount], s.PinDesignations[:])
	binary.LittleEndian.PutUint16(b[9:11], s.GPIOOutputs)
	binary.LittleEndian.PutUint16(b[11:13], s.GPIODirections)
	b[13] = s.OtherSettings
	b[14] = s.AccessControl
	copy(b[15:15+PasswordSize], s.NewPassword[:])
}

func (s *ChipSettings) unmarshal(b []byte) {
	copy(s.PinDesignations[:], b[0:GPIOPinCount])
	s.GPIOOutputs = binary.LittleEndian.Uint16(b[9:11])
	s.GPIODirections = binary.LittleEndian.Uint16(b[11:13])
	s.OtherSettings = b[13]
	s.AccessControl = b[14]
	copy(s.NewPassword[:], b[15:15+PasswordSize])
}

// SPISettings holds the SPI transfer parameters.
// Delays are expressed in units of 100 µs.
type SPISettings struct {
	// BitRate is the SPI clock in bits per second
	BitRate uint32

	// IdleChipSelect is the chip select bitmask driven while idle
	IdleChipSelect uint16

	// ActiveChipSelect is the chip select bitmask driven during a transfer
	ActiveChipSelect uint16

	// CSToDataDelay is the delay between chip select assertion and the first byte
	CSToDataDelay uint16

	// DataToCSDelay is the delay between the last byte and chip select release
	DataToCSDelay uint16

	// InterByteDelay is the delay between consecutive bytes
	InterByteDelay uint16

	// TransferSize is the number of bytes per SPI transaction
	TransferSize uint16

	// Mode is the SPI mode (0-3)
	Mode byte
}

func (s *SPISettings) marshal(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], s.BitRate)
	binary.LittleEndian.PutUint16(b[4:6], s.IdleChipSelect)
	binary.LittleEndian.PutUint16(b[6:8], s.ActiveChipSelect)
	binary.LittleEndian.PutUint16(b[8:10], s.CSToDataDelay)
	binary.LittleEndian.PutUint16(b[10:12], s.DataToCSDelay)
	binary.LittleEndian.PutUint16(b[12:14], s.InterByteDelay)
	binary.LittleEndian.PutUint16(b[14:16], s.TransferSize)
	b[16] = s.Mode
}

func (s *SPISettings) unmarshal(b []byte) {
	s.BitRate = binary.LittleEndian.Uint32(b[0:4])
	s.IdleChipSelect = binary.LittleEndian.Uint16(b[4:6])
	s.ActiveChipSelect = binary.LittleEndian.Uint16(b[6:8])
	s.CSToDataDelay = binary.LittleEndian.Uint16(b[8:10])
	s.DataToCSDelay = binary.LittleEndian.Uint16(b[10:12])
	s.InterByteDelay = binary.LittleEndian.Uint16(b[12:14])
	s.TransferSize = binary.LittleEndian.Uint16(b[14:16])
	s.Mode = b[16]
}

// USBSettings holds the power-up USB identity and power parameters.
type USBSettings struct {
	// VID is the USB vendor ID
	VID uint16

	// PID is the USB product ID
	PID uint16

	// PowerOption carries the self/bus powered and remote wake-up flags
	PowerOption byte

	// CurrentRequest is the requested bus current in units of 2 mA
	CurrentRequest byte
}

// CurrentMilliamps returns the requested bus current in milliamps.
func (s USBSettings) CurrentMilliamps() int {
	return int(s.CurrentRequest) * 2
}

func (s *USBSettings) marshal(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], s.VID)
	binary.LittleEndian.PutUint16(b[2:4], s.PID)
	b[4] = s.PowerOption
	b[5] = s.CurrentRequest
}

// DeviceStatus is the chip status reported by Cancel Transfer and Get Chip Status.
type DeviceStatus struct {
	// BusReleaseStatus is 0x01 when no external bus release request is pending
	BusReleaseStatus byte

	// BusOwner identifies the current SPI bus owner (BusOwnerNone, BusOwnerBridge, BusOwnerExternal)
	BusOwner byte

	// PasswordAttempts is the number of failed password attempts
	PasswordAttempts byte

	// PasswordGuessed reports whether the correct password was supplied
	PasswordGuessed bool
}

// MarshalBinary returns the settings in report payload layout.
func (s ChipSettings) MarshalBinary() ([]byte, error) {
	b := make([]byte, chipSettingsSize)
	s.marshal(b)
	return b, nil
}

// UnmarshalBinary decodes settings from report payload layout.
func (s *ChipSettings) UnmarshalBinary(b []byte) error {
	if len(b) < chipSettingsSize {
		return fmt.Errorf("chip settings: need %d bytes, got %d", chipSettingsSize, len(b))
	}
	s.unmarshal(b)
	return nil
}

// MarshalBinary returns the settings in report payload layout.
func (s SPISettings) MarshalBinary() ([]byte, error) {
	b := make([]byte, spiSettingsSize)
	s.marshal(b)
	return b, nil
}

// UnmarshalBinary decodes settings from report payload layout.
func (s *SPISettings) UnmarshalBinary(b []byte) error {
	if len(b) < spiSettingsSize {
		return fmt.Errorf("spi settings: need %d bytes, got %d", spiSettingsSize, len(b))
	}
	s.unmarshal(b)
	return nil
}

// MarshalBinary returns the settings in Set NVRAM payload layout.
func (s USBSettings) MarshalBinary() ([]byte, error) {
	b := make([]byte, usbSettingsSize)
	s.marshal(b)
	return b, nil
}

// UnmarshalBinary decodes settings from Set NVRAM payload layout.
func (s *USBSettings) UnmarshalBinary(b []byte) error {
	if len(b) < usbSettingsSize {
		return fmt.Errorf("usb settings: need %d bytes, got %d", usbSettingsSize, len(b))
	}
	s.VID = binary.LittleEndian.Uint16(b[0:2])
	s.PID = binary.LittleEndian.Uint16(b[2:4])
	s.PowerOption = b[4]
	s.CurrentRequest = b[5]
	return nil
}
