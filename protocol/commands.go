package protocol

import "fmt"

// Report is one 64-byte HID report as written to or read from the chip.
type Report [ReportSize]byte

// Command is a value of the command catalog that can be encoded into a report.
// Commands are immutable once constructed; use the New*Cmd constructors.
type Command interface {
	// Kind returns the catalog entry of the command
	Kind() CommandKind

	// MarshalReport encodes the command into a zero-padded report
	MarshalReport() (Report, error)
}

// Encode encodes cmd into exactly ReportSize bytes.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("command cannot be nil")
	}
	r, err := cmd.MarshalReport()
	if err != nil {
		return nil, err
	}
	return r[:], nil
}

func headerFor(kind CommandKind) CommandHeader {
	return CommandHeader{Command: kind.Opcode(), SubCommand: kind.SubOpcode()}
}

func checkKind(kind CommandKind, framing Framing) error {
	if !kind.Valid() || kind.Framing() != framing {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, kind)
	}
	return nil
}

// RequestCmd is a header-only command; the request carries no payload.
//
// Frame structure:
//
//	[CMD][SUB][0x00][0x00]
type RequestCmd struct {
	kind   CommandKind
	header CommandHeader
}

func newRequest(kind CommandKind) RequestCmd {
	return RequestCmd{kind: kind, header: headerFor(kind)}
}

// NewGetChipStatusCmd builds a Get Chip Status (0x10) command.
func NewGetChipStatusCmd() RequestCmd { return newRequest(KindGetChipStatus) }

// NewCancelTransferCmd builds a Cancel Transfer (0x11) command.
func NewCancelTransferCmd() RequestCmd { return newRequest(KindCancelTransfer) }

// NewGetChipSettingsCmd builds a Get Chip Settings (0x20) command.
func NewGetChipSettingsCmd() RequestCmd { return newRequest(KindGetChipSettings) }

// NewGetBootChipSettingsCmd builds a Get NVRAM chip settings (0x61/0x20) command.
func NewGetBootChipSettingsCmd() RequestCmd { return newRequest(KindGetBootChipSettings) }

// NewGetSPISettingsCmd builds a Get SPI Settings (0x41) command.
func NewGetSPISettingsCmd() RequestCmd { return newRequest(KindGetSPISettings) }

// NewGetBootSPISettingsCmd builds a Get NVRAM SPI settings (0x61/0x10) command.
func NewGetBootSPISettingsCmd() RequestCmd { return newRequest(KindGetBootSPISettings) }

// NewGetBootUSBSettingsCmd builds a Get NVRAM USB settings (0x61/0x30) command.
func NewGetBootUSBSettingsCmd() RequestCmd { return newRequest(KindGetBootUSBSettings) }

// NewGetUSBManufacturerCmd builds a Get NVRAM manufacturer string (0x61/0x50) command.
func NewGetUSBManufacturerCmd() RequestCmd { return newRequest(KindGetUSBManufacturer) }

// NewGetUSBProductCmd builds a Get NVRAM product string (0x61/0x40) command.
func NewGetUSBProductCmd() RequestCmd { return newRequest(KindGetUSBProduct) }

// NewGetGPIODirectionCmd builds a Get GPIO Direction (0x33) command.
func NewGetGPIODirectionCmd() RequestCmd { return newRequest(KindGetGPIODirection) }

// NewGetGPIOValueCmd builds a Get GPIO Value (0x31) command.
func NewGetGPIOValueCmd() RequestCmd { return newRequest(KindGetGPIOValue) }

// Kind implements Command.
func (c RequestCmd) Kind() CommandKind { return c.kind }

// Header returns the command header.
func (c RequestCmd) Header() CommandHeader { return c.header }

// MarshalReport implements Command.
func (c RequestCmd) MarshalReport() (Report, error) {
	var r Report
	if err := checkKind(c.kind, FramingHeader); err != nil {
		return r, err
	}
	c.header.put(r[:])
	return r, nil
}

// ChipSettingsCmd writes chip settings, either runtime or power-up.
//
// Frame structure:
//
//	[CMD][SUB][0x00][0x00][PINS(9)][OUT_L][OUT_H][DIR_L][DIR_H][OTHER][ACCESS][PASSWORD(8)]
type ChipSettingsCmd struct {
	kind     CommandKind
	header   CommandHeader
	settings ChipSettings
}

// NewSetChipSettingsCmd builds a Set Chip Settings (0x21) command.
func NewSetChipSettingsCmd(s ChipSettings) ChipSettingsCmd {
	return ChipSettingsCmd{kind: KindSetChipSettings, header: headerFor(KindSetChipSettings), settings: s}
}

// NewSetBootChipSettingsCmd builds a Set NVRAM chip settings (0x60/0x20) command.
func NewSetBootChipSettingsCmd(s ChipSettings) ChipSettingsCmd {
	return ChipSettingsCmd{kind: KindSetBootChipSettings, header: headerFor(KindSetBootChipSettings), settings: s}
}

// Kind implements Command.
func (c ChipSettingsCmd) Kind() CommandKind { return c.kind }

// Header returns the command header.
func (c ChipSettingsCmd) Header() CommandHeader { return c.header }

// Settings returns the settings carried by the command.
func (c ChipSettingsCmd) Settings() ChipSettings { return c.settings }

// MarshalReport implements Command.
func (c ChipSettingsCmd) MarshalReport() (Report, error) {
	var r Report
	if err := checkKind(c.kind, FramingHeader); err != nil {
		return r, err
	}
	c.header.put(r[:])
	c.settings.marshal(r[HeaderSize : HeaderSize+chipSettingsSize])
	return r, nil
}

// SPISettingsCmd writes SPI transfer settings, either runtime or power-up.
//
// Frame structure:
//
//	[CMD][SUB][0x00][0x00][BITRATE(4)][IDLE_CS(2)][ACTIVE_CS(2)][CS_DATA(2)][DATA_CS(2)][BYTE_DELAY(2)][SIZE(2)][MODE]
type SPISettingsCmd struct {
	kind     CommandKind
	header   CommandHeader
	settings SPISettings
}

// NewSetSPISettingsCmd builds a Set SPI Settings (0x40) command.
func NewSetSPISettingsCmd(s SPISettings) SPISettingsCmd {
	return SPISettingsCmd{kind: KindSetSPISettings, header: headerFor(KindSetSPISettings), settings: s}
}

// NewSetBootSPISettingsCmd builds a Set NVRAM SPI settings (0x60/0x10) command.
func NewSetBootSPISettingsCmd(s SPISettings) SPISettingsCmd {
	return SPISettingsCmd{kind: KindSetBootSPISettings, header: headerFor(KindSetBootSPISettings), settings: s}
}

// Kind implements Command.
func (c SPISettingsCmd) Kind() CommandKind { return c.kind }

// Header returns the command header.
func (c SPISettingsCmd) Header() CommandHeader { return c.header }

// Settings returns the settings carried by the command.
func (c SPISettingsCmd) Settings() SPISettings { return c.settings }

// MarshalReport implements Command.
func (c SPISettingsCmd) MarshalReport() (Report, error) {
	var r Report
	if err := checkKind(c.kind, FramingHeader); err != nil {
		return r, err
	}
	c.header.put(r[:])
	c.settings.marshal(r[HeaderSize : HeaderSize+spiSettingsSize])
	return r, nil
}

// USBSettingsCmd writes the power-up USB settings.
//
// Frame structure:
//
//	[0x60][0x30][0x00][0x00][VID(2)][PID(2)][POWER][CURRENT]
type USBSettingsCmd struct {
	header   CommandHeader
	settings USBSettings
}

// NewSetBootUSBSettingsCmd builds a Set NVRAM USB settings (0x60/0x30) command.
func NewSetBootUSBSettingsCmd(s USBSettings) USBSettingsCmd {
	return USBSettingsCmd{header: headerFor(KindSetBootUSBSettings), settings: s}
}

// Kind implements Command.
func (c USBSettingsCmd) Kind() CommandKind { return KindSetBootUSBSettings }

// Header returns the command header.
func (c USBSettingsCmd) Header() CommandHeader { return c.header }

// Settings returns the settings carried by the command.
func (c USBSettingsCmd) Settings() USBSettings { return c.settings }

// MarshalReport implements Command.
func (c USBSettingsCmd) MarshalReport() (Report, error) {
	var r Report
	if c.header.Command != CmdSetNVRAM {
		return r, fmt.Errorf("%w: zero USBSettingsCmd", ErrInvalidCommand)
	}
	c.header.put(r[:])
	c.settings.marshal(r[HeaderSize : HeaderSize+usbSettingsSize])
	return r, nil
}

// USBStringCmd writes the USB manufacturer or product string.
//
// Frame structure:
//
//	[0x60][SUB][0x00][0x00][STR_LEN][0x03][UTF16LE...]
//
// STR_LEN is 2 plus the number of UTF-16 bytes.
type USBStringCmd struct {
	kind   CommandKind
	header CommandHeader
	value  string
	units  []byte
}

func newUSBString(kind CommandKind, s string) (USBStringCmd, error) {
	units, err := encodeUSBString(s)
	if err != nil {
		return USBStringCmd{}, err
	}
	return USBStringCmd{kind: kind, header: headerFor(kind), value: s, units: units}, nil
}

// NewSetUSBManufacturerCmd builds a Set NVRAM manufacturer string (0x60/0x50) command.
// Returns ErrStringTooLong when s needs more than MaxStringUnits UTF-16 code units.
func NewSetUSBManufacturerCmd(s string) (USBStringCmd, error) {
	return newUSBString(KindSetUSBManufacturer, s)
}

// NewSetUSBProductCmd builds a Set NVRAM product string (0x60/0x40) command.
// Returns ErrStringTooLong when s needs more than MaxStringUnits UTF-16 code units.
func NewSetUSBProductCmd(s string) (USBStringCmd, error) {
	return newUSBString(KindSetUSBProduct, s)
}

// Kind implements Command.
func (c USBStringCmd) Kind() CommandKind { return c.kind }

// Header returns the command header.
func (c USBStringCmd) Header() CommandHeader { return c.header }

// String returns the string carried by the command.
func (c USBStringCmd) String() string { return c.value }

// MarshalReport implements Command.
func (c USBStringCmd) MarshalReport() (Report, error) {
	var r Report
	if err := checkKind(c.kind, FramingHeader); err != nil {
		return r, err
	}
	c.header.put(r[:])
	r[HeaderSize] = stringLength(len(c.units))
	r[HeaderSize+1] = StringDescriptorID
	copy(r[HeaderSize+2:], c.units)
	return r, nil
}

// PasswordCmd unlocks a password protected chip.
//
// Frame structure:
//
//	[0x70][0x00][0x00][0x00][PASSWORD(8)]
type PasswordCmd struct {
	header   CommandHeader
	password [PasswordSize]byte
}

// NewSendPasswordCmd builds a Send Access Password (0x70) command.
// Passwords shorter than PasswordSize are zero padded.
func NewSendPasswordCmd(password []byte) (PasswordCmd, error) {
	if len(password) > PasswordSize {
		return PasswordCmd{}, fmt.Errorf("%w: got %d bytes, maximum is %d", ErrPasswordTooLong, len(password), PasswordSize)
	}
	c := PasswordCmd{header: headerFor(KindSendPassword)}
	copy(c.password[:], password)
	return c, nil
}

// Kind implements Command.
func (c PasswordCmd) Kind() CommandKind { return KindSendPassword }

// Header returns the command header.
func (c PasswordCmd) Header() CommandHeader { return c.header }

// MarshalReport implements Command.
func (c PasswordCmd) MarshalReport() (Report, error) {
	var r Report
	if c.header.Command != CmdSendPassword {
		return r, fmt.Errorf("%w: zero PasswordCmd", ErrInvalidCommand)
	}
	c.header.put(r[:])
	copy(r[HeaderSize:HeaderSize+PasswordSize], c.password[:])
	return r, nil
}

// GPIOCmd writes a GPIO direction or value bitmask.
//
// Frame structure:
//
//	[CMD][0x00][0x00][0x00][MASK_L][MASK_H]
type GPIOCmd struct {
	kind   CommandKind
	header CommandHeader
	mask   uint16
}

// NewSetGPIODirectionCmd builds a Set GPIO Direction (0x32) command.
// A set bit configures the pin as an input.
func NewSetGPIODirectionCmd(mask uint16) GPIOCmd {
	return GPIOCmd{kind: KindSetGPIODirection, header: headerFor(KindSetGPIODirection), mask: mask}
}

// NewSetGPIOValueCmd builds a Set GPIO Value (0x30) command.
func NewSetGPIOValueCmd(mask uint16) GPIOCmd {
	return GPIOCmd{kind: KindSetGPIOValue, header: headerFor(KindSetGPIOValue), mask: mask}
}

// Kind implements Command.
func (c GPIOCmd) Kind() CommandKind { return c.kind }

// Header returns the command header.
func (c GPIOCmd) Header() CommandHeader { return c.header }

// Mask returns the GPIO bitmask carried by the command.
func (c GPIOCmd) Mask() uint16 { return c.mask }

// MarshalReport implements Command.
func (c GPIOCmd) MarshalReport() (Report, error) {
	var r Report
	if err := checkKind(c.kind, FramingHeader); err != nil {
		return r, err
	}
	c.header.put(r[:])
	r[HeaderSize] = byte(c.mask)
	r[HeaderSize+1] = byte(c.mask >> 8)
	return r, nil
}

// EEPROMCmd reads or writes one byte of user EEPROM.
//
// Frame structure:
//
//	[CMD][ADDRESS][VALUE]
type EEPROMCmd struct {
	kind   CommandKind
	header EEPROMCommandHeader
}

// NewReadEEPROMCmd builds a Read EEPROM (0x50) command.
func NewReadEEPROMCmd(address byte) EEPROMCmd {
	return EEPROMCmd{kind: KindReadEEPROM, header: EEPROMCommandHeader{Command: CmdReadEEPROM, Address: address}}
}

// NewWriteEEPROMCmd builds a Write EEPROM (0x51) command.
func NewWriteEEPROMCmd(address, value byte) EEPROMCmd {
	return EEPROMCmd{kind: KindWriteEEPROM, header: EEPROMCommandHeader{Command: CmdWriteEEPROM, Address: address, Value: value}}
}

// Kind implements Command.
func (c EEPROMCmd) Kind() CommandKind { return c.kind }

// Header returns the command header.
func (c EEPROMCmd) Header() EEPROMCommandHeader { return c.header }

// MarshalReport implements Command.
func (c EEPROMCmd) MarshalReport() (Report, error) {
	var r Report
	if err := checkKind(c.kind, FramingEEPROM); err != nil {
		return r, err
	}
	c.header.put(r[:])
	return r, nil
}

// SPITransferCmd exchanges up to MaxSPIChunk bytes on the SPI bus.
// An empty transfer polls the chip for data still queued from earlier frames.
//
// Frame structure:
//
//	[0x42][LEN][0x00][0x00][DATA(0-60)]
type SPITransferCmd struct {
	header SPITransferHeader
	data   []byte
}

// NewSPITransferCmd builds an SPI Transfer (0x42) command.
// The data is copied. Returns ErrChunkTooLarge for more than MaxSPIChunk bytes.
func NewSPITransferCmd(data []byte) (SPITransferCmd, error) {
	if len(data) > MaxSPIChunk {
		return SPITransferCmd{}, fmt.Errorf("%w: got %d bytes, maximum is %d", ErrChunkTooLarge, len(data), MaxSPIChunk)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return SPITransferCmd{
		header: SPITransferHeader{Command: CmdSPITransfer, Length: byte(len(data))},
		data:   buf,
	}, nil
}

// Kind implements Command.
func (c SPITransferCmd) Kind() CommandKind { return KindSPITransfer }

// Header returns the command header.
func (c SPITransferCmd) Header() SPITransferHeader { return c.header }

// Len returns the number of data bytes carried by the command.
func (c SPITransferCmd) Len() int { return len(c.data) }

// MarshalReport implements Command.
func (c SPITransferCmd) MarshalReport() (Report, error) {
	var r Report
	if c.header.Command != CmdSPITransfer {
		return r, fmt.Errorf("%w: zero SPITransferCmd", ErrInvalidCommand)
	}
	c.header.put(r[:])
	copy(r[HeaderSize:], c.data)
	return r, nil
}
