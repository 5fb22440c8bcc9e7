package protocol

import "fmt"

// CommandKind enumerates every command the chip accepts.
// The kind fixes the opcode, sub-opcode, framing rule and response shape.
type CommandKind int

// Command kinds.
const (
	KindGetChipStatus CommandKind = iota + 1
	KindCancelTransfer
	KindGetChipSettings
	KindSetChipSettings
	KindGetBootChipSettings
	KindSetBootChipSettings
	KindGetSPISettings
	KindSetSPISettings
	KindGetBootSPISettings
	KindSetBootSPISettings
	KindGetBootUSBSettings
	KindSetBootUSBSettings
	KindGetUSBManufacturer
	KindSetUSBManufacturer
	KindGetUSBProduct
	KindSetUSBProduct
	KindSendPassword
	KindGetGPIODirection
	KindSetGPIODirection
	KindGetGPIOValue
	KindSetGPIOValue
	KindReadEEPROM
	KindWriteEEPROM
	KindSPITransfer

	kindCount
)

// Framing selects how the leading bytes of a command report are laid out.
type Framing int

const (
	// FramingHeader is [CMD][SUB][0][0] followed by the payload
	FramingHeader Framing = iota

	// FramingEEPROM is [CMD][ADDRESS][VALUE]
	FramingEEPROM

	// FramingSPITransfer is [CMD][LEN][0][0] followed by up to 60 data bytes
	FramingSPITransfer
)

// ResponseKind enumerates the response layouts.
type ResponseKind int

// Response kinds.
const (
	ResponseEmpty ResponseKind = iota
	ResponseChipSettings
	ResponseSPISettings
	ResponseUSBSettings
	ResponseUSBString
	ResponseGPIO
	ResponseEEPROM
	ResponseSPITransfer
	ResponseDeviceStatus
)

var responseNames = [...]string{
	ResponseEmpty:        "empty",
	ResponseChipSettings: "chip settings",
	ResponseSPISettings:  "spi settings",
	ResponseUSBSettings:  "usb settings",
	ResponseUSBString:    "usb string",
	ResponseGPIO:         "gpio",
	ResponseEEPROM:       "eeprom",
	ResponseSPITransfer:  "spi transfer",
	ResponseDeviceStatus: "device status",
}

func (k ResponseKind) String() string {
	if k < 0 || int(k) >= len(responseNames) {
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
	return responseNames[k]
}

type kindInfo struct {
	name     string
	opcode   byte
	sub      byte
	framing  Framing
	response ResponseKind
}

var catalog = [kindCount]kindInfo{
	KindGetChipStatus:       {"get chip status", CmdGetChipStatus, 0x00, FramingHeader, ResponseDeviceStatus},
	KindCancelTransfer:      {"cancel transfer", CmdCancelTransfer, 0x00, FramingHeader, ResponseDeviceStatus},
	KindGetChipSettings:     {"get chip settings", CmdGetChipSettings, 0x00, FramingHeader, ResponseChipSettings},
	KindSetChipSettings:     {"set chip settings", CmdSetChipSettings, 0x00, FramingHeader, ResponseEmpty},
	KindGetBootChipSettings: {"get boot chip settings", CmdGetNVRAM, SubChipSettings, FramingHeader, ResponseChipSettings},
	KindSetBootChipSettings: {"set boot chip settings", CmdSetNVRAM, SubChipSettings, FramingHeader, ResponseEmpty},
	KindGetSPISettings:      {"get spi settings", CmdGetSPISettings, 0x00, FramingHeader, ResponseSPISettings},
	KindSetSPISettings:      {"set spi settings", CmdSetSPISettings, 0x00, FramingHeader, ResponseEmpty},
	KindGetBootSPISettings:  {"get boot spi settings", CmdGetNVRAM, SubSPISettings, FramingHeader, ResponseSPISettings},
	KindSetBootSPISettings:  {"set boot spi settings", CmdSetNVRAM, SubSPISettings, FramingHeader, ResponseEmpty},
	KindGetBootUSBSettings:  {"get boot usb settings", CmdGetNVRAM, SubUSBSettings, FramingHeader, ResponseUSBSettings},
	KindSetBootUSBSettings:  {"set boot usb settings", CmdSetNVRAM, SubUSBSettings, FramingHeader, ResponseEmpty},
	KindGetUSBManufacturer:  {"get usb manufacturer", CmdGetNVRAM, SubUSBVendor, FramingHeader, ResponseUSBString},
	KindSetUSBManufacturer:  {"set usb manufacturer", CmdSetNVRAM, SubUSBVendor, FramingHeader, ResponseEmpty},
	KindGetUSBProduct:       {"get usb product", CmdGetNVRAM, SubUSBProduct, FramingHeader, ResponseUSBString},
	KindSetUSBProduct:       {"set usb product", CmdSetNVRAM, SubUSBProduct, FramingHeader, ResponseEmpty},
	KindSendPassword:        {"send password", CmdSendPassword, 0x00, FramingHeader, ResponseEmpty},
	KindGetGPIODirection:    {"get gpio direction", CmdGetGPIODirection, 0x00, FramingHeader, ResponseGPIO},
	KindSetGPIODirection:    {"set gpio direction", CmdSetGPIODirection, 0x00, FramingHeader, ResponseEmpty},
	KindGetGPIOValue:        {"get gpio value", CmdGetGPIOValue, 0x00, FramingHeader, ResponseGPIO},
	KindSetGPIOValue:        {"set gpio value", CmdSetGPIOValue, 0x00, FramingHeader, ResponseEmpty},
	KindReadEEPROM:          {"read eeprom", CmdReadEEPROM, 0x00, FramingEEPROM, ResponseEEPROM},
	KindWriteEEPROM:         {"write eeprom", CmdWriteEEPROM, 0x00, FramingEEPROM, ResponseEmpty},
	KindSPITransfer:         {"spi transfer", CmdSPITransfer, 0x00, FramingSPITransfer, ResponseSPITransfer},
}

// Valid reports whether k names a catalog entry.
func (k CommandKind) Valid() bool {
	return k > 0 && k < kindCount
}

func (k CommandKind) info() kindInfo {
	if !k.Valid() {
		return kindInfo{}
	}
	return catalog[k]
}

// Opcode returns the command byte sent at offset 0.
func (k CommandKind) Opcode() byte { return k.info().opcode }

// SubOpcode returns the sub-command byte, or 0x00 when the opcode has none.
func (k CommandKind) SubOpcode() byte { return k.info().sub }

// Framing returns the header shape used to encode the command.
func (k CommandKind) Framing() Framing { return k.info().framing }

// Response returns the response layout the chip answers this command with.
func (k CommandKind) Response() ResponseKind { return k.info().response }

func (k CommandKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
	return catalog[k].name
}

// Kinds returns every command kind in catalog order.
func Kinds() []CommandKind {
	kinds := make([]CommandKind, 0, kindCount-1)
	for k := CommandKind(1); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// KindOf looks up the command kind for an opcode and sub-opcode pair.
// The sub-opcode is ignored for opcodes that do not use one.
func KindOf(opcode, sub byte) (CommandKind, bool) {
	for k := CommandKind(1); k < kindCount; k++ {
		info := catalog[k]
		if info.opcode != opcode {
			continue
		}
		if usesSubOpcode(opcode) && info.sub != sub {
			continue
		}
		return k, true
	}
	return 0, false
}

// usesSubOpcode reports whether the chip echoes a sub-opcode for this opcode.
func usesSubOpcode(opcode byte) bool {
	return opcode == CmdSetNVRAM || opcode == CmdGetNVRAM
}
