package protocol

// Report framing constants.
const (
	// ReportSize is the size of every HID report exchanged with the chip
	ReportSize = 64

	// HeaderSize is the size of the general command and response header
	HeaderSize = 4

	// EEPROMHeaderSize is the size of the EEPROM command header
	EEPROMHeaderSize = 3

	// MaxSPIChunk is the maximum number of SPI bytes carried by one transfer frame
	MaxSPIChunk = ReportSize - HeaderSize

	// EEPROMSize is the size of the user EEPROM in bytes
	EEPROMSize = 256

	// PasswordSize is the size of the access password field
	PasswordSize = 8

	// GPIOPinCount is the number of general purpose pins (GP0-GP8)
	GPIOPinCount = 9

	// MaxStringUnits is the maximum number of UTF-16 code units in a USB string
	MaxStringUnits = (ReportSize - HeaderSize - 2) / 2

	// StringDescriptorID is the USB descriptor type tag for string descriptors
	StringDescriptorID = 0x03
)

// Command codes per the MCP2210 datasheet, section 3.
const (
	// CmdGetChipStatus reports bus ownership and password state
	CmdGetChipStatus = 0x10

	// CmdCancelTransfer cancels the current SPI transfer
	CmdCancelTransfer = 0x11

	// CmdGetChipSettings reads the current (volatile) chip settings
	CmdGetChipSettings = 0x20

	// CmdSetChipSettings writes the current (volatile) chip settings
	CmdSetChipSettings = 0x21

	// CmdSetGPIOValue sets the GPIO output levels
	CmdSetGPIOValue = 0x30

	// CmdGetGPIOValue reads the GPIO pin levels
	CmdGetGPIOValue = 0x31

	// CmdSetGPIODirection sets the GPIO directions
	CmdSetGPIODirection = 0x32

	// CmdGetGPIODirection reads the GPIO directions
	CmdGetGPIODirection = 0x33

	// CmdSetSPISettings writes the current (volatile) SPI transfer settings
	CmdSetSPISettings = 0x40

	// CmdGetSPISettings reads the current (volatile) SPI transfer settings
	CmdGetSPISettings = 0x41

	// CmdSPITransfer exchanges up to 60 bytes on the SPI bus
	CmdSPITransfer = 0x42

	// CmdReadEEPROM reads one byte of user EEPROM
	CmdReadEEPROM = 0x50

	// CmdWriteEEPROM writes one byte of user EEPROM
	CmdWriteEEPROM = 0x51

	// CmdSetNVRAM writes power-up (boot) settings
	CmdSetNVRAM = 0x60

	// CmdGetNVRAM reads power-up (boot) settings
	CmdGetNVRAM = 0x61

	// CmdSendPassword unlocks a password protected chip
	CmdSendPassword = 0x70
)

// NVRAM sub-command codes used with CmdSetNVRAM and CmdGetNVRAM.
const (
	SubSPISettings  = 0x10
	SubChipSettings = 0x20
	SubUSBSettings  = 0x30
	SubUSBProduct   = 0x40
	SubUSBVendor    = 0x50
)

// Status codes reported in byte 1 of every response.
const (
	// StatusSuccess indicates the command was executed
	StatusSuccess = 0x00

	// StatusSPIBusUnavailable indicates an external master owns the SPI bus
	StatusSPIBusUnavailable = 0xF7

	// StatusSPITransferInProgress indicates a transfer is running and the command was not accepted
	StatusSPITransferInProgress = 0xF8

	// StatusUnknownCommand indicates the opcode is not recognized
	StatusUnknownCommand = 0xF9

	// StatusEEPROMWriteFailure indicates the EEPROM write did not complete
	StatusEEPROMWriteFailure = 0xFA

	// StatusAccessBlocked indicates the settings are permanently locked
	StatusAccessBlocked = 0xFB

	// StatusAccessRejected indicates a wrong password while attempts remain
	StatusAccessRejected = 0xFC

	// StatusAccessDenied indicates the password attempt limit was reached
	StatusAccessDenied = 0xFD
)

// SPI engine status values (byte 3 of a transfer response).
const (
	// EngineFinished means the transfer is done and no more data is pending
	EngineFinished = 0x10

	// EngineStarted means the transfer started but no data was received yet
	EngineStarted = 0x20

	// EnginePending means the transfer is in progress and data is available
	EnginePending = 0x30
)

// Pin designation values for ChipSettings.PinDesignations.
const (
	PinGPIO       = 0x00
	PinChipSelect = 0x01
	PinDedicated  = 0x02
)

// Bus owner values reported in DeviceStatus.BusOwner.
const (
	BusOwnerNone     = 0x00
	BusOwnerBridge   = 0x01
	BusOwnerExternal = 0x02
)

// Access control values for ChipSettings.AccessControl.
const (
	AccessUnprotected = 0x00
	AccessPassword    = 0x40
	AccessLocked      = 0x80
)
