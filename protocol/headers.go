package protocol

// The chip uses three command header shapes and four response header shapes.
// Each is a distinct type and every command or response names its header
// as an explicit field.

// CommandHeader is the general 4-byte command header:
//
//	[CMD][SUB][0x00][0x00]
type CommandHeader struct {
	Command    byte
	SubCommand byte
}

func (h CommandHeader) put(b []byte) {
	b[0] = h.Command
	b[1] = h.SubCommand
	b[2] = 0x00
	b[3] = 0x00
}

// EEPROMCommandHeader is the 3-byte EEPROM command frame:
//
//	[CMD][ADDRESS][VALUE]
//
// VALUE is reserved (zero) for reads.
type EEPROMCommandHeader struct {
	Command byte
	Address byte
	Value   byte
}

func (h EEPROMCommandHeader) put(b []byte) {
	b[0] = h.Command
	b[1] = h.Address
	b[2] = h.Value
}

// SPITransferHeader is the 4-byte SPI transfer header:
//
//	[0x42][LEN][0x00][0x00]
type SPITransferHeader struct {
	Command byte
	Length  byte
}

func (h SPITransferHeader) put(b []byte) {
	b[0] = h.Command
	b[1] = h.Length
	b[2] = 0x00
	b[3] = 0x00
}

// ResponseHeader is the general 4-byte response header:
//
//	[CMD][STATUS][SUB][RESERVED]
type ResponseHeader struct {
	Command    byte
	Status     byte
	SubCommand byte
	Reserved   byte
}

func parseResponseHeader(b []byte) ResponseHeader {
	return ResponseHeader{
		Command:    b[0],
		Status:     b[1],
		SubCommand: b[2],
		Reserved:   b[3],
	}
}

// EEPROMResponseHeader is the header of a Read EEPROM response:
//
//	[0x50][STATUS][ADDRESS]
type EEPROMResponseHeader struct {
	Command byte
	Status  byte
	Address byte
}

// SPITransferResponseHeader is the header of an SPI transfer response:
//
//	[0x42][STATUS][LEN][ENGINE_STATUS]
type SPITransferResponseHeader struct {
	Command      byte
	Status       byte
	Length       byte
	EngineStatus byte
}

// StatusHeader is the 2-byte prefix of a device status response:
//
//	[CMD][STATUS]
type StatusHeader struct {
	Command byte
	Status  byte
}
