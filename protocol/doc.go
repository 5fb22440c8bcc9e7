// Package protocol implements the MCP2210 USB-to-SPI bridge command protocol.
//
// This package encodes commands into 64-byte HID reports and decodes the
// chip's 64-byte responses, following the Microchip MCP2210 datasheet
// (DS22288), section 3 "USB HID Commands".
//
// # Protocol Overview
//
// Every exchange is one report out and one report in. All multi-byte fields
// are little-endian and unused trailing bytes are zero.
//
//	Command:  [CMD][SUB][0x00][0x00][PAYLOAD...]        general commands
//	          [CMD][ADDRESS][VALUE]                     EEPROM commands
//	          [0x42][LEN][0x00][0x00][DATA(0-60)]       SPI transfer
//	Response: [CMD][STATUS][SUB][RESERVED][PAYLOAD...]
//
// # Command Catalog
//
// Each CommandKind fixes its opcode, sub-opcode, framing rule and the
// response layout the chip answers with. Commands are built with the
// New*Cmd constructors:
//
//	cmd := protocol.NewSetGPIODirectionCmd(0x01FF)
//	report, err := protocol.Encode(cmd)
//
// # Response Decoding
//
// DecodeResponse decodes a report into the layout named by a ResponseKind,
// and CheckResponse validates the opcode echo and status byte:
//
//	resp, err := protocol.DecodeResponse(buf, cmd.Kind().Response())
//	if err == nil {
//	    err = protocol.CheckResponse(cmd.Kind(), resp)
//	}
//
// # Error Handling
//
// A non-zero status byte becomes a *DeviceError carrying the raw code:
//
//	err := &protocol.DeviceError{Operation: "send password", Code: 0xFC}
//	// err.Error() returns: "send password failed: access rejected (0xFC)"
//
// Malformed responses become a *DecodeError.
package protocol
