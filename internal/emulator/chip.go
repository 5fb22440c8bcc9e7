// Package emulator implements the device side of the MCP2210 report protocol.
//
// A Chip is an io.ReadWriter: every Write of a 64-byte command report
// queues exactly one 64-byte response report for the next Read. It keeps
// runtime and power-up settings, GPIO state, the user EEPROM, USB strings,
// password protection and an SPI engine whose slave side is a pluggable
// function (loopback by default).
package emulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"

	"github.com/moffa90/go-mcp2210/protocol"
)

// MaxPasswordAttempts is the number of wrong passwords accepted before the
// chip refuses further attempts until it is reset.
const MaxPasswordAttempts = 5

var (
	// ErrNoResponse is returned by Read when no command is awaiting a response
	ErrNoResponse = errors.New("emulator: no pending response")

	// ErrReportSize is returned by Write for reports that are not 64 bytes
	ErrReportSize = errors.New("emulator: report must be 64 bytes")
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// SPIHandler models the SPI slave: it receives the MOSI bytes of one frame
// and returns the MISO bytes clocked back.
type SPIHandler func(mosi []byte) []byte

// Loopback returns the MOSI bytes unchanged.
func Loopback(mosi []byte) []byte {
	out := make([]byte, len(mosi))
	copy(out, mosi)
	return out
}

// Chip emulates one MCP2210.
type Chip struct {
	mu  sync.Mutex
	log *zap.Logger

	chip     protocol.ChipSettings
	bootChip protocol.ChipSettings
	spi      protocol.SPISettings
	bootSPI  protocol.SPISettings
	usb      protocol.USBSettings

	manufacturer string
	product      string

	gpioDir uint16
	gpioOut uint16
	inputs  uint16

	eeprom [protocol.EEPROMSize]byte

	password []byte
	attempts byte
	guessed  bool

	handler        SPIHandler
	fifo           []byte
	lag            int
	lagLeft        int
	busyLeft       int
	inTransfer     bool
	externalMaster bool

	pending  []byte
	history  []protocol.CommandKind
	failNext error
}

// Option configures a Chip.
type Option func(*Chip)

// WithLogger logs every handled report at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chip) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSPIHandler replaces the loopback SPI slave.
func WithSPIHandler(h SPIHandler) Option {
	return func(c *Chip) {
		if h != nil {
			c.handler = h
		}
	}
}

// WithResponseLag makes the first n frames of every transfer return no data,
// as if the engine were still clocking.
func WithResponseLag(n int) Option {
	return func(c *Chip) {
		c.lag = n
		c.lagLeft = n
	}
}

// WithBusyFrames makes the next n SPI transfer frames fail with
// StatusSPITransferInProgress.
func WithBusyFrames(n int) Option {
	return func(c *Chip) {
		c.busyLeft = n
	}
}

// WithPassword protects the chip with password.
func WithPassword(password string) Option {
	return func(c *Chip) {
		c.bootChip.AccessControl = protocol.AccessPassword
		c.bootChip.NewPassword = [protocol.PasswordSize]byte{}
		copy(c.bootChip.NewPassword[:], password)
		c.password = trimPassword(c.bootChip.NewPassword[:])
	}
}

// WithLocked permanently locks the power-up settings.
func WithLocked() Option {
	return func(c *Chip) {
		c.bootChip.AccessControl = protocol.AccessLocked
	}
}

// New returns a chip in its factory default state.
func New(opts ...Option) *Chip {
	c := &Chip{
		log:          zap.NewNop(),
		handler:      Loopback,
		manufacturer: "Microchip Technology Inc.",
		product:      "MCP2210 USB to SPI Master",
		usb: protocol.USBSettings{
			VID:            0x04D8,
			PID:            0x00DE,
			PowerOption:    0x80,
			CurrentRequest: 50,
		},
	}
	c.bootChip = protocol.ChipSettings{
		PinDesignations: [protocol.GPIOPinCount]byte{
			protocol.PinChipSelect, protocol.PinChipSelect, protocol.PinChipSelect,
			protocol.PinChipSelect, protocol.PinChipSelect, protocol.PinChipSelect,
			protocol.PinChipSelect, protocol.PinChipSelect, protocol.PinGPIO,
		},
		GPIOOutputs:    0x01FF,
		GPIODirections: 0x01FF,
		OtherSettings:  0x02,
	}
	c.bootSPI = protocol.SPISettings{
		BitRate:          1_000_000,
		IdleChipSelect:   0x01FF,
		ActiveChipSelect: 0x01EF,
		CSToDataDelay:    1,
		DataToCSDelay:    1,
		InterByteDelay:   1,
		TransferSize:     4,
	}
	for i := range c.eeprom {
		c.eeprom[i] = 0xFF
	}
	for _, opt := range opts {
		opt(c)
	}
	c.powerUp()
	return c
}

// powerUp loads the runtime state from the power-up settings.
func (c *Chip) powerUp() {
	c.chip = c.bootChip
	c.spi = c.bootSPI
	c.gpioDir = c.chip.GPIODirections
	c.gpioOut = c.chip.GPIOOutputs
	c.attempts = 0
	c.guessed = false
	c.fifo = nil
	c.inTransfer = false
	c.lagLeft = c.lag
}

// Reset simulates a power cycle: runtime settings reload from the power-up
// settings and password state is cleared.
func (c *Chip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powerUp()
	c.pending = nil
}

// SetInputs sets the level seen on pins configured as inputs.
func (c *Chip) SetInputs(mask uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = mask
}

// SetExternalMaster simulates another SPI master holding the bus.
func (c *Chip) SetExternalMaster(held bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.externalMaster = held
}

// FailNext makes the next Write return err without handling the report.
func (c *Chip) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = err
}

// History returns the command kinds handled so far, oldest first.
func (c *Chip) History() []protocol.CommandKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.CommandKind, len(c.history))
	copy(out, c.history)
	return out
}

// Exchanges returns the number of command reports handled.
func (c *Chip) Exchanges() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// ClearHistory forgets the recorded commands.
func (c *Chip) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// EEPROM returns a copy of the user EEPROM.
func (c *Chip) EEPROM() [protocol.EEPROMSize]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eeprom
}

// SPISettings returns the runtime SPI settings.
func (c *Chip) SPISettings() protocol.SPISettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spi
}

// BootChipSettings returns the power-up chip settings.
func (c *Chip) BootChipSettings() protocol.ChipSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bootChip
}

// Write handles one command report and queues its response.
func (c *Chip) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return 0, err
	}
	if len(p) != protocol.ReportSize {
		return 0, fmt.Errorf("%w: got %d", ErrReportSize, len(p))
	}

	var req protocol.Report
	copy(req[:], p)
	c.pending = c.handle(&req)
	return len(p), nil
}

// Read returns the response to the last written report.
func (c *Chip) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return 0, ErrNoResponse
	}
	n := copy(p, c.pending)
	c.pending = nil
	return n, nil
}

func (c *Chip) handle(req *protocol.Report) []byte {
	resp := make([]byte, protocol.ReportSize)
	resp[0] = req[0]

	kind, ok := protocol.KindOf(req[0], req[1])
	if !ok {
		resp[1] = protocol.StatusUnknownCommand
		c.log.Debug("unknown command", zap.Uint8("opcode", req[0]), zap.Uint8("sub", req[1]))
		return resp
	}
	c.history = append(c.history, kind)
	if kind.Framing() == protocol.FramingHeader && kind.SubOpcode() != 0 {
		resp[2] = kind.SubOpcode()
	}

	status := c.dispatch(kind, req, resp)
	resp[1] = status

	c.log.Debug("handled report",
		zap.Stringer("command", kind),
		zap.Uint8("status", status),
	)
	return resp
}

func (c *Chip) dispatch(kind protocol.CommandKind, req *protocol.Report, resp []byte) byte {
	payload := req[protocol.HeaderSize:]
	out := resp[protocol.HeaderSize:]

	switch kind {
	case protocol.KindGetChipStatus:
		c.putStatus(resp)
	case protocol.KindCancelTransfer:
		c.fifo = nil
		c.inTransfer = false
		c.lagLeft = c.lag
		c.putStatus(resp)

	case protocol.KindGetChipSettings:
		c.putChip(out, c.chip)
	case protocol.KindSetChipSettings:
		if st := c.checkWriteAccess(); st != protocol.StatusSuccess {
			return st
		}
		var s protocol.ChipSettings
		_ = s.UnmarshalBinary(payload)
		s.AccessControl = c.chip.AccessControl
		s.NewPassword = c.chip.NewPassword
		c.chip = s
		c.gpioDir = s.GPIODirections
		c.gpioOut = s.GPIOOutputs
	case protocol.KindGetBootChipSettings:
		c.putChip(out, c.bootChip)
	case protocol.KindSetBootChipSettings:
		if st := c.checkWriteAccess(); st != protocol.StatusSuccess {
			return st
		}
		var s protocol.ChipSettings
		_ = s.UnmarshalBinary(payload)
		c.bootChip = s
		if s.AccessControl == protocol.AccessPassword {
			c.password = trimPassword(s.NewPassword[:])
		}

	case protocol.KindGetSPISettings:
		b, _ := c.spi.MarshalBinary()
		copy(out, b)
	case protocol.KindSetSPISettings:
		if c.inTransfer {
			return protocol.StatusSPITransferInProgress
		}
		_ = c.spi.UnmarshalBinary(payload)
	case protocol.KindGetBootSPISettings:
		b, _ := c.bootSPI.MarshalBinary()
		copy(out, b)
	case protocol.KindSetBootSPISettings:
		if st := c.checkWriteAccess(); st != protocol.StatusSuccess {
			return st
		}
		_ = c.bootSPI.UnmarshalBinary(payload)

	case protocol.KindGetBootUSBSettings:
		binary.LittleEndian.PutUint16(resp[12:], c.usb.VID)
		binary.LittleEndian.PutUint16(resp[14:], c.usb.PID)
		resp[29] = c.usb.PowerOption
		resp[30] = c.usb.CurrentRequest
	case protocol.KindSetBootUSBSettings:
		if st := c.checkWriteAccess(); st != protocol.StatusSuccess {
			return st
		}
		_ = c.usb.UnmarshalBinary(payload)

	case protocol.KindGetUSBManufacturer:
		putString(out, c.manufacturer)
	case protocol.KindSetUSBManufacturer:
		if st := c.checkWriteAccess(); st != protocol.StatusSuccess {
			return st
		}
		s, ok := readString(payload)
		if !ok {
			return protocol.StatusUnknownCommand
		}
		c.manufacturer = s
	case protocol.KindGetUSBProduct:
		putString(out, c.product)
	case protocol.KindSetUSBProduct:
		if st := c.checkWriteAccess(); st != protocol.StatusSuccess {
			return st
		}
		s, ok := readString(payload)
		if !ok {
			return protocol.StatusUnknownCommand
		}
		c.product = s

	case protocol.KindSendPassword:
		return c.checkPassword(payload[:protocol.PasswordSize])

	case protocol.KindGetGPIODirection:
		binary.LittleEndian.PutUint16(out, c.gpioDir)
	case protocol.KindSetGPIODirection:
		c.gpioDir = binary.LittleEndian.Uint16(payload) & 0x01FF
		binary.LittleEndian.PutUint16(out, c.gpioDir)
	case protocol.KindGetGPIOValue:
		binary.LittleEndian.PutUint16(out, c.levels())
	case protocol.KindSetGPIOValue:
		c.gpioOut = binary.LittleEndian.Uint16(payload) & 0x01FF
		binary.LittleEndian.PutUint16(out, c.levels())

	case protocol.KindReadEEPROM:
		resp[2] = req[1]
		resp[3] = c.eeprom[req[1]]
	case protocol.KindWriteEEPROM:
		if c.chip.AccessControl == protocol.AccessLocked {
			return protocol.StatusEEPROMWriteFailure
		}
		c.eeprom[req[1]] = req[2]

	case protocol.KindSPITransfer:
		return c.transfer(req, resp)
	}
	return protocol.StatusSuccess
}

// checkWriteAccess enforces the NVRAM protection for setting writes.
func (c *Chip) checkWriteAccess() byte {
	switch c.chip.AccessControl {
	case protocol.AccessLocked:
		return protocol.StatusAccessBlocked
	case protocol.AccessPassword:
		if !c.guessed {
			return protocol.StatusAccessBlocked
		}
	}
	return protocol.StatusSuccess
}

func (c *Chip) checkPassword(pw []byte) byte {
	if c.chip.AccessControl != protocol.AccessPassword {
		return protocol.StatusSuccess
	}
	if c.attempts >= MaxPasswordAttempts {
		return protocol.StatusAccessDenied
	}
	if string(trimPassword(pw)) == string(c.password) {
		c.guessed = true
		return protocol.StatusSuccess
	}
	c.attempts++
	if c.attempts >= MaxPasswordAttempts {
		return protocol.StatusAccessDenied
	}
	return protocol.StatusAccessRejected
}

func (c *Chip) transfer(req *protocol.Report, resp []byte) byte {
	if c.externalMaster {
		return protocol.StatusSPIBusUnavailable
	}
	if c.busyLeft > 0 {
		c.busyLeft--
		return protocol.StatusSPITransferInProgress
	}

	n := int(req[1])
	if n > protocol.MaxSPIChunk {
		n = protocol.MaxSPIChunk
	}
	if n > 0 {
		c.fifo = append(c.fifo, c.handler(req[protocol.HeaderSize:protocol.HeaderSize+n])...)
		c.inTransfer = true
	}

	if c.lagLeft > 0 {
		c.lagLeft--
		resp[2] = 0
		resp[3] = protocol.EngineStarted
		return protocol.StatusSuccess
	}

	k := len(c.fifo)
	if k > protocol.MaxSPIChunk {
		k = protocol.MaxSPIChunk
	}
	copy(resp[protocol.HeaderSize:], c.fifo[:k])
	c.fifo = c.fifo[k:]
	resp[2] = byte(k)

	if len(c.fifo) == 0 {
		resp[3] = protocol.EngineFinished
		c.inTransfer = false
		c.lagLeft = c.lag
	} else {
		resp[3] = protocol.EnginePending
	}
	return protocol.StatusSuccess
}

func (c *Chip) putStatus(resp []byte) {
	resp[2] = 0x01
	switch {
	case c.externalMaster:
		resp[3] = protocol.BusOwnerExternal
	case c.inTransfer:
		resp[3] = protocol.BusOwnerBridge
	default:
		resp[3] = protocol.BusOwnerNone
	}
	resp[4] = c.attempts
	if c.guessed {
		resp[5] = 0x01
	}
}

// putChip writes chip settings; the password is never reported back.
func (c *Chip) putChip(out []byte, s protocol.ChipSettings) {
	s.NewPassword = [protocol.PasswordSize]byte{}
	b, _ := s.MarshalBinary()
	copy(out, b)
}

// levels returns output latches for output pins and input levels for input pins.
func (c *Chip) levels() uint16 {
	return (c.gpioOut &^ c.gpioDir) | (c.inputs & c.gpioDir)
}

func putString(out []byte, s string) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil || len(b)/2 > protocol.MaxStringUnits {
		b = nil
	}
	out[0] = byte(2 + len(b))
	out[1] = protocol.StringDescriptorID
	copy(out[2:], b)
}

func readString(payload []byte) (string, bool) {
	n := int(payload[0]) - 2
	if n < 0 || n%2 != 0 || 2+n > len(payload) || payload[1] != protocol.StringDescriptorID {
		return "", false
	}
	s, err := utf16le.NewDecoder().Bytes(payload[2 : 2+n])
	if err != nil {
		return "", false
	}
	return string(s), true
}

func trimPassword(pw []byte) []byte {
	for i, b := range pw {
		if b == 0 {
			return pw[:i]
		}
	}
	return pw
}
