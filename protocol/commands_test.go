package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func mustEncode(t *testing.T, cmd Command) []byte {
	t.Helper()
	b, err := Encode(cmd)
	if err != nil {
		t.Fatalf("Encode(%v) error: %v", cmd.Kind(), err)
	}
	if len(b) != ReportSize {
		t.Fatalf("Encode(%v) length = %d, want %d", cmd.Kind(), len(b), ReportSize)
	}
	return b
}

func assertZeroFrom(t *testing.T, b []byte, from int) {
	t.Helper()
	for i := from; i < len(b); i++ {
		if b[i] != 0 {
			t.Fatalf("byte %d = 0x%02X, want zero padding from offset %d", i, b[i], from)
		}
	}
}

func TestRequestCommands(t *testing.T) {
	tests := []struct {
		name    string
		cmd     RequestCmd
		wantCmd byte
		wantSub byte
	}{
		{"get chip status", NewGetChipStatusCmd(), 0x10, 0x00},
		{"cancel transfer", NewCancelTransferCmd(), 0x11, 0x00},
		{"get chip settings", NewGetChipSettingsCmd(), 0x20, 0x00},
		{"get boot chip settings", NewGetBootChipSettingsCmd(), 0x61, 0x20},
		{"get spi settings", NewGetSPISettingsCmd(), 0x41, 0x00},
		{"get boot spi settings", NewGetBootSPISettingsCmd(), 0x61, 0x10},
		{"get boot usb settings", NewGetBootUSBSettingsCmd(), 0x61, 0x30},
		{"get manufacturer", NewGetUSBManufacturerCmd(), 0x61, 0x50},
		{"get product", NewGetUSBProductCmd(), 0x61, 0x40},
		{"get gpio direction", NewGetGPIODirectionCmd(), 0x33, 0x00},
		{"get gpio value", NewGetGPIOValueCmd(), 0x31, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustEncode(t, tt.cmd)
			if b[0] != tt.wantCmd {
				t.Errorf("command = 0x%02X, want 0x%02X", b[0], tt.wantCmd)
			}
			if b[1] != tt.wantSub {
				t.Errorf("sub-command = 0x%02X, want 0x%02X", b[1], tt.wantSub)
			}
			assertZeroFrom(t, b, 2)
			if tt.cmd.Kind().Opcode() != tt.wantCmd || tt.cmd.Kind().SubOpcode() != tt.wantSub {
				t.Errorf("catalog entry for %v disagrees with encoding", tt.cmd.Kind())
			}
		})
	}
}

func TestChipSettingsCmd(t *testing.T) {
	s := ChipSettings{
		PinDesignations: [GPIOPinCount]byte{1, 1, 0, 0, 2, 2, 0, 1, 2},
		GPIOOutputs:     0x01FE,
		GPIODirections:  0x0103,
		OtherSettings:   0x10,
		AccessControl:   AccessPassword,
		NewPassword:     [PasswordSize]byte{'s', 'e', 'c', 'r', 'e', 't'},
	}

	tests := []struct {
		name    string
		cmd     ChipSettingsCmd
		wantCmd byte
		wantSub byte
	}{
		{"runtime", NewSetChipSettingsCmd(s), CmdSetChipSettings, 0x00},
		{"boot", NewSetBootChipSettingsCmd(s), CmdSetNVRAM, SubChipSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustEncode(t, tt.cmd)
			if b[0] != tt.wantCmd || b[1] != tt.wantSub {
				t.Fatalf("header = % 02X, want %02X %02X", b[:2], tt.wantCmd, tt.wantSub)
			}
			if !bytes.Equal(b[4:13], s.PinDesignations[:]) {
				t.Errorf("pin designations = % 02X", b[4:13])
			}
			if b[13] != 0xFE || b[14] != 0x01 {
				t.Errorf("gpio outputs = % 02X, want FE 01", b[13:15])
			}
			if b[15] != 0x03 || b[16] != 0x01 {
				t.Errorf("gpio directions = % 02X, want 03 01", b[15:17])
			}
			if b[17] != 0x10 || b[18] != AccessPassword {
				t.Errorf("other/access = % 02X", b[17:19])
			}
			if string(b[19:25]) != "secret" {
				t.Errorf("password = %q", b[19:27])
			}
			assertZeroFrom(t, b, 27)
		})
	}
}

func TestSPISettingsCmd(t *testing.T) {
	s := SPISettings{
		BitRate:          12_000_000,
		IdleChipSelect:   0x01FF,
		ActiveChipSelect: 0x01FE,
		CSToDataDelay:    1,
		DataToCSDelay:    2,
		InterByteDelay:   3,
		TransferSize:     4,
		Mode:             3,
	}

	b := mustEncode(t, NewSetSPISettingsCmd(s))
	want := []byte{
		0x40, 0x00, 0x00, 0x00,
		0x00, 0x1B, 0xB7, 0x00, // 12 MHz
		0xFF, 0x01,
		0xFE, 0x01,
		0x01, 0x00,
		0x02, 0x00,
		0x03, 0x00,
		0x04, 0x00,
		0x03,
	}
	if !bytes.Equal(b[:len(want)], want) {
		t.Errorf("frame = % 02X\nwant  % 02X", b[:len(want)], want)
	}
	assertZeroFrom(t, b, len(want))

	boot := mustEncode(t, NewSetBootSPISettingsCmd(s))
	if boot[0] != CmdSetNVRAM || boot[1] != SubSPISettings {
		t.Errorf("boot header = % 02X", boot[:2])
	}
	if !bytes.Equal(boot[4:len(want)], want[4:]) {
		t.Errorf("boot payload differs from runtime payload")
	}
}

func TestUSBSettingsCmd(t *testing.T) {
	b := mustEncode(t, NewSetBootUSBSettingsCmd(USBSettings{
		VID:            0x04D8,
		PID:            0x00DE,
		PowerOption:    0x80,
		CurrentRequest: 50,
	}))
	want := []byte{0x60, 0x30, 0x00, 0x00, 0xD8, 0x04, 0xDE, 0x00, 0x80, 50}
	if !bytes.Equal(b[:len(want)], want) {
		t.Errorf("frame = % 02X, want % 02X", b[:len(want)], want)
	}
	assertZeroFrom(t, b, len(want))
}

func TestUSBStringCmd(t *testing.T) {
	t.Run("ascii", func(t *testing.T) {
		cmd, err := NewSetUSBManufacturerCmd("ABC")
		if err != nil {
			t.Fatal(err)
		}
		b := mustEncode(t, cmd)
		want := []byte{0x60, 0x50, 0x00, 0x00, 8, 0x03, 'A', 0, 'B', 0, 'C', 0}
		if !bytes.Equal(b[:len(want)], want) {
			t.Errorf("frame = % 02X, want % 02X", b[:len(want)], want)
		}
		assertZeroFrom(t, b, len(want))
	})

	t.Run("surrogate pair", func(t *testing.T) {
		cmd, err := NewSetUSBProductCmd("\U0001F600")
		if err != nil {
			t.Fatal(err)
		}
		b := mustEncode(t, cmd)
		if b[1] != SubUSBProduct {
			t.Errorf("sub-command = 0x%02X, want 0x%02X", b[1], SubUSBProduct)
		}
		if b[4] != 6 {
			t.Errorf("str_len = %d, want 6", b[4])
		}
		want := []byte{0x3D, 0xD8, 0x00, 0xDE}
		if !bytes.Equal(b[6:10], want) {
			t.Errorf("code units = % 02X, want % 02X", b[6:10], want)
		}
	})

	t.Run("maximum length", func(t *testing.T) {
		if _, err := NewSetUSBProductCmd(strings.Repeat("x", MaxStringUnits)); err != nil {
			t.Errorf("%d units: unexpected error %v", MaxStringUnits, err)
		}
	})

	t.Run("too long", func(t *testing.T) {
		_, err := NewSetUSBProductCmd(strings.Repeat("x", MaxStringUnits+1))
		if !errors.Is(err, ErrStringTooLong) {
			t.Errorf("error = %v, want ErrStringTooLong", err)
		}
	})
}

func TestSendPasswordCmd(t *testing.T) {
	cmd, err := NewSendPasswordCmd([]byte("pass"))
	if err != nil {
		t.Fatal(err)
	}
	b := mustEncode(t, cmd)
	want := []byte{0x70, 0x00, 0x00, 0x00, 'p', 'a', 's', 's'}
	if !bytes.Equal(b[:len(want)], want) {
		t.Errorf("frame = % 02X, want % 02X", b[:len(want)], want)
	}
	assertZeroFrom(t, b, len(want))

	if _, err := NewSendPasswordCmd([]byte("123456789")); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("9-byte password error = %v, want ErrPasswordTooLong", err)
	}
}

func TestGPIOCmd(t *testing.T) {
	dir := mustEncode(t, NewSetGPIODirectionCmd(0x0155))
	if !bytes.Equal(dir[:6], []byte{0x32, 0x00, 0x00, 0x00, 0x55, 0x01}) {
		t.Errorf("direction frame = % 02X", dir[:6])
	}
	assertZeroFrom(t, dir, 6)

	val := mustEncode(t, NewSetGPIOValueCmd(0x0100))
	if !bytes.Equal(val[:6], []byte{0x30, 0x00, 0x00, 0x00, 0x00, 0x01}) {
		t.Errorf("value frame = % 02X", val[:6])
	}
}

func TestEEPROMCmd(t *testing.T) {
	read := mustEncode(t, NewReadEEPROMCmd(0x7F))
	if !bytes.Equal(read[:3], []byte{0x50, 0x7F, 0x00}) {
		t.Errorf("read frame = % 02X", read[:3])
	}
	assertZeroFrom(t, read, EEPROMHeaderSize)

	write := mustEncode(t, NewWriteEEPROMCmd(0xFF, 0xA5))
	if !bytes.Equal(write[:3], []byte{0x51, 0xFF, 0xA5}) {
		t.Errorf("write frame = % 02X", write[:3])
	}
	assertZeroFrom(t, write, EEPROMHeaderSize)
}

func TestSPITransferCmd(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "empty poll", data: nil},
		{name: "small", data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{name: "full chunk", data: bytes.Repeat([]byte{0x5A}, MaxSPIChunk)},
		{name: "oversized", data: bytes.Repeat([]byte{0x5A}, MaxSPIChunk+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := NewSPITransferCmd(tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrChunkTooLarge) {
					t.Fatalf("error = %v, want ErrChunkTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			b := mustEncode(t, cmd)
			if b[0] != CmdSPITransfer || int(b[1]) != len(tt.data) || b[2] != 0 || b[3] != 0 {
				t.Errorf("header = % 02X", b[:4])
			}
			if !bytes.Equal(b[4:4+len(tt.data)], tt.data) {
				t.Errorf("data mismatch")
			}
			assertZeroFrom(t, b, 4+len(tt.data))
		})
	}
}

func TestSPITransferCmdCopiesData(t *testing.T) {
	data := []byte{1, 2, 3}
	cmd, err := NewSPITransferCmd(data)
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 0xFF
	b := mustEncode(t, cmd)
	if b[4] != 1 {
		t.Errorf("command changed after caller mutated its buffer")
	}
}

func TestZeroCommandsRejected(t *testing.T) {
	cmds := []Command{
		RequestCmd{},
		ChipSettingsCmd{},
		SPISettingsCmd{},
		USBSettingsCmd{},
		USBStringCmd{},
		PasswordCmd{},
		GPIOCmd{},
		EEPROMCmd{},
		SPITransferCmd{},
	}
	for _, cmd := range cmds {
		if _, err := Encode(cmd); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Encode(%T{}) error = %v, want ErrInvalidCommand", cmd, err)
		}
	}
	if _, err := Encode(nil); err == nil {
		t.Errorf("Encode(nil) should fail")
	}
}

func TestCatalog(t *testing.T) {
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Errorf("%v is not valid", k)
		}
		got, ok := KindOf(k.Opcode(), k.SubOpcode())
		if !ok || got != k {
			t.Errorf("KindOf(0x%02X, 0x%02X) = %v, %v; want %v", k.Opcode(), k.SubOpcode(), got, ok, k)
		}
		if strings.HasPrefix(k.String(), "CommandKind(") {
			t.Errorf("%d has no name", int(k))
		}
	}

	if len(Kinds()) != 24 {
		t.Errorf("catalog has %d kinds, want 24", len(Kinds()))
	}

	if CommandKind(0).Valid() || CommandKind(99).Valid() {
		t.Errorf("out-of-range kinds reported valid")
	}

	if _, ok := KindOf(0x99, 0x00); ok {
		t.Errorf("KindOf(0x99) should not resolve")
	}

	framings := map[CommandKind]Framing{
		KindReadEEPROM:   FramingEEPROM,
		KindWriteEEPROM:  FramingEEPROM,
		KindSPITransfer:  FramingSPITransfer,
		KindSendPassword: FramingHeader,
	}
	for k, want := range framings {
		if k.Framing() != want {
			t.Errorf("%v framing = %d, want %d", k, k.Framing(), want)
		}
	}
}
