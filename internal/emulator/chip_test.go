package emulator

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/moffa90/go-mcp2210/protocol"
)

// exchange writes cmd and decodes the chip's answer.
func exchange(t *testing.T, c *Chip, cmd protocol.Command) protocol.Response {
	t.Helper()
	req, err := protocol.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := c.Write(req); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, protocol.ReportSize)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != protocol.ReportSize {
		t.Fatalf("Read() = %d bytes, want %d", n, protocol.ReportSize)
	}
	resp, err := protocol.DecodeResponse(buf, cmd.Kind().Response())
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	return resp
}

// mustString unwraps a string command constructor:
//
//	mustString(t)(protocol.NewSetUSBProductCmd("x"))
func mustString(t *testing.T) func(protocol.USBStringCmd, error) protocol.USBStringCmd {
	return func(cmd protocol.USBStringCmd, err error) protocol.USBStringCmd {
		t.Helper()
		if err != nil {
			t.Fatalf("string command: %v", err)
		}
		return cmd
	}
}

func mustPassword(t *testing.T, pw string) protocol.PasswordCmd {
	t.Helper()
	cmd, err := protocol.NewSendPasswordCmd([]byte(pw))
	if err != nil {
		t.Fatalf("NewSendPasswordCmd() error = %v", err)
	}
	return cmd
}

func TestReadWithoutWrite(t *testing.T) {
	c := New()
	_, err := c.Read(make([]byte, protocol.ReportSize))
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("Read() error = %v, want ErrNoResponse", err)
	}
}

func TestWriteWrongSize(t *testing.T) {
	c := New()
	_, err := c.Write(make([]byte, 65))
	if !errors.Is(err, ErrReportSize) {
		t.Errorf("Write() error = %v, want ErrReportSize", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	c := New()
	req := make([]byte, protocol.ReportSize)
	req[0] = 0xEE
	if _, err := c.Write(req); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, protocol.ReportSize)
	if _, err := c.Read(buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xEE || buf[1] != protocol.StatusUnknownCommand {
		t.Errorf("response = [0x%02X 0x%02X], want [0xEE 0xF9]", buf[0], buf[1])
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	c := New()

	spi := protocol.SPISettings{
		BitRate:          12_000_000,
		IdleChipSelect:   0x01FF,
		ActiveChipSelect: 0x01FE,
		TransferSize:     32,
		Mode:             3,
	}
	exchange(t, c, protocol.NewSetSPISettingsCmd(spi))
	got := exchange(t, c, protocol.NewGetSPISettingsCmd()).(*protocol.SPISettingsResponse)
	if diff := cmp.Diff(spi, got.Settings); diff != "" {
		t.Errorf("spi settings mismatch (-want +got):\n%s", diff)
	}

	usb := protocol.USBSettings{VID: 0x1234, PID: 0x5678, PowerOption: 0x40, CurrentRequest: 100}
	exchange(t, c, protocol.NewSetBootUSBSettingsCmd(usb))
	gotUSB := exchange(t, c, protocol.NewGetBootUSBSettingsCmd()).(*protocol.USBSettingsResponse)
	if diff := cmp.Diff(usb, gotUSB.Settings); diff != "" {
		t.Errorf("usb settings mismatch (-want +got):\n%s", diff)
	}

	exchange(t, c, mustString(t)(protocol.NewSetUSBProductCmd("Sensor Bridge")))
	gotProd := exchange(t, c, protocol.NewGetUSBProductCmd()).(*protocol.USBStringResponse)
	if gotProd.Value != "Sensor Bridge" {
		t.Errorf("product = %q, want %q", gotProd.Value, "Sensor Bridge")
	}
	if gotProd.Header.SubCommand != protocol.SubUSBProduct {
		t.Errorf("sub echo = 0x%02X, want 0x%02X", gotProd.Header.SubCommand, protocol.SubUSBProduct)
	}
}

func TestResetReloadsBootSettings(t *testing.T) {
	c := New()
	boot := c.BootChipSettings()
	boot.GPIODirections = 0x0000
	boot.GPIOOutputs = 0x0055
	exchange(t, c, protocol.NewSetBootChipSettingsCmd(boot))

	c.Reset()

	dir := exchange(t, c, protocol.NewGetGPIODirectionCmd()).(*protocol.GPIOResponse)
	if dir.Mask != 0x0000 {
		t.Errorf("direction after reset = 0x%04X, want 0x0000", dir.Mask)
	}
	val := exchange(t, c, protocol.NewGetGPIOValueCmd()).(*protocol.GPIOResponse)
	if val.Mask != 0x0055 {
		t.Errorf("value after reset = 0x%04X, want 0x0055", val.Mask)
	}
}

func TestGPIOLevels(t *testing.T) {
	c := New()
	exchange(t, c, protocol.NewSetGPIODirectionCmd(0x00F0))
	exchange(t, c, protocol.NewSetGPIOValueCmd(0x00FF))
	c.SetInputs(0x0030)

	got := exchange(t, c, protocol.NewGetGPIOValueCmd()).(*protocol.GPIOResponse)
	// outputs 0-3 driven high, inputs 4-7 read 0b0011
	if got.Mask != 0x003F {
		t.Errorf("levels = 0x%04X, want 0x003F", got.Mask)
	}
}

func TestEEPROM(t *testing.T) {
	c := New()
	exchange(t, c, protocol.NewWriteEEPROMCmd(0xFF, 0x42))
	got := exchange(t, c, protocol.NewReadEEPROMCmd(0xFF)).(*protocol.ReadEEPROMResponse)
	if got.Data != 0x42 || got.Header.Address != 0xFF {
		t.Errorf("read = addr 0x%02X data 0x%02X, want addr 0xFF data 0x42", got.Header.Address, got.Data)
	}
	if c.EEPROM()[0xFF] != 0x42 {
		t.Error("EEPROM() does not reflect write")
	}
}

func TestPasswordProtection(t *testing.T) {
	c := New(WithPassword("secret"))
	spi := protocol.SPISettings{BitRate: 500_000}

	resp := exchange(t, c, protocol.NewSetBootSPISettingsCmd(spi))
	if resp.StatusCode() != protocol.StatusAccessBlocked {
		t.Fatalf("locked write status = 0x%02X, want 0xFB", resp.StatusCode())
	}

	resp = exchange(t, c, mustPassword(t, "wrong"))
	if resp.StatusCode() != protocol.StatusAccessRejected {
		t.Errorf("wrong password status = 0x%02X, want 0xFC", resp.StatusCode())
	}

	resp = exchange(t, c, mustPassword(t, "secret"))
	if resp.StatusCode() != protocol.StatusSuccess {
		t.Fatalf("right password status = 0x%02X, want 0x00", resp.StatusCode())
	}

	st := exchange(t, c, protocol.NewGetChipStatusCmd()).(*protocol.DeviceStatusResponse)
	want := protocol.DeviceStatus{BusReleaseStatus: 0x01, PasswordAttempts: 1, PasswordGuessed: true}
	if diff := cmp.Diff(want, st.Status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	resp = exchange(t, c, protocol.NewSetBootSPISettingsCmd(spi))
	if resp.StatusCode() != protocol.StatusSuccess {
		t.Errorf("unlocked write status = 0x%02X, want 0x00", resp.StatusCode())
	}
}

func TestPasswordAttemptLimit(t *testing.T) {
	c := New(WithPassword("pw"))
	var last byte
	for i := 0; i < MaxPasswordAttempts; i++ {
		last = exchange(t, c, mustPassword(t, "nope")).StatusCode()
	}
	if last != protocol.StatusAccessDenied {
		t.Errorf("status after %d attempts = 0x%02X, want 0xFD", MaxPasswordAttempts, last)
	}
	if got := exchange(t, c, mustPassword(t, "pw")).StatusCode(); got != protocol.StatusAccessDenied {
		t.Errorf("correct password after lockout = 0x%02X, want 0xFD", got)
	}
}

func TestLockedChip(t *testing.T) {
	c := New(WithLocked())
	resp := exchange(t, c, mustString(t)(protocol.NewSetUSBManufacturerCmd("x")))
	if resp.StatusCode() != protocol.StatusAccessBlocked {
		t.Errorf("status = 0x%02X, want 0xFB", resp.StatusCode())
	}
}

func TestTransferLoopback(t *testing.T) {
	c := New()
	cmd, _ := protocol.NewSPITransferCmd([]byte{1, 2, 3})
	resp := exchange(t, c, cmd).(*protocol.SPITransferResponse)
	if diff := cmp.Diff([]byte{1, 2, 3}, resp.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if resp.EngineStatus() != protocol.EngineFinished {
		t.Errorf("engine = 0x%02X, want 0x10", resp.EngineStatus())
	}
}

func TestTransferLag(t *testing.T) {
	c := New(WithResponseLag(2))
	cmd, _ := protocol.NewSPITransferCmd([]byte{0xAA, 0xBB})
	poll, _ := protocol.NewSPITransferCmd(nil)

	tests := []struct {
		cmd    protocol.Command
		want   []byte
		engine byte
	}{
		{cmd, []byte{}, protocol.EngineStarted},
		{poll, []byte{}, protocol.EngineStarted},
		{poll, []byte{0xAA, 0xBB}, protocol.EngineFinished},
	}
	for i, tt := range tests {
		resp := exchange(t, c, tt.cmd).(*protocol.SPITransferResponse)
		if diff := cmp.Diff(tt.want, resp.Data); diff != "" {
			t.Errorf("frame %d data mismatch (-want +got):\n%s", i, diff)
		}
		if resp.EngineStatus() != tt.engine {
			t.Errorf("frame %d engine = 0x%02X, want 0x%02X", i, resp.EngineStatus(), tt.engine)
		}
	}
}

func TestTransferBusAndBusy(t *testing.T) {
	c := New(WithBusyFrames(1))
	cmd, _ := protocol.NewSPITransferCmd([]byte{1})

	if got := exchange(t, c, cmd).StatusCode(); got != protocol.StatusSPITransferInProgress {
		t.Errorf("busy frame status = 0x%02X, want 0xF8", got)
	}
	if got := exchange(t, c, cmd).StatusCode(); got != protocol.StatusSuccess {
		t.Errorf("second frame status = 0x%02X, want 0x00", got)
	}

	c.SetExternalMaster(true)
	if got := exchange(t, c, cmd).StatusCode(); got != protocol.StatusSPIBusUnavailable {
		t.Errorf("external master status = 0x%02X, want 0xF7", got)
	}
	st := exchange(t, c, protocol.NewCancelTransferCmd()).(*protocol.DeviceStatusResponse)
	if st.Status.BusOwner != protocol.BusOwnerExternal {
		t.Errorf("bus owner = %d, want external", st.Status.BusOwner)
	}
}

func TestSPIHandler(t *testing.T) {
	c := New(WithSPIHandler(func(mosi []byte) []byte {
		out := make([]byte, len(mosi))
		for i, b := range mosi {
			out[i] = ^b
		}
		return out
	}))
	cmd, _ := protocol.NewSPITransferCmd([]byte{0x00, 0xF0})
	resp := exchange(t, c, cmd).(*protocol.SPITransferResponse)
	if diff := cmp.Diff([]byte{0xFF, 0x0F}, resp.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory(t *testing.T) {
	c := New()
	exchange(t, c, protocol.NewGetChipStatusCmd())
	exchange(t, c, protocol.NewReadEEPROMCmd(0))

	want := []protocol.CommandKind{protocol.KindGetChipStatus, protocol.KindReadEEPROM}
	if diff := cmp.Diff(want, c.History()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	c.ClearHistory()
	if c.Exchanges() != 0 {
		t.Errorf("Exchanges() after clear = %d", c.Exchanges())
	}
}

func TestFailNext(t *testing.T) {
	c := New()
	boom := errors.New("unplugged")
	c.FailNext(boom)
	req, _ := protocol.Encode(protocol.NewGetChipStatusCmd())
	if _, err := c.Write(req); !errors.Is(err, boom) {
		t.Errorf("Write() error = %v, want %v", err, boom)
	}
	if _, err := c.Write(req); err != nil {
		t.Errorf("Write() after failure error = %v", err)
	}
}
