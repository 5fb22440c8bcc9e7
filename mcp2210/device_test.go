package mcp2210

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/moffa90/go-mcp2210/internal/emulator"
	"github.com/moffa90/go-mcp2210/protocol"
)

// MockDevice replays scripted response reports and records written reports.
type MockDevice struct {
	writes    [][]byte
	responses [][]byte
	respIdx   int
	readErr   error
	writeErr  error
	shortRead bool
}

func (m *MockDevice) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	w := make([]byte, len(p))
	copy(w, p)
	m.writes = append(m.writes, w)
	return len(p), nil
}

func (m *MockDevice) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.respIdx >= len(m.responses) {
		return 0, errors.New("no scripted response")
	}
	resp := m.responses[m.respIdx]
	m.respIdx++
	if m.shortRead {
		return copy(p, resp[:10]), nil
	}
	return copy(p, resp), nil
}

// AddResponse queues a response report starting with prefix.
func (m *MockDevice) AddResponse(prefix ...byte) {
	r := make([]byte, protocol.ReportSize)
	copy(r, prefix)
	m.responses = append(m.responses, r)
}

func TestNewPanicsOnNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) did not panic")
		}
	}()
	New(nil)
}

func TestPropertyWriteThrough(t *testing.T) {
	ctx := context.Background()
	chip := emulator.New()
	dev := New(chip)

	first, err := dev.ChipSettings().Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := dev.ChipSettings().Get(ctx); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if got := chip.Exchanges(); got != 1 {
		t.Errorf("exchanges after two Gets = %d, want 1", got)
	}

	first.GPIOOutputs = 0x0123
	if err := dev.ChipSettings().Set(ctx, first); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := dev.ChipSettings().Get(ctx)
	if err != nil {
		t.Fatalf("Get() after Set error = %v", err)
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("cached value mismatch (-want +got):\n%s", diff)
	}

	want := []protocol.CommandKind{protocol.KindGetChipSettings, protocol.KindSetChipSettings}
	if diff := cmp.Diff(want, chip.History()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	dev.ChipSettings().Invalidate()
	if _, ok := dev.ChipSettings().Cached(); ok {
		t.Error("Cached() ok after Invalidate")
	}
	if _, err := dev.ChipSettings().Get(ctx); err != nil {
		t.Fatal(err)
	}
	if got := chip.Exchanges(); got != 3 {
		t.Errorf("exchanges after refetch = %d, want 3", got)
	}
}

func TestPropertySetFailureDropsCache(t *testing.T) {
	ctx := context.Background()
	dev := New(emulator.New(emulator.WithLocked()))

	err := dev.BootSPISettings().Set(ctx, protocol.SPISettings{BitRate: 1000})
	if code, ok := protocol.DeviceErrorCode(err); !ok || code != protocol.StatusAccessBlocked {
		t.Fatalf("Set() error = %v, want DeviceError 0xFB", err)
	}
	if _, ok := dev.BootSPISettings().Cached(); ok {
		t.Error("cache kept after failed Set")
	}
}

func TestBootProperties(t *testing.T) {
	ctx := context.Background()
	chip := emulator.New()
	dev := New(chip)

	usb := protocol.USBSettings{VID: 0x04D8, PID: 0xF00D, PowerOption: 0x80, CurrentRequest: 250}
	if err := dev.BootUSBSettings().Set(ctx, usb); err != nil {
		t.Fatal(err)
	}
	dev.InvalidateCache()
	got, err := dev.BootUSBSettings().Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(usb, got); diff != "" {
		t.Errorf("usb settings mismatch (-want +got):\n%s", diff)
	}
	if got.CurrentMilliamps() != 500 {
		t.Errorf("CurrentMilliamps() = %d, want 500", got.CurrentMilliamps())
	}

	spi, err := dev.BootSPISettings().Update(ctx, func(s protocol.SPISettings) protocol.SPISettings {
		s.Mode = 2
		return s
	})
	if err != nil {
		t.Fatal(err)
	}
	chip.Reset()
	dev.InvalidateCache()
	runtime, err := dev.SPISettings().Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(spi, runtime); diff != "" {
		t.Errorf("runtime after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestUSBStrings(t *testing.T) {
	ctx := context.Background()
	dev := New(emulator.New())

	tests := []struct {
		name string
		prop *Property[string]
		want string
	}{
		{"manufacturer", dev.Manufacturer(), "Müller GmbH €"},
		{"product", dev.Product(), "Bridge 🚀"},
		{"empty", dev.Product(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.prop.Set(ctx, tt.want); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			tt.prop.Invalidate()
			got, err := tt.prop.Get(ctx)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get() = %q, want %q", got, tt.want)
			}
		})
	}

	err := dev.Product().Set(ctx, "this product name is far too long to fit")
	if !errors.Is(err, protocol.ErrStringTooLong) {
		t.Errorf("Set(long) error = %v, want ErrStringTooLong", err)
	}
}

func TestGPIOBits(t *testing.T) {
	ctx := context.Background()
	chip := emulator.New()
	dev := New(chip)

	if err := dev.GPIODirection().Set(ctx, 0x0000); err != nil {
		t.Fatal(err)
	}
	if err := dev.GPIOValue().Set(ctx, 0x0000); err != nil {
		t.Fatal(err)
	}
	if err := dev.GPIOValue().SetBit(ctx, 3, true); err != nil {
		t.Fatal(err)
	}
	if err := dev.GPIOValue().SetBit(ctx, 8, true); err != nil {
		t.Fatal(err)
	}
	if err := dev.GPIOValue().SetBit(ctx, 3, false); err != nil {
		t.Fatal(err)
	}

	dev.GPIOValue().Invalidate()
	mask, err := dev.GPIOValue().Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mask != 0x0100 {
		t.Errorf("mask = 0x%04X, want 0x0100", mask)
	}

	high, err := dev.GPIOValue().Bit(ctx, 8)
	if err != nil || !high {
		t.Errorf("Bit(8) = %v, %v; want true", high, err)
	}

	// whole-mask writes only: 2 sets, 3 SetBit, 1 get
	if got := chip.Exchanges(); got != 6 {
		t.Errorf("exchanges = %d, want 6", got)
	}
}

func TestGPIOSetBitKeepsOtherPins(t *testing.T) {
	ctx := context.Background()
	masks := []uint16{0x0000, 0x01FF, 0x0155, 0x00AA, 0x0100, 0x0001, 0x0F0F}

	for _, mask := range masks {
		for pin := 0; pin < protocol.GPIOPinCount; pin++ {
			for _, high := range []bool{false, true} {
				chip := emulator.New()
				dev := New(chip)
				if err := dev.GPIODirection().Set(ctx, 0x0000); err != nil {
					t.Fatal(err)
				}
				if err := dev.GPIOValue().Set(ctx, mask); err != nil {
					t.Fatal(err)
				}
				if err := dev.GPIOValue().SetBit(ctx, pin, high); err != nil {
					t.Fatalf("SetBit(%d, %v) error = %v", pin, high, err)
				}

				// the chip masks values to GP0..GP8
				want := mask & 0x01FF
				if high {
					want |= 1 << pin
				} else {
					want &^= 1 << pin
				}

				dev.GPIOValue().Invalidate()
				got, err := dev.GPIOValue().Get(ctx)
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Errorf("mask 0x%04X, SetBit(%d, %v): chip = 0x%04X, want 0x%04X", mask, pin, high, got, want)
				}
				bit, err := dev.GPIOValue().Bit(ctx, pin)
				if err != nil || bit != high {
					t.Errorf("mask 0x%04X, Bit(%d) = %v, %v; want %v", mask, pin, bit, err, high)
				}
			}
		}
	}
}

func TestGPIOInvalidPin(t *testing.T) {
	ctx := context.Background()
	chip := emulator.New()
	dev := New(chip)

	for _, pin := range []int{-1, 9, 16} {
		if _, err := dev.GPIOValue().Bit(ctx, pin); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("Bit(%d) error = %v, want ErrInvalidPin", pin, err)
		}
		if err := dev.GPIODirection().SetBit(ctx, pin, true); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("SetBit(%d) error = %v, want ErrInvalidPin", pin, err)
		}
	}
	if chip.Exchanges() != 0 {
		t.Errorf("exchanges = %d, want 0", chip.Exchanges())
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	chip := emulator.New(emulator.WithPassword("hunter2"))
	dev := New(chip)

	err := dev.Authenticate(ctx, []byte("guess"))
	if code, ok := protocol.DeviceErrorCode(err); !ok || code != protocol.StatusAccessRejected {
		t.Errorf("Authenticate(wrong) error = %v, want DeviceError 0xFC", err)
	}

	if err := dev.Authenticate(ctx, []byte("hunter2")); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	st, err := dev.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.PasswordGuessed || st.PasswordAttempts != 1 {
		t.Errorf("status = %+v, want guessed with 1 attempt", st)
	}

	before := chip.Exchanges()
	err = dev.Authenticate(ctx, []byte("123456789"))
	if !errors.Is(err, protocol.ErrPasswordTooLong) {
		t.Errorf("Authenticate(9 bytes) error = %v, want ErrPasswordTooLong", err)
	}
	if chip.Exchanges() != before {
		t.Error("over-long password was sent")
	}
}

func TestCancelTransfer(t *testing.T) {
	ctx := context.Background()
	chip := emulator.New()
	dev := New(chip)

	st, err := dev.CancelTransfer(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := protocol.DeviceStatus{BusReleaseStatus: 0x01, BusOwner: protocol.BusOwnerNone}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestTransportErrors(t *testing.T) {
	ctx := context.Background()
	unplugged := errors.New("device unplugged")

	tests := []struct {
		name   string
		mock   *MockDevice
		target error
	}{
		{"write error", &MockDevice{writeErr: unplugged}, unplugged},
		{"read error", &MockDevice{readErr: unplugged}, unplugged},
		{"short read", &MockDevice{shortRead: true}, ErrShortRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mock.AddResponse(protocol.CmdGetChipStatus)
			dev := New(tt.mock)
			_, err := dev.Status(ctx)

			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want TransportError", err)
			}
			if te.Command != protocol.KindGetChipStatus {
				t.Errorf("Command = %v, want get chip status", te.Command)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("error = %v, want wrapping %v", err, tt.target)
			}
		})
	}
}

func TestResponseValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("opcode mismatch", func(t *testing.T) {
		mock := &MockDevice{}
		mock.AddResponse(protocol.CmdGetGPIOValue)
		_, err := New(mock).GPIODirection().Get(ctx)
		if !protocol.IsDecodeError(err) {
			t.Errorf("error = %v, want DecodeError", err)
		}
	})

	t.Run("sub opcode mismatch", func(t *testing.T) {
		mock := &MockDevice{}
		mock.AddResponse(protocol.CmdGetNVRAM, protocol.StatusSuccess, protocol.SubUSBVendor, 0, 2, 3)
		_, err := New(mock).Product().Get(ctx)
		if !protocol.IsDecodeError(err) {
			t.Errorf("error = %v, want DecodeError", err)
		}
	})

	t.Run("bad string length", func(t *testing.T) {
		mock := &MockDevice{}
		mock.AddResponse(protocol.CmdGetNVRAM, protocol.StatusSuccess, protocol.SubUSBProduct, 0, 1, 3)
		_, err := New(mock).Product().Get(ctx)
		if !protocol.IsDecodeError(err) {
			t.Errorf("error = %v, want DecodeError", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		mock := &MockDevice{}
		mock.AddResponse(protocol.CmdGetChipSettings, protocol.StatusSPITransferInProgress)
		_, err := New(mock).ChipSettings().Get(ctx)
		code, ok := protocol.DeviceErrorCode(err)
		if !ok || code != protocol.StatusSPITransferInProgress {
			t.Errorf("error = %v, want DeviceError 0xF8", err)
		}
	})
}

func TestContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chip := emulator.New()
	_, err := New(chip).Status(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if chip.Exchanges() != 0 {
		t.Error("exchange performed with canceled context")
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dev := New(emulator.New(), WithLogger(NewZapLogger(zap.New(core))))

	if _, err := dev.Status(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("exchange").All()
	if len(entries) != 1 {
		t.Fatalf("got %d exchange entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["command"] != "get chip status" {
		t.Errorf("command field = %v", fields["command"])
	}
	if fields["status"] != "0x00" {
		t.Errorf("status field = %v", fields["status"])
	}
}

func TestBusyEngineNotLoggedAsError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	chip := emulator.New(emulator.WithBusyFrames(3))
	dev := New(chip, WithChunkDelay(0), WithPollDelay(0), WithLogger(NewZapLogger(zap.New(core))))

	if _, err := dev.Transfer(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Errorf("got %d error entries, want 0: %v", n, logs.FilterLevelExact(zapcore.ErrorLevel).All())
	}
	if n := logs.FilterMessage("spi engine busy").Len(); n != 3 {
		t.Errorf("got %d busy entries, want 3", n)
	}
}

func TestZapLoggerErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	chip := emulator.New(emulator.WithLocked())
	dev := New(chip, WithLogger(NewZapLogger(zap.New(core))))

	if err := dev.Manufacturer().Set(context.Background(), "x"); err == nil {
		t.Fatal("expected error from locked chip")
	}
	if logs.FilterMessage("command failed").Len() != 1 {
		t.Errorf("command failure not logged: %v", logs.All())
	}
}
