package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/moffa90/go-mcp2210/mcp2210"
	"github.com/moffa90/go-mcp2210/profile"
	"github.com/moffa90/go-mcp2210/protocol"
)

type command func(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error

var commands = map[string]command{
	"status":   cmdStatus,
	"cancel":   cmdCancel,
	"dump":     cmdDump,
	"apply":    cmdApply,
	"gpio":     cmdGPIO,
	"eeprom":   cmdEEPROM,
	"transfer": cmdTransfer,
	"password": cmdPassword,
}

func printStatus(w io.Writer, st protocol.DeviceStatus) {
	owner := map[byte]string{
		protocol.BusOwnerNone:     "none",
		protocol.BusOwnerBridge:   "mcp2210",
		protocol.BusOwnerExternal: "external master",
	}[st.BusOwner]
	if owner == "" {
		owner = fmt.Sprintf("0x%02X", st.BusOwner)
	}
	fmt.Fprintf(w, "bus owner:         %s\n", owner)
	fmt.Fprintf(w, "bus release:       0x%02X\n", st.BusReleaseStatus)
	fmt.Fprintf(w, "password attempts: %d\n", st.PasswordAttempts)
	fmt.Fprintf(w, "password guessed:  %v\n", st.PasswordGuessed)
}

func cmdStatus(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	st, err := dev.Status(ctx)
	if err != nil {
		return err
	}
	printStatus(w, st)
	return nil
}

func cmdCancel(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	st, err := dev.CancelTransfer(ctx)
	if err != nil {
		return err
	}
	printStatus(w, st)
	return nil
}

func cmdDump(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(w)
	boot := fs.Bool("boot", false, "read power-up settings instead of runtime settings")
	usb := fs.Bool("usb", false, "include USB settings and strings")
	eeprom := fs.Bool("eeprom", false, "include the user EEPROM")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := profile.CaptureOptions{Scope: profile.Runtime, USB: *usb, EEPROM: *eeprom}
	if *boot {
		opts.Scope = profile.Boot
	}
	p, err := profile.Capture(ctx, dev, opts)
	if err != nil {
		return err
	}
	return p.Encode(w)
}

func cmdApply(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(w)
	boot := fs.Bool("boot", false, "write power-up settings instead of runtime settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: apply [-boot] <profile.yaml>")
	}

	p, err := profile.Parse(fs.Arg(0))
	if err != nil {
		return err
	}
	scope := profile.Runtime
	if *boot {
		scope = profile.Boot
	}
	if err := profile.Apply(ctx, dev, p, scope); err != nil {
		return err
	}
	fmt.Fprintf(w, "applied %s to %s settings\n", fs.Arg(0), scope)
	return nil
}

func cmdGPIO(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	const usage = "usage: gpio get | gpio set <pin> <0|1> | gpio dir <pin> <in|out>"
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "get":
		dir, err := dev.GPIODirection().Get(ctx)
		if err != nil {
			return err
		}
		val, err := dev.GPIOValue().Get(ctx)
		if err != nil {
			return err
		}
		for pin := 0; pin < protocol.GPIOPinCount; pin++ {
			mode := "out"
			if dir&(1<<pin) != 0 {
				mode = "in "
			}
			fmt.Fprintf(w, "GP%d %s %d\n", pin, mode, (val>>pin)&1)
		}
		return nil

	case "set", "dir":
		if len(args) != 3 {
			return errors.New(usage)
		}
		pin, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid pin %q", args[1])
		}
		if args[0] == "set" {
			high, err := parseLevel(args[2])
			if err != nil {
				return err
			}
			return dev.GPIOValue().SetBit(ctx, pin, high)
		}
		switch args[2] {
		case "in":
			return dev.GPIODirection().SetBit(ctx, pin, true)
		case "out":
			return dev.GPIODirection().SetBit(ctx, pin, false)
		default:
			return fmt.Errorf("invalid direction %q (want in or out)", args[2])
		}

	default:
		return errors.New(usage)
	}
}

func parseLevel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "high", "on":
		return true, nil
	case "0", "low", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid level %q (want 0 or 1)", s)
	}
}

func cmdEEPROM(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	const usage = "usage: eeprom read <addr> [count] | eeprom write <addr> <hex>"
	if len(args) < 2 {
		return errors.New(usage)
	}
	addr, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid address %q", args[1])
	}

	switch args[0] {
	case "read":
		n := uint64(1)
		if len(args) > 2 {
			if n, err = strconv.ParseUint(args[2], 0, 16); err != nil {
				return fmt.Errorf("invalid count %q", args[2])
			}
		}
		data, err := dev.EEPROM().ReadRange(ctx, int(addr), int(n))
		if err != nil {
			return err
		}
		fmt.Fprint(w, hex.Dump(data))
		return nil

	case "write":
		if len(args) != 3 {
			return errors.New(usage)
		}
		data, err := parseHex(args[2])
		if err != nil {
			return err
		}
		if err := dev.EEPROM().WriteRange(ctx, int(addr), data); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %d bytes at 0x%02X\n", len(data), addr)
		return nil

	default:
		return errors.New(usage)
	}
}

func cmdTransfer(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: transfer <hex>")
	}
	tx, err := parseHex(args[0])
	if err != nil {
		return err
	}
	rx, err := dev.Transfer(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strings.ToUpper(hex.EncodeToString(rx)))
	return nil
}

func cmdPassword(ctx context.Context, dev *mcp2210.Device, args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: password <password>")
	}
	if err := dev.Authenticate(ctx, []byte(args[0])); err != nil {
		return err
	}
	fmt.Fprintln(w, "access granted")
	return nil
}

// parseHex accepts hex digits with optional spaces, colons or a 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return b, nil
}
