// Command mcp2210ctl inspects and configures MCP2210 USB-to-SPI bridges.
//
// Usage:
//
//	mcp2210ctl [flags] <command> [args]
//
// Commands:
//
//	list                         list attached chips
//	status                       show bus owner and password state
//	cancel                       cancel a running SPI transfer
//	dump [-boot] [-usb] [-eeprom] print settings as a YAML profile
//	apply [-boot] <file.yaml>    write a YAML profile to the chip
//	gpio get|set|dir ...         read or drive GPIO pins
//	eeprom read|write ...        access the user EEPROM
//	transfer <hex>               run an SPI transfer
//	password <pw>                unlock a password protected chip
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-mcp2210/internal/emulator"
	"github.com/moffa90/go-mcp2210/mcp2210"
	"github.com/moffa90/go-mcp2210/usbhid"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mcp2210ctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "YAML config file")
		vid        = fs.Uint("vid", uint(usbhid.DefaultVendorID), "USB vendor ID")
		pid        = fs.Uint("pid", uint(usbhid.DefaultProductID), "USB product ID")
		serial     = fs.String("serial", "", "USB serial number of the chip to open")
		timeout    = fs.Duration("timeout", usbhid.DefaultReadTimeout, "report read timeout")
		verbose    = fs.Bool("v", false, "verbose logging")
		emulate    = fs.Bool("emulate", false, "use an in-process chip emulator instead of USB")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: mcp2210ctl [flags] <command> [args]")
		fmt.Fprintln(stderr, "commands: list status cancel dump apply gpio eeprom transfer password")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "vid":
			cfg.VendorID = uint16(*vid)
		case "pid":
			cfg.ProductID = uint16(*pid)
		case "serial":
			cfg.Serial = *serial
		case "timeout":
			cfg.TimeoutMS = int(*timeout / time.Millisecond)
		}
	})

	logger, err := newLogger(cfg.LogLevel, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	name, rest := fs.Arg(0), fs.Args()[1:]
	if name == "list" {
		return cmdList(stdout, cfg)
	}
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	dev, closeDev, err := openDevice(ctx, cfg, *emulate, logger)
	if err != nil {
		return err
	}
	defer closeDev()

	if cfg.Password != "" && name != "password" {
		if err := dev.Authenticate(ctx, []byte(cfg.Password)); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	return cmd(ctx, dev, rest, stdout)
}

// openDevice opens the configured chip, or an emulator when emulate is set.
func openDevice(ctx context.Context, cfg Config, emulate bool, logger *zap.Logger) (*mcp2210.Device, func(), error) {
	opts := []mcp2210.Option{
		mcp2210.WithLogger(mcp2210.NewZapLogger(logger)),
		mcp2210.WithChunkDelay(time.Duration(cfg.ChunkDelay) * time.Millisecond),
		mcp2210.WithMaxPolls(cfg.MaxPolls),
		mcp2210.WithAutoTransferSize(cfg.AutoSize),
	}

	if emulate {
		chip := emulator.New(emulator.WithLogger(logger.Named("emulator")))
		return mcp2210.New(chip, opts...), func() {}, nil
	}

	hidOpts := []usbhid.Option{
		usbhid.WithReadTimeout(time.Duration(cfg.TimeoutMS) * time.Millisecond),
	}
	if cfg.Serial != "" {
		hidOpts = append(hidOpts, usbhid.WithSerial(cfg.Serial))
	}
	hid, err := usbhid.Open(cfg.VendorID, cfg.ProductID, hidOpts...)
	if err != nil {
		return nil, nil, err
	}
	dev, err := hid.Session(ctx, opts...)
	if err != nil {
		_ = hid.Close()
		return nil, nil, err
	}
	logger.Debug("device opened",
		zap.String("vid", fmt.Sprintf("0x%04X", cfg.VendorID)),
		zap.String("pid", fmt.Sprintf("0x%04X", cfg.ProductID)),
	)
	return dev, func() { _ = hid.Close() }, nil
}

func cmdList(w io.Writer, cfg Config) error {
	infos, err := usbhid.Enumerate(cfg.VendorID, cfg.ProductID)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "no devices found")
		return nil
	}
	for _, in := range infos {
		fmt.Fprintf(w, "%04X:%04X  serial=%s  %s %s  %s\n",
			in.VendorID, in.ProductID, in.Serial, in.Manufacturer, in.Product, in.Path)
	}
	return nil
}
