package mcp2210

import (
	"context"
	"fmt"

	"github.com/moffa90/go-mcp2210/protocol"
)

// GPIO is a cached 16-bit pin mask (direction or level) with per-pin access.
// Bit i corresponds to pin GPi; pins 0-8 are usable.
type GPIO struct {
	prop *Property[uint16]
}

func newGPIO(name string, fetch func(context.Context) (uint16, error), push func(context.Context, uint16) error) *GPIO {
	return &GPIO{prop: newProperty(name, fetch, push)}
}

// Get returns the whole mask, reading it from the chip on first use.
func (g *GPIO) Get(ctx context.Context) (uint16, error) {
	return g.prop.Get(ctx)
}

// Set writes the whole mask.
func (g *GPIO) Set(ctx context.Context, mask uint16) error {
	return g.prop.Set(ctx, mask)
}

// Bit returns the state of one pin.
func (g *GPIO) Bit(ctx context.Context, pin int) (bool, error) {
	if err := checkPin(pin); err != nil {
		return false, err
	}
	mask, err := g.prop.Get(ctx)
	if err != nil {
		return false, err
	}
	return (mask>>pin)&1 == 1, nil
}

// SetBit changes one pin and writes the full mask; the other bits are kept.
func (g *GPIO) SetBit(ctx context.Context, pin int, v bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	_, err := g.prop.Update(ctx, func(mask uint16) uint16 {
		if v {
			return mask | 1<<pin
		}
		return mask &^ (1 << pin)
	})
	return err
}

// Cached returns the cached mask without contacting the chip.
func (g *GPIO) Cached() (uint16, bool) {
	return g.prop.Cached()
}

// Invalidate drops the cached mask, so the next read refreshes input levels.
func (g *GPIO) Invalidate() {
	g.prop.Invalidate()
}

func checkPin(pin int) error {
	if pin < 0 || pin >= protocol.GPIOPinCount {
		return fmt.Errorf("%w: %d (valid 0-%d)", ErrInvalidPin, pin, protocol.GPIOPinCount-1)
	}
	return nil
}
