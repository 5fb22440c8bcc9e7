package profile

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-mcp2210/protocol"
)

// PinFunction is a pin designation written as "gpio", "cs" or "dedicated".
// Designations without a name are written as their raw byte value.
type PinFunction byte

// Pin functions.
const (
	PinGPIO      PinFunction = protocol.PinGPIO
	PinCS        PinFunction = protocol.PinChipSelect
	PinDedicated PinFunction = protocol.PinDedicated
)

var pinNames = map[PinFunction]string{
	PinGPIO:      "gpio",
	PinCS:        "cs",
	PinDedicated: "dedicated",
}

func (p PinFunction) String() string {
	if name, ok := pinNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PinFunction(0x%02X)", byte(p))
}

// MarshalYAML implements yaml.Marshaler.
func (p PinFunction) MarshalYAML() (interface{}, error) {
	if name, ok := pinNames[p]; ok {
		return name, nil
	}
	return int(p), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PinFunction) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: pin designation must be a scalar", node.Line)
	}
	value := strings.ToLower(strings.TrimSpace(node.Value))
	for fn, name := range pinNames {
		if name == value {
			*p = fn
			return nil
		}
	}
	if n, err := strconv.ParseUint(value, 0, 8); err == nil {
		*p = PinFunction(n)
		return nil
	}
	return fmt.Errorf("line %d: unknown pin designation %q (want gpio, cs, dedicated or a byte value)", node.Line, node.Value)
}

// HexBytes is a byte string written as hex digits. Spaces are ignored on input.
type HexBytes []byte

// MarshalYAML implements yaml.Marshaler.
func (h HexBytes) MarshalYAML() (interface{}, error) {
	return strings.ToUpper(hex.EncodeToString(h)), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HexBytes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: hex data must be a scalar", node.Line)
	}
	s := strings.Join(strings.Fields(node.Value), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid hex data: %w", node.Line, err)
	}
	*h = b
	return nil
}
