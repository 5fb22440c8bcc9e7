package protocol

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// USB string descriptors are carried as UTF-16LE without a byte-order mark.
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeUSBString converts s to UTF-16LE code units.
func encodeUSBString(s string) ([]byte, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode usb string: %w", err)
	}
	if len(b)/2 > MaxStringUnits {
		return nil, fmt.Errorf("%w: %d code units, maximum is %d", ErrStringTooLong, len(b)/2, MaxStringUnits)
	}
	return b, nil
}

// decodeUSBString converts UTF-16LE code units back to a string.
func decodeUSBString(b []byte) (string, error) {
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// stringLength returns the descriptor length field for n bytes of UTF-16 data.
// The length counts the two descriptor header bytes plus the code units.
func stringLength(n int) byte {
	return byte(2 + n)
}
