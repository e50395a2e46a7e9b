package platform

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// ValidateAddress checks that address is bech32 encoded with the expected prefix
func ValidateAddress(address, prefix string) error {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return fmt.Errorf("failed to decode address: %w", err)
	}
	if prefix != "" && hrp != prefix {
		return fmt.Errorf("address %s has prefix %s, expected %s", address, hrp, prefix)
	}
	if len(data) == 0 {
		return fmt.Errorf("address %s has empty payload", address)
	}
	return nil
}

// EncodeAddress encodes raw account bytes as a bech32 address with the given prefix
func EncodeAddress(prefix string, raw []byte) (string, error) {
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}

	encoded, err := bech32.Encode(prefix, data)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}

	return encoded, nil
}
