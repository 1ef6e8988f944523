package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// addressHexLength is the number of hex digits in a standardized account address
const addressHexLength = 64

// ParseAddress validates an account address and returns it standardized as 0x followed by
// 64 lowercase hex digits
func ParseAddress(address string) (string, error) {
	hex := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(address)), "0x")
	if hex == "" || len(hex) > addressHexLength {
		return "", fmt.Errorf("invalid address length: %q", address)
	}
	for _, r := range hex {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("invalid address character %q in %q", r, address)
		}
	}
	return "0x" + strings.Repeat("0", addressHexLength-len(hex)) + hex, nil
}

// StandardizeAddress is ParseAddress for addresses already known to be well formed.
// Malformed input is returned lowercased and unchanged otherwise.
func StandardizeAddress(address string) string {
	standardized, err := ParseAddress(address)
	if err != nil {
		return strings.ToLower(address)
	}
	return standardized
}

// CreateResourceAddress derives the address of a resource account created by deployer with seed
func CreateResourceAddress(deployer string, seed string) (string, error) {
	standardized, err := ParseAddress(deployer)
	if err != nil {
		return "", err
	}

	raw, err := hexutil.Decode(standardized)
	if err != nil {
		return "", fmt.Errorf("failed to decode address: %w", err)
	}

	h := sha3.New256()
	h.Write(raw)
	h.Write([]byte(seed))
	h.Write([]byte{resourceAddressScheme})

	return hexutil.Encode(h.Sum(nil)), nil
}
