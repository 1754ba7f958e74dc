package crypto

import "github.com/tinyblock/tinyblock/pkg/wire"

// Address version bytes.
const (
	MainnetP2PKHPrefix = 0x00
	TestnetP2PKHPrefix = 0x6f
)

// Address returns the base58check P2PKH address of p.
func (p *S256Point) Address(compressed, testnet bool) string {
	return EncodeAddress(p.Hash160(compressed), testnet)
}

// EncodeAddress returns the base58check P2PKH address for a 20-byte public
// key hash.
func EncodeAddress(h160 []byte, testnet bool) string {
	prefix := byte(MainnetP2PKHPrefix)
	if testnet {
		prefix = TestnetP2PKHPrefix
	}
	return Base58CheckEncode(append([]byte{prefix}, h160...))
}

// DecodeAddress parses a base58check P2PKH address, returning the 20-byte
// public key hash and whether the address is for testnet.
func DecodeAddress(addr string) ([]byte, bool, error) {
	version, payload, err := Base58CheckDecode(addr)
	if err != nil {
		return nil, false, err
	}

	var testnet bool
	switch version {
	case MainnetP2PKHPrefix:
	case TestnetP2PKHPrefix:
		testnet = true
	default:
		return nil, false, wire.NewFormatError(wire.ErrBadPrefix, "unknown address version 0x%02x", version)
	}

	if len(payload) != 20 {
		return nil, false, wire.NewFormatError(wire.ErrBadLength, "address payload must be 20 bytes, got %d", len(payload))
	}
	return payload, testnet, nil
}
