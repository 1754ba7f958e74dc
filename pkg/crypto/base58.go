package crypto

import (
	"github.com/btcsuite/btcutil/base58"

	"github.com/tinyblock/tinyblock/pkg/wire"
)

// Base58Encode encodes b with the Bitcoin base58 alphabet. Leading zero
// bytes become leading '1' characters.
func Base58Encode(b []byte) string {
	return base58.Encode(b)
}

// Base58CheckEncode appends the first four bytes of HASH256(payload) to
// payload and base58-encodes the result. The first payload byte is the
// version (network prefix).
func Base58CheckEncode(payload []byte) string {
	if len(payload) == 0 {
		return base58.Encode(Hash256(nil)[:4])
	}
	return base58.CheckEncode(payload[1:], payload[0])
}

// Base58CheckDecode reverses Base58CheckEncode, verifying the checksum.
// It returns the version byte and the remaining payload.
func Base58CheckDecode(s string) (version byte, payload []byte, err error) {
	payload, version, err = base58.CheckDecode(s)
	switch err {
	case nil:
		return version, payload, nil
	case base58.ErrChecksum:
		return 0, nil, &wire.FormatError{Code: wire.ErrBadChecksum, Message: "base58 checksum mismatch", Cause: err}
	default:
		return 0, nil, &wire.FormatError{Code: wire.ErrBadLength, Message: "invalid base58check string", Cause: err}
	}
}
