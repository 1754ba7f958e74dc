package crypto

import (
	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/wire"
)

// WIF version bytes.
const (
	mainnetWIFPrefix = 0x80
	testnetWIFPrefix = 0xef

	wifCompressedFlag = 0x01
)

// WIF encodes the key in Wallet Import Format:
//
//	version_byte || private_key (32 bytes) || [0x01 if compressed] || checksum (4 bytes)
//
// The compression flag tells wallets which SEC form to derive addresses
// from.
func (k *PrivateKey) WIF(compressed, testnet bool) string {
	version := byte(mainnetWIFPrefix)
	if testnet {
		version = testnetWIFPrefix
	}

	payload := make([]byte, 0, 34)
	payload = append(payload, version)
	payload = append(payload, k.Bytes()...)
	if compressed {
		payload = append(payload, wifCompressedFlag)
	}

	return Base58CheckEncode(payload)
}

// ParseWIF decodes a WIF string, returning the key and the compression and
// network flags it carries.
func ParseWIF(wif string, opts ...KeyOption) (key *PrivateKey, compressed, testnet bool, err error) {
	version, payload, err := Base58CheckDecode(wif)
	if err != nil {
		return nil, false, false, errors.Wrap(err, "decoding WIF")
	}

	switch version {
	case mainnetWIFPrefix:
	case testnetWIFPrefix:
		testnet = true
	default:
		return nil, false, false, wire.NewFormatError(wire.ErrBadPrefix, "invalid WIF version byte: 0x%02x", version)
	}

	switch {
	case len(payload) == 33 && payload[32] == wifCompressedFlag:
		compressed = true
		payload = payload[:32]
	case len(payload) == 32:
	default:
		return nil, false, false, wire.NewFormatError(wire.ErrBadLength, "invalid WIF payload length %d", len(payload))
	}

	key, err = PrivateKeyFromBytes(payload, opts...)
	if err != nil {
		return nil, false, false, errors.Wrap(err, "decoding WIF secret")
	}
	return key, compressed, testnet, nil
}
