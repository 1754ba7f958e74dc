package tx

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/crypto"
	"github.com/tinyblock/tinyblock/pkg/script"
	"github.com/tinyblock/tinyblock/pkg/wire"
)

// SigHashAll commits a signature to every input and output.
const SigHashAll = script.SigHashAll

// SigHash computes the legacy SIGHASH_ALL digest z for input inputIndex:
//
//  1. Every input's script_sig is replaced by the empty script, except
//     input inputIndex which carries prevScriptPubKey (the locking script of
//     the output it spends)
//  2. The modified transaction is serialized
//  3. SIGHASH_ALL is appended as 4 bytes LE
//  4. The result is HASH256'd and read as a big-endian integer
func (tx *Tx) SigHash(inputIndex int, prevScriptPubKey *script.Script) (*big.Int, error) {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return nil, wire.NewFormatError(wire.ErrBadLength, "input index %d out of range (%d inputs)", inputIndex, len(tx.Inputs))
	}

	empty := script.New()
	raw, err := tx.serialize(func(i int, _ *TxIn) *script.Script {
		if i == inputIndex {
			return prevScriptPubKey
		}
		return empty
	})
	if err != nil {
		return nil, errors.Wrap(err, "serializing signable form")
	}

	raw = append(raw, SigHashAll, 0x00, 0x00, 0x00)
	return new(big.Int).SetBytes(crypto.Hash256(raw)), nil
}
