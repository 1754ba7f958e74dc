package builder

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/crypto"
	"github.com/tinyblock/tinyblock/pkg/script"
	"github.com/tinyblock/tinyblock/pkg/tx"
)

// Signer signs the P2PKH inputs of a transaction.
//
// Signing an input needs the locking script of the output it spends, which
// the Signer resolves through the fetcher. Each input is signed with
// SIGHASH_ALL, so the signature commits to every input and output; any
// change to the outputs after signing invalidates it.
type Signer struct {
	tx      *tx.Tx
	fetcher tx.Fetcher
}

// NewSigner creates a Signer for t.
//
// Parameters:
//   - t: the unsigned transaction, usually from Creator.Build; it is
//     modified in place
//   - f: lookup for the previous transactions t spends
func NewSigner(t *tx.Tx, f tx.Fetcher) *Signer {
	return &Signer{tx: t, fetcher: f}
}

// SignInput signs input i with key using SIGHASH_ALL.
//
// This performs the following steps:
//  1. Resolves the locking script of the output spent by input i
//  2. Computes the signature digest z against that script
//  3. Signs z and sets the script_sig to <DER || 0x01> <compressed SEC>
//  4. Runs the combined script to check the input verifies
//
// Parameters:
//   - ctx: bounds the previous-transaction lookup
//   - i: index of the input to sign
//   - key: private key owning the output being spent
//
// Returns an error if the lookup fails or the input does not verify
// (typically because key does not own that output); in the latter case the
// script_sig is reset to empty.
func (s *Signer) SignInput(ctx context.Context, i int, key *crypto.PrivateKey) error {
	if i < 0 || i >= len(s.tx.Inputs) {
		return errors.Errorf("input index %d out of bounds (have %d inputs)", i, len(s.tx.Inputs))
	}
	in := s.tx.Inputs[i]

	scriptPubKey, err := in.ScriptPubKey(ctx, s.fetcher, s.tx.Testnet)
	if err != nil {
		return errors.Wrapf(err, "resolving output spent by input %d", i)
	}

	z, err := s.tx.SigHash(i, scriptPubKey)
	if err != nil {
		return errors.Wrap(err, "computing sighash")
	}

	sig, err := key.Sign(z)
	if err != nil {
		return errors.Wrap(err, "signing")
	}

	der := append(sig.DER(), tx.SigHashAll)
	in.ScriptSig = script.P2PKHUnlock(der, key.PublicKey().SEC(true))

	ok, err := s.tx.VerifyInput(ctx, s.fetcher, i)
	if err != nil {
		return errors.Wrapf(err, "verifying input %d", i)
	}
	if !ok {
		in.ScriptSig = script.New()
		return errors.Errorf("signature for input %d does not verify", i)
	}
	return nil
}

// Finish returns the transaction being signed.
//
// Once every input is signed it can be passed to the Extractor.
func (s *Signer) Finish() *tx.Tx {
	return s.tx
}
