// Package tx implements the legacy (pre-segwit) Bitcoin transaction format:
// parsing, serialization, ids, signature digests, fees and input
// verification.
//
// Wire format:
//
//	version (4 bytes LE)
//	input count (varint)
//	  prev tx id (32 bytes, reversed) || prev index (4 bytes LE) ||
//	  script_sig (varint-prefixed) || sequence (4 bytes LE)
//	output count (varint)
//	  amount (8 bytes LE) || script_pubkey (varint-prefixed)
//	locktime (4 bytes LE)
//
// Transaction ids are kept in display (big-endian) order and reversed only
// at the wire boundary.
package tx

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/crypto"
	"github.com/tinyblock/tinyblock/pkg/script"
	"github.com/tinyblock/tinyblock/pkg/wire"
)

// DefaultSequence is the final sequence number.
const DefaultSequence = 0xffffffff

// maxCount bounds the declared number of inputs or outputs so a corrupt
// count cannot trigger a huge allocation. One input is at least 41 bytes,
// so no valid transaction comes close.
const maxCount = 100_000

// TxIn is a reference to a previous output plus the script that unlocks it.
type TxIn struct {
	PrevTxID  [32]byte // display order
	PrevIndex uint32
	ScriptSig *script.Script
	Sequence  uint32
}

// NewTxIn creates an input spending prevTxID:prevIndex with an empty
// script_sig and the final sequence number.
func NewTxIn(prevTxID [32]byte, prevIndex uint32) *TxIn {
	return &TxIn{
		PrevTxID:  prevTxID,
		PrevIndex: prevIndex,
		ScriptSig: script.New(),
		Sequence:  DefaultSequence,
	}
}

// PrevTxIDHex returns the previous transaction id as display hex.
func (in *TxIn) PrevTxIDHex() string {
	return hex.EncodeToString(in.PrevTxID[:])
}

func (in *TxIn) String() string {
	return fmt.Sprintf("%s:%d", in.PrevTxIDHex(), in.PrevIndex)
}

// TxOut is an amount in satoshis locked by a script.
type TxOut struct {
	Amount       uint64
	ScriptPubKey *script.Script
}

func (out *TxOut) String() string {
	return fmt.Sprintf("%d:%s", out.Amount, out.ScriptPubKey)
}

// Tx is a legacy transaction. Testnet selects the network used to look up
// previous transactions; it is not part of the serialization.
type Tx struct {
	Version  uint32
	Inputs   []*TxIn
	Outputs  []*TxOut
	LockTime uint32
	Testnet  bool
}

// ParseTxIn reads a single input.
func ParseTxIn(r io.Reader) (*TxIn, error) {
	in := &TxIn{}

	var prev [32]byte
	if err := wire.ReadBytes(r, prev[:], "prev tx id"); err != nil {
		return nil, err
	}
	copy(in.PrevTxID[:], wire.ReverseBytes(prev[:]))

	var err error
	if in.PrevIndex, err = wire.ReadUint32(r); err != nil {
		return nil, errors.Wrap(err, "reading prev tx index")
	}
	if in.ScriptSig, err = script.Parse(r); err != nil {
		return nil, errors.Wrap(err, "reading script_sig")
	}
	if in.Sequence, err = wire.ReadUint32(r); err != nil {
		return nil, errors.Wrap(err, "reading sequence")
	}

	return in, nil
}

// ParseTxOut reads a single output.
func ParseTxOut(r io.Reader) (*TxOut, error) {
	out := &TxOut{}

	var err error
	if out.Amount, err = wire.ReadUint64(r); err != nil {
		return nil, errors.Wrap(err, "reading amount")
	}
	if out.ScriptPubKey, err = script.Parse(r); err != nil {
		return nil, errors.Wrap(err, "reading script_pubkey")
	}

	return out, nil
}

// Parse reads a transaction from r. Any failure aborts the whole parse; no
// partially parsed transaction is returned.
func Parse(r io.Reader, testnet bool) (*Tx, error) {
	tx := &Tx{Testnet: testnet}

	var err error
	if tx.Version, err = wire.ReadUint32(r); err != nil {
		return nil, errors.Wrap(err, "reading version")
	}

	numInputs, err := readCount(r, "input")
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]*TxIn, 0, numInputs)
	for i := uint64(0); i < numInputs; i++ {
		in, err := ParseTxIn(r)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing input %d", i)
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	numOutputs, err := readCount(r, "output")
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]*TxOut, 0, numOutputs)
	for i := uint64(0); i < numOutputs; i++ {
		out, err := ParseTxOut(r)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing output %d", i)
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if tx.LockTime, err = wire.ReadUint32(r); err != nil {
		return nil, errors.Wrap(err, "reading locktime")
	}

	return tx, nil
}

// ParseBytes parses a complete serialized transaction, rejecting trailing
// bytes.
func ParseBytes(data []byte, testnet bool) (*Tx, error) {
	r := bytes.NewReader(data)
	tx, err := Parse(r, testnet)
	if err != nil {
		return nil, err
	}
	if err := wire.ExpectEOF(r); err != nil {
		return nil, err
	}
	return tx, nil
}

// ParseHex parses a hex-encoded transaction.
func ParseHex(s string, testnet bool) (*Tx, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, &wire.FormatError{Code: wire.ErrBadTag, Message: "transaction is not valid hex", Cause: err}
	}
	return ParseBytes(data, testnet)
}

func readCount(r io.Reader, what string) (uint64, error) {
	n, err := wire.ReadVarInt(r)
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s count", what)
	}
	if n > maxCount {
		return 0, wire.NewFormatError(wire.ErrBadLength, "%s count %d exceeds maximum %d", what, n, maxCount)
	}
	return n, nil
}

func (in *TxIn) appendTo(b []byte, scriptSig *script.Script) ([]byte, error) {
	b = append(b, wire.ReverseBytes(in.PrevTxID[:])...)
	b = wire.AppendUint32(b, in.PrevIndex)

	raw, err := scriptSig.Serialize()
	if err != nil {
		return nil, errors.Wrapf(err, "serializing script_sig of %s", in)
	}
	b = append(b, raw...)

	return wire.AppendUint32(b, in.Sequence), nil
}

// Serialize encodes the input.
func (in *TxIn) Serialize() ([]byte, error) {
	return in.appendTo(nil, in.ScriptSig)
}

func (out *TxOut) appendTo(b []byte) ([]byte, error) {
	b = wire.AppendUint64(b, out.Amount)

	raw, err := out.ScriptPubKey.Serialize()
	if err != nil {
		return nil, errors.Wrap(err, "serializing script_pubkey")
	}
	return append(b, raw...), nil
}

// Serialize encodes the output.
func (out *TxOut) Serialize() ([]byte, error) {
	return out.appendTo(nil)
}

// Serialize encodes the transaction. It fails only if a script built in
// memory carries a data push its encoding cannot hold.
func (tx *Tx) Serialize() ([]byte, error) {
	return tx.serialize(func(_ int, in *TxIn) *script.Script { return in.ScriptSig })
}

// serialize encodes the transaction, taking each input's script_sig from
// scriptFor so the signature digest can substitute scripts without copying
// the transaction.
func (tx *Tx) serialize(scriptFor func(int, *TxIn) *script.Script) ([]byte, error) {
	b := wire.AppendUint32(nil, tx.Version)

	var err error
	b = wire.AppendVarInt(b, uint64(len(tx.Inputs)))
	for i, in := range tx.Inputs {
		if b, err = in.appendTo(b, scriptFor(i, in)); err != nil {
			return nil, errors.Wrapf(err, "serializing input %d", i)
		}
	}

	b = wire.AppendVarInt(b, uint64(len(tx.Outputs)))
	for i, out := range tx.Outputs {
		if b, err = out.appendTo(b); err != nil {
			return nil, errors.Wrapf(err, "serializing output %d", i)
		}
	}

	return wire.AppendUint32(b, tx.LockTime), nil
}

// Hash returns HASH256 of the serialization in display order.
func (tx *Tx) Hash() ([]byte, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	return wire.ReverseBytes(crypto.Hash256(raw)), nil
}

// ID returns the transaction id as display hex. It is recomputed from the
// content on every call.
func (tx *Tx) ID() (string, error) {
	h, err := tx.Hash()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h), nil
}

// IsCoinbase reports whether tx is a coinbase: a single input spending
// index 0xffffffff of the all-zero transaction id.
func (tx *Tx) IsCoinbase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	in := tx.Inputs[0]
	return in.PrevTxID == [32]byte{} && in.PrevIndex == 0xffffffff
}

// Equal reports whether both transactions have identical content.
func (tx *Tx) Equal(other *Tx) bool {
	if tx == nil || other == nil {
		return tx == other
	}
	if tx.Version != other.Version || tx.LockTime != other.LockTime ||
		len(tx.Inputs) != len(other.Inputs) || len(tx.Outputs) != len(other.Outputs) {
		return false
	}
	for i, in := range tx.Inputs {
		o := other.Inputs[i]
		if in.PrevTxID != o.PrevTxID || in.PrevIndex != o.PrevIndex ||
			in.Sequence != o.Sequence || !in.ScriptSig.Equal(o.ScriptSig) {
			return false
		}
	}
	for i, out := range tx.Outputs {
		o := other.Outputs[i]
		if out.Amount != o.Amount || !out.ScriptPubKey.Equal(o.ScriptPubKey) {
			return false
		}
	}
	return true
}

// ParseTxID decodes a display-hex transaction id.
func ParseTxID(s string) ([32]byte, error) {
	var id [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, &wire.FormatError{Code: wire.ErrBadTag, Message: "transaction id is not valid hex", Cause: err}
	}
	if len(b) != 32 {
		return id, wire.NewFormatError(wire.ErrBadLength, "transaction id must be 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}
