// Package builder assembles and signs legacy P2PKH transactions.
//
// Construction is split into three roles:
//   - Creator: collects inputs and outputs into an unsigned transaction
//   - Signer: fills in each input's script_sig and checks it verifies
//   - Extractor: checks every input is signed and produces the final bytes
//
// The roles hand a *tx.Tx from one to the next, so a transaction can be
// created in one place and signed later once the previous outputs are
// reachable through a tx.Fetcher.
package builder

import (
	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/bip21"
	"github.com/tinyblock/tinyblock/pkg/crypto"
	"github.com/tinyblock/tinyblock/pkg/script"
	"github.com/tinyblock/tinyblock/pkg/tx"
)

// Creator collects the inputs and outputs of a new transaction.
//
// The Creator fixes the transaction-wide fields (version 1, locktime and
// network) and appends inputs and outputs in the order they are added.
// It never looks up previous transactions: amounts and locking scripts of
// the outputs being spent are only needed by the Signer.
type Creator struct {
	testnet  bool
	lockTime uint32
	inputs   []*tx.TxIn
	outputs  []*tx.TxOut
}

// NewCreator creates a Creator for the given network.
//
// Parameters:
//   - testnet: whether addresses and the built transaction are for testnet
func NewCreator(testnet bool) *Creator {
	return &Creator{testnet: testnet}
}

// WithLockTime sets the transaction locktime (default 0).
func (c *Creator) WithLockTime(lockTime uint32) *Creator {
	c.lockTime = lockTime
	return c
}

// AddInput appends an input spending a previous output. The input starts
// with an empty script_sig and the final sequence number.
//
// Parameters:
//   - prevTxID: display-hex id of the transaction holding the output
//   - index: position of the output within that transaction
func (c *Creator) AddInput(prevTxID string, index uint32) error {
	id, err := tx.ParseTxID(prevTxID)
	if err != nil {
		return errors.Wrap(err, "adding input")
	}
	c.inputs = append(c.inputs, tx.NewTxIn(id, index))
	return nil
}

// AddOutput appends an output paying amount satoshis to a P2PKH address.
//
// Parameters:
//   - amount: value in satoshis, at most tx.MaxMoney
//   - address: base58check P2PKH address on the creator's network
//
// Returns an error if the address does not decode or is for the other
// network.
func (c *Creator) AddOutput(amount uint64, address string) error {
	if amount > tx.MaxMoney {
		return errors.Errorf("amount %d exceeds the %d satoshi supply", amount, uint64(tx.MaxMoney))
	}
	h160, testnet, err := crypto.DecodeAddress(address)
	if err != nil {
		return errors.Wrapf(err, "decoding address %s", address)
	}
	if testnet != c.testnet {
		return errors.Errorf("address %s is for the wrong network", address)
	}
	c.outputs = append(c.outputs, &tx.TxOut{Amount: amount, ScriptPubKey: script.P2PKH(h160)})
	return nil
}

// AddPaymentURI appends the output requested by a BIP 21 payment URI, such
// as "bitcoin:1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH?amount=0.001".
//
// The URI must carry an amount; label and message are informational and
// ignored. The address is checked as in AddOutput.
func (c *Creator) AddPaymentURI(uri string) error {
	req, err := bip21.Parse(uri)
	if err != nil {
		return errors.Wrap(err, "parsing payment uri")
	}
	if req.Amount == nil {
		return errors.Errorf("payment uri %s has no amount", uri)
	}
	return c.AddOutput(*req.Amount, req.Address)
}

// Build returns the unsigned transaction.
//
// The result has version 1, every script_sig empty and every sequence
// final. It is ready for the Signer. The Creator keeps its own copy of the
// input and output lists, so adding more afterwards does not change a
// transaction already built.
//
// Returns an error if no inputs or no outputs were added.
func (c *Creator) Build() (*tx.Tx, error) {
	if len(c.inputs) == 0 {
		return nil, errors.New("transaction has no inputs")
	}
	if len(c.outputs) == 0 {
		return nil, errors.New("transaction has no outputs")
	}
	return &tx.Tx{
		Version:  1,
		Inputs:   append([]*tx.TxIn(nil), c.inputs...),
		Outputs:  append([]*tx.TxOut(nil), c.outputs...),
		LockTime: c.lockTime,
		Testnet:  c.testnet,
	}, nil
}
