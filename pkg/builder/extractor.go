package builder

import (
	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/tx"
)

// Extractor produces the final bytes of a fully signed transaction.
//
// It is the last role: its output is the raw transaction ready for
// broadcast, together with the id it will be known by.
type Extractor struct {
	tx *tx.Tx
}

// NewExtractor creates an Extractor for t.
func NewExtractor(t *tx.Tx) *Extractor {
	return &Extractor{tx: t}
}

// Extract returns the serialized transaction and its id.
//
// This performs the following steps:
//  1. Checks that every input carries a script_sig
//  2. Serializes the transaction in the legacy wire format
//  3. Computes the id from those bytes
//
// Returns an error naming the first unsigned input, if any.
func (e *Extractor) Extract() ([]byte, string, error) {
	for i, in := range e.tx.Inputs {
		if in.ScriptSig == nil || in.ScriptSig.Len() == 0 {
			return nil, "", errors.Errorf("input %d missing script_sig (not signed)", i)
		}
	}

	raw, err := e.tx.Serialize()
	if err != nil {
		return nil, "", errors.Wrap(err, "serializing transaction")
	}
	id, err := e.tx.ID()
	if err != nil {
		return nil, "", err
	}
	return raw, id, nil
}
