package tx

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tinyblock/tinyblock/pkg/script"
	"github.com/tinyblock/tinyblock/pkg/wire"
)

// Fetcher looks up a previous transaction by its display-hex id.
// Implementations may cache; they must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, txID string, testnet bool) (*Tx, error)
}

// PrevOutput fetches the output this input spends.
func (in *TxIn) PrevOutput(ctx context.Context, f Fetcher, testnet bool) (*TxOut, error) {
	prev, err := f.Fetch(ctx, in.PrevTxIDHex(), testnet)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching previous transaction %s", in.PrevTxIDHex())
	}
	if int(in.PrevIndex) >= len(prev.Outputs) {
		return nil, wire.NewFormatError(wire.ErrBadLength, "%s has %d outputs, input spends index %d",
			in.PrevTxIDHex(), len(prev.Outputs), in.PrevIndex)
	}
	return prev.Outputs[in.PrevIndex], nil
}

// Value returns the amount of the output this input spends.
func (in *TxIn) Value(ctx context.Context, f Fetcher, testnet bool) (uint64, error) {
	out, err := in.PrevOutput(ctx, f, testnet)
	if err != nil {
		return 0, err
	}
	return out.Amount, nil
}

// ScriptPubKey returns the locking script of the output this input spends.
func (in *TxIn) ScriptPubKey(ctx context.Context, f Fetcher, testnet bool) (*script.Script, error) {
	out, err := in.PrevOutput(ctx, f, testnet)
	if err != nil {
		return nil, err
	}
	return out.ScriptPubKey, nil
}

// MaxMoney is the total supply in satoshis. No single amount, and no sum of
// a transaction's inputs or outputs, may exceed it.
const MaxMoney = 21_000_000 * 100_000_000

// sumAmounts adds amounts, rejecting any amount or running total above
// MaxMoney with an OverflowError. Both bounds keep the sum inside uint64.
func sumAmounts(amounts []uint64, what string) (uint64, error) {
	var total uint64
	for i, v := range amounts {
		if v > MaxMoney {
			return 0, wire.NewOverflowError("%s %d amount %d exceeds %d", what, i, v, uint64(MaxMoney))
		}
		total += v
		if total > MaxMoney {
			return 0, wire.NewOverflowError("%s total exceeds %d at %s %d", what, uint64(MaxMoney), what, i)
		}
	}
	return total, nil
}

// Fee returns the sum of input values minus the sum of output amounts.
// Input values are resolved concurrently. A negative fee is returned as-is.
// Amounts above MaxMoney fail with an OverflowError.
func (tx *Tx) Fee(ctx context.Context, f Fetcher) (int64, error) {
	values := make([]uint64, len(tx.Inputs))

	g, gctx := errgroup.WithContext(ctx)
	for i, in := range tx.Inputs {
		i, in := i, in
		g.Go(func() error {
			v, err := in.Value(gctx, f, tx.Testnet)
			if err != nil {
				return errors.Wrapf(err, "resolving value of input %d", i)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	in, err := sumAmounts(values, "input")
	if err != nil {
		return 0, err
	}

	amounts := make([]uint64, len(tx.Outputs))
	for i, out := range tx.Outputs {
		amounts[i] = out.Amount
	}
	out, err := sumAmounts(amounts, "output")
	if err != nil {
		return 0, err
	}

	// Both totals are at most MaxMoney, so neither conversion wraps.
	return int64(in) - int64(out), nil
}

// VerifyInput checks that input i's script_sig unlocks the output it
// spends. The error is set only when the previous output cannot be resolved
// or the transaction cannot be serialized; an invalid script is false.
func (tx *Tx) VerifyInput(ctx context.Context, f Fetcher, i int, opts ...script.EngineOption) (bool, error) {
	if i < 0 || i >= len(tx.Inputs) {
		return false, wire.NewFormatError(wire.ErrBadLength, "input index %d out of range (%d inputs)", i, len(tx.Inputs))
	}
	in := tx.Inputs[i]

	scriptPubKey, err := in.ScriptPubKey(ctx, f, tx.Testnet)
	if err != nil {
		return false, err
	}

	z, err := tx.SigHash(i, scriptPubKey)
	if err != nil {
		return false, err
	}

	combined := in.ScriptSig.Combine(scriptPubKey)
	return combined.Evaluate(z, opts...), nil
}

// Verify checks that every amount is in range, that the fee is
// non-negative and that every input verifies. Inputs are checked concurrently; the first lookup failure
// cancels the rest.
func (tx *Tx) Verify(ctx context.Context, f Fetcher, logger zerolog.Logger) (bool, error) {
	fee, err := tx.Fee(ctx, f)
	var overflow *wire.OverflowError
	if errors.As(err, &overflow) {
		logger.Debug().Err(err).Msg("amounts out of range")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fee < 0 {
		logger.Debug().Int64("fee", fee).Msg("negative fee")
		return false, nil
	}

	var invalid atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	for i := range tx.Inputs {
		i := i
		g.Go(func() error {
			ok, err := tx.VerifyInput(gctx, f, i, script.WithLogger(logger))
			if err != nil {
				return errors.Wrapf(err, "verifying input %d", i)
			}
			if !ok {
				logger.Debug().Int("input", i).Msg("input script failed")
				invalid.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	return !invalid.Load(), nil
}
