package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/tinyblock/tinyblock/pkg/builder"
	"github.com/tinyblock/tinyblock/pkg/config"
	"github.com/tinyblock/tinyblock/pkg/crypto"
	"github.com/tinyblock/tinyblock/pkg/fetcher"
	"github.com/tinyblock/tinyblock/pkg/logging"
	"github.com/tinyblock/tinyblock/pkg/tx"
)

// environment is the state shared by every command once the global flags
// have been applied.
type environment struct {
	out    io.Writer
	logOut io.Writer
	cfg    config.Config
	logger zerolog.Logger
}

// setup resolves the configuration: flag, then env, then file, then default.
func (e *environment) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("network") {
		cfg.Network = c.String("network")
	}
	if c.IsSet("cache-dir") {
		cfg.CacheDir = c.String("cache-dir")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.cfg = cfg
	e.logger = logging.New("tinyblock", cfg.LogLevel, e.logOut, cfg.PrettyLogs)
	e.logger.Debug().Str("network", cfg.Network).Str("cache_dir", cfg.CacheDir).Msg("configuration loaded")
	return nil
}

func (e *environment) newFetcher() (*fetcher.Client, error) {
	opts := append(e.cfg.FetcherOptions(), fetcher.WithLogger(e.logger))

	if e.cfg.CacheDir != "" {
		if err := os.MkdirAll(e.cfg.CacheDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating cache directory")
		}
		store, err := fetcher.OpenLevelDB(e.cfg.CacheDir, e.logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetcher.WithStore(store))

		client, err := fetcher.NewClient(opts...)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return client, nil
	}

	return fetcher.NewClient(opts...)
}

func oneArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", errors.Errorf("expected exactly one argument: <%s>", name)
	}
	return c.Args().First(), nil
}

func (e *environment) cmdDecode(c *cli.Context) error {
	raw, err := oneArg(c, "hex")
	if err != nil {
		return err
	}
	t, err := tx.ParseHex(raw, e.cfg.IsTestnet())
	if err != nil {
		return err
	}

	if c.Bool("dump") {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
		cfg.Fdump(e.out, t)
		return nil
	}

	id, err := t.ID()
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "id:       %s\n", id)
	fmt.Fprintf(e.out, "version:  %d\n", t.Version)
	fmt.Fprintf(e.out, "locktime: %d\n", t.LockTime)
	fmt.Fprintf(e.out, "inputs:   %d\n", len(t.Inputs))
	for i, in := range t.Inputs {
		fmt.Fprintf(e.out, "  [%d] %s\n", i, in)
		fmt.Fprintf(e.out, "      script_sig: %s\n", in.ScriptSig)
		fmt.Fprintf(e.out, "      sequence:   0x%08x\n", in.Sequence)
	}
	fmt.Fprintf(e.out, "outputs:  %d\n", len(t.Outputs))
	for i, out := range t.Outputs {
		fmt.Fprintf(e.out, "  [%d] %d sat\n", i, out.Amount)
		fmt.Fprintf(e.out, "      script_pubkey: %s\n", out.ScriptPubKey)
		if h160 := out.ScriptPubKey.PubKeyHash(); h160 != nil {
			fmt.Fprintf(e.out, "      address:       %s\n", crypto.EncodeAddress(h160, t.Testnet))
		}
	}
	return nil
}

func (e *environment) cmdID(c *cli.Context) error {
	raw, err := oneArg(c, "hex")
	if err != nil {
		return err
	}
	t, err := tx.ParseHex(raw, e.cfg.IsTestnet())
	if err != nil {
		return err
	}
	id, err := t.ID()
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, id)
	return nil
}

// fetchTx looks up txID on the configured network and returns it together
// with the fetcher, which the caller must close.
func (e *environment) fetchTx(c *cli.Context) (*tx.Tx, *fetcher.Client, error) {
	txID, err := oneArg(c, "txid")
	if err != nil {
		return nil, nil, err
	}

	f, err := e.newFetcher()
	if err != nil {
		return nil, nil, err
	}
	t, err := f.Fetch(c.Context, txID, e.cfg.IsTestnet())
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return t, f, nil
}

func (e *environment) cmdFee(c *cli.Context) error {
	t, f, err := e.fetchTx(c)
	if err != nil {
		return err
	}
	defer f.Close()

	fee, err := t.Fee(c.Context, f)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, fee)
	return nil
}

func (e *environment) cmdVerify(c *cli.Context) error {
	t, f, err := e.fetchTx(c)
	if err != nil {
		return err
	}
	defer f.Close()

	if t.IsCoinbase() {
		return errors.New("coinbase transactions spend no previous outputs")
	}

	ok, err := t.Verify(c.Context, f, e.logger)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(e.out, "invalid")
		return errors.New("transaction does not verify")
	}
	fmt.Fprintln(e.out, "valid")
	return nil
}

func parseOutpoint(s string) (string, uint32, error) {
	txID, index, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, errors.Errorf("input %q is not <txid>:<index>", s)
	}
	n, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return "", 0, errors.Wrapf(err, "input %q has a bad index", s)
	}
	return txID, uint32(n), nil
}

func (e *environment) cmdPay(c *cli.Context) error {
	key, err := keyFromSecret(c)
	if err != nil {
		return err
	}

	creator := builder.NewCreator(e.cfg.IsTestnet()).WithLockTime(uint32(c.Uint("locktime")))
	for _, in := range c.StringSlice("input") {
		txID, index, err := parseOutpoint(in)
		if err != nil {
			return err
		}
		if err := creator.AddInput(txID, index); err != nil {
			return err
		}
	}
	for _, uri := range c.StringSlice("uri") {
		if err := creator.AddPaymentURI(uri); err != nil {
			return err
		}
	}
	unsigned, err := creator.Build()
	if err != nil {
		return err
	}

	f, err := e.newFetcher()
	if err != nil {
		return err
	}
	defer f.Close()

	fee, err := unsigned.Fee(c.Context, f)
	if err != nil {
		return err
	}
	if fee < 0 {
		return errors.Errorf("outputs exceed inputs by %d sat", -fee)
	}

	signer := builder.NewSigner(unsigned, f)
	for i := range unsigned.Inputs {
		if err := signer.SignInput(c.Context, i, key); err != nil {
			return err
		}
	}
	raw, id, err := builder.NewExtractor(signer.Finish()).Extract()
	if err != nil {
		return err
	}

	e.logger.Info().Str("txid", id).Int64("fee", fee).Int("inputs", len(unsigned.Inputs)).Msg("transaction signed")
	fmt.Fprintf(e.out, "txid: %s\n", id)
	fmt.Fprintf(e.out, "fee:  %d\n", fee)
	fmt.Fprintf(e.out, "hex:  %s\n", hex.EncodeToString(raw))
	return nil
}

func keyFromSecret(c *cli.Context) (*crypto.PrivateKey, error) {
	secret := new(big.Int).SetBytes(crypto.Hash256([]byte(c.String("secret"))))
	return crypto.NewPrivateKey(secret)
}

func (e *environment) cmdAddress(c *cli.Context) error {
	key, err := keyFromSecret(c)
	if err != nil {
		return err
	}
	compressed := !c.Bool("uncompressed")
	pub := key.PublicKey()

	fmt.Fprintf(e.out, "sec:     %s\n", hex.EncodeToString(pub.SEC(compressed)))
	fmt.Fprintf(e.out, "address: %s\n", pub.Address(compressed, e.cfg.IsTestnet()))
	return nil
}

func (e *environment) cmdWIF(c *cli.Context) error {
	key, err := keyFromSecret(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, key.WIF(!c.Bool("uncompressed"), e.cfg.IsTestnet()))
	return nil
}
