// tinyblock CLI - legacy Bitcoin transaction toolkit
//
// Example usage:
//
//	# Decode a raw transaction
//	tinyblock decode 0100000001813f79...19430600
//
//	# Compute the fee and verify the inputs of a mainnet transaction
//	tinyblock fee 452c629d67e41baec3ac6f04fe744b4b9617f8f859c63b3002f8684e7a4fee03
//	tinyblock verify 452c629d67e41baec3ac6f04fe744b4b9617f8f859c63b3002f8684e7a4fee03
//
//	# Spend a P2PKH output to a payment URI
//	tinyblock pay --secret "my secret" --input <txid>:0 --uri "bitcoin:1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH?amount=0.001"
//
//	# Derive a testnet address from a passphrase
//	tinyblock --network testnet address --secret "my secret"
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

const version = "v0.1.0"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	env := &environment{out: stdout, logOut: stderr}

	return &cli.App{
		Name:      "tinyblock",
		Usage:     "decode, verify and sign legacy Bitcoin transactions",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"TINYBLOCK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "mainnet or testnet",
				EnvVars: []string{"TINYBLOCK_NETWORK"},
			},
			&cli.StringFlag{
				Name:    "cache-dir",
				Usage:   "directory of the on-disk transaction cache (empty keeps it in memory)",
				EnvVars: []string{"TINYBLOCK_CACHE_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "trace, debug, info, warn or error",
				EnvVars: []string{"TINYBLOCK_LOG_LEVEL"},
			},
		},
		Before: env.setup,
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "parse a raw transaction and print its fields",
				ArgsUsage: "<hex>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dump", Usage: "print the full parsed structure"},
				},
				Action: env.cmdDecode,
			},
			{
				Name:      "id",
				Usage:     "print the id of a raw transaction",
				ArgsUsage: "<hex>",
				Action:    env.cmdID,
			},
			{
				Name:      "fee",
				Usage:     "fetch a transaction and print its fee",
				ArgsUsage: "<txid>",
				Action:    env.cmdFee,
			},
			{
				Name:      "verify",
				Usage:     "fetch a transaction and verify every input",
				ArgsUsage: "<txid>",
				Action:    env.cmdVerify,
			},
			{
				Name:  "pay",
				Usage: "build and sign a transaction paying BIP 21 URIs from P2PKH outputs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "passphrase owning every input; the key is HASH256(passphrase)",
						Required: true,
					},
					&cli.StringSliceFlag{Name: "input", Usage: "previous output to spend as <txid>:<index>", Required: true},
					&cli.StringSliceFlag{Name: "uri", Usage: "bitcoin: payment URI with an amount", Required: true},
					&cli.UintFlag{Name: "locktime", Usage: "transaction locktime"},
				},
				Action: env.cmdPay,
			},
			{
				Name:   "address",
				Usage:  "derive a P2PKH address from a passphrase",
				Flags:  keyFlags(),
				Action: env.cmdAddress,
			},
			{
				Name:   "wif",
				Usage:  "derive a WIF private key from a passphrase",
				Flags:  keyFlags(),
				Action: env.cmdWIF,
			},
		},
	}
}

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "secret",
			Usage:    "passphrase; the key is HASH256(passphrase)",
			Required: true,
		},
		&cli.BoolFlag{Name: "uncompressed", Usage: "use the uncompressed public key encoding"},
	}
}
